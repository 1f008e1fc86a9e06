package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/storepins/pinboard/internal/config"
	"github.com/storepins/pinboard/internal/dispatcher"
	"github.com/storepins/pinboard/internal/handlers"
	"github.com/storepins/pinboard/internal/httpshell"
	"github.com/storepins/pinboard/internal/mapsurface"
	"github.com/storepins/pinboard/pkg/core"
)

type rootOptions struct {
	configDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Place and share store pins on a map",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config", configDirDefault(), "directory holding "+config.ConfigFileName)

	root.AddCommand(newServeCmd(opts), newListCmd(opts), newPlaceCmd(opts))
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load markers and serve the map over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts.configDir)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := httpshell.New(httpshell.Dependencies{
				Dispatcher: a.dispatcher,
				Editor:     a.editor,
				Logger:     a.logs.Component("http"),
			})
			mapsurface.Bind(a.store, srv)

			// The initial load runs alongside early placements. Its failure is
			// shown to clients as a notice and the session continues with
			// whatever was loaded.
			go func() {
				if err := a.store.Initialize(ctx); err != nil {
					a.logger.Error("Initial load incomplete", "error", err)
					srv.SetLoadError(err)
				}
			}()

			if addr == "" {
				addr = config.GetHTTPConfig().Addr
			}
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from http.addr)")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every marker in the remote store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts.configDir)
			if err != nil {
				return err
			}
			defer a.Close()

			loadErr := a.store.Initialize(cmd.Context())
			if err := printMarkers(cmd.OutOrStdout(), a.store.List(), asJSON); err != nil {
				return err
			}
			return loadErr
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

type placeOptions struct {
	lat, lon    float64
	title       string
	description string
	image       string
}

func newPlaceCmd(opts *rootOptions) *cobra.Command {
	p := &placeOptions{}
	cmd := &cobra.Command{
		Use:   "place",
		Short: "Place a marker, fill in its details and save it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts.configDir)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := place(cmd.Context(), a.dispatcher, p, cmd.Flags().Changed("title"), cmd.Flags().Changed("description"))
			if err != nil {
				return err
			}
			// Close waits for the background write before returning.
			return printMarkers(cmd.OutOrStdout(), []core.Marker{m}, true)
		},
	}
	cmd.Flags().Float64Var(&p.lat, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&p.lon, "lon", 0, "longitude in decimal degrees")
	cmd.Flags().StringVar(&p.title, "title", core.DefaultTitle, "store name")
	cmd.Flags().StringVar(&p.description, "description", core.DefaultDescription, "what's on offer")
	cmd.Flags().StringVar(&p.image, "image", "", "path to an image file")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

// place drives the same command sequence the map shell uses: long-press,
// pin press, edits, optional pick, commit.
func place(ctx context.Context, d *dispatcher.Dispatcher, p *placeOptions, setTitle, setDescription bool) (core.Marker, error) {
	dispatch := func(cmd string, payload any) (any, error) {
		return d.Dispatch(ctx, dispatcher.Event{Command: cmd, Payload: payload})
	}

	res, err := dispatch(handlers.CmdLongPress, mapsurface.Event{
		Kind:      mapsurface.LongPress,
		Latitude:  p.lat,
		Longitude: p.lon,
		Timestamp: time.Now(),
	})
	if err != nil {
		return core.Marker{}, err
	}
	m := res.(core.Marker)

	if _, err := dispatch(handlers.CmdPinPress, mapsurface.Event{Kind: mapsurface.PinPress, Key: m.Key}); err != nil {
		return core.Marker{}, err
	}
	if setTitle {
		if _, err := dispatch(handlers.CmdEditorTitle, p.title); err != nil {
			return core.Marker{}, err
		}
	}
	if setDescription {
		if _, err := dispatch(handlers.CmdEditorDescription, p.description); err != nil {
			return core.Marker{}, err
		}
	}
	if p.image != "" {
		picked, err := dispatch(handlers.CmdEditorPick, handlers.PickRequest{Path: p.image})
		if err != nil {
			_, _ = dispatch(handlers.CmdEditorDiscard, nil)
			return core.Marker{}, err
		}
		if ok, _ := picked.(bool); !ok {
			_, _ = dispatch(handlers.CmdEditorDiscard, nil)
			return core.Marker{}, errors.New("image pick cancelled")
		}
	}
	if _, err := dispatch(handlers.CmdEditorCommit, nil); err != nil {
		return core.Marker{}, err
	}

	res, err = dispatch(handlers.CmdMarkersList, nil)
	if err != nil {
		return core.Marker{}, err
	}
	for _, got := range res.([]core.Marker) {
		if got.Key == m.Key {
			return got, nil
		}
	}
	return core.Marker{}, fmt.Errorf("placed marker %q: %w", m.Key, core.ErrNotFound)
}

func printMarkers(w io.Writer, markers []core.Marker, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(markers)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tLATITUDE\tLONGITUDE\tTITLE\tIMAGE")
	for _, m := range markers {
		fmt.Fprintf(tw, "%s\t%.6f\t%.6f\t%s\t%s\n", m.Key, m.Coordinate.Latitude, m.Coordinate.Longitude, m.Title, m.Image)
	}
	return tw.Flush()
}
