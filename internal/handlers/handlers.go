package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/storepins/pinboard/internal/dispatcher"
	"github.com/storepins/pinboard/internal/editor"
	"github.com/storepins/pinboard/internal/mapsurface"
	"github.com/storepins/pinboard/internal/markers"
	"github.com/storepins/pinboard/internal/media"
	"github.com/storepins/pinboard/pkg/core"
)

// Commands routed through the dispatcher.
const (
	CmdLongPress         = ":MAP:LONGPRESS:"
	CmdPinPress          = ":PIN:PRESS:"
	CmdEditorTitle       = ":EDITOR:TITLE:"
	CmdEditorDescription = ":EDITOR:DESCRIPTION:"
	CmdEditorImage       = ":EDITOR:IMAGE:"
	CmdEditorPick        = ":EDITOR:PICK:"
	CmdEditorCommit      = ":EDITOR:COMMIT:"
	CmdEditorDiscard     = ":EDITOR:DISCARD:"
	CmdMarkersList       = ":MARKERS:LIST:"
)

// ErrBadPayload is returned when an event carries the wrong payload type.
var ErrBadPayload = errors.New("unexpected payload")

// PickRequest asks the editor to acquire an image from Path.
type PickRequest struct {
	Path string
}

// PickerFactory builds the picker for one pick request.
type PickerFactory func(req PickRequest) media.Picker

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Store   *markers.Store
	Editor  *editor.Session
	Pickers PickerFactory
	Logger  *slog.Logger
}

// Service provides handler methods for map and editor commands
type Service struct {
	deps Dependencies
}

// NewService creates a new handler service. A nil Pickers builds a
// media.FilePicker per request.
func NewService(deps Dependencies) *Service {
	if deps.Pickers == nil {
		deps.Pickers = func(req PickRequest) media.Picker { return media.NewFilePicker(req.Path) }
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// RegisterHandlers registers all commands with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdLongPress, s.handleLongPress, dispatcher.Logged())
	d.Register(CmdPinPress, s.handlePinPress, dispatcher.Logged())

	d.Register(CmdEditorTitle, s.handleEditorTitle)
	d.Register(CmdEditorDescription, s.handleEditorDescription)
	d.Register(CmdEditorImage, s.handleEditorImage, dispatcher.Logged())
	d.Register(CmdEditorPick, s.handleEditorPick, dispatcher.Logged())
	d.Register(CmdEditorCommit, s.handleEditorCommit, dispatcher.Logged())
	d.Register(CmdEditorDiscard, s.handleEditorDiscard, dispatcher.Logged())

	d.Register(CmdMarkersList, s.handleMarkersList)
}

func mapEvent(e dispatcher.Event) (mapsurface.Event, error) {
	switch p := e.Payload.(type) {
	case mapsurface.Event:
		return p, nil
	case *mapsurface.Event:
		if p != nil {
			return *p, nil
		}
	}
	return mapsurface.Event{}, fmt.Errorf("%w for %s: %T", ErrBadPayload, e.Command, e.Payload)
}

func text(e dispatcher.Event) (string, error) {
	switch p := e.Payload.(type) {
	case string:
		return p, nil
	case core.ResourceLocator:
		return p.String(), nil
	}
	return "", fmt.Errorf("%w for %s: %T", ErrBadPayload, e.Command, e.Payload)
}

// handleLongPress places a marker at the pressed position.
func (s *Service) handleLongPress(_ context.Context, e dispatcher.Event) (any, error) {
	ev, err := mapEvent(e)
	if err != nil {
		return nil, err
	}
	at := ev.Timestamp
	if at.IsZero() {
		at = e.Timestamp
	}
	m, err := s.deps.Store.Create(ev.Coordinate(), at)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// handlePinPress opens the editor on the pressed marker and returns the draft.
func (s *Service) handlePinPress(_ context.Context, e dispatcher.Event) (any, error) {
	ev, err := mapEvent(e)
	if err != nil {
		return nil, err
	}
	m, ok := s.deps.Store.Get(ev.Key)
	if !ok {
		return nil, fmt.Errorf("open editor %q: %w", ev.Key, core.ErrNotFound)
	}
	s.deps.Editor.Open(m)
	d, _ := s.deps.Editor.Draft()
	return d, nil
}

func (s *Service) handleEditorTitle(_ context.Context, e dispatcher.Event) (any, error) {
	v, err := text(e)
	if err != nil {
		return nil, err
	}
	return s.draft(s.deps.Editor.SetTitle(v))
}

func (s *Service) handleEditorDescription(_ context.Context, e dispatcher.Event) (any, error) {
	v, err := text(e)
	if err != nil {
		return nil, err
	}
	return s.draft(s.deps.Editor.SetDescription(v))
}

func (s *Service) handleEditorImage(_ context.Context, e dispatcher.Event) (any, error) {
	v, err := text(e)
	if err != nil {
		return nil, err
	}
	return s.draft(s.deps.Editor.SetImage(core.ResourceLocator(strings.TrimSpace(v))))
}

// handleEditorPick runs the picker and reports whether an image was chosen.
func (s *Service) handleEditorPick(ctx context.Context, e dispatcher.Event) (any, error) {
	var req PickRequest
	switch p := e.Payload.(type) {
	case PickRequest:
		req = p
	case string:
		req = PickRequest{Path: p}
	case nil:
	default:
		return nil, fmt.Errorf("%w for %s: %T", ErrBadPayload, e.Command, e.Payload)
	}

	start := time.Now()
	picked, err := s.deps.Editor.RequestImage(ctx, s.deps.Pickers(req))
	if err != nil {
		return nil, err
	}
	s.deps.Logger.Debug("Image pick finished", "picked", picked, "duration", time.Since(start))
	return picked, nil
}

func (s *Service) handleEditorCommit(context.Context, dispatcher.Event) (any, error) {
	if err := s.deps.Editor.Commit(); err != nil {
		return nil, err
	}
	return "committed", nil
}

func (s *Service) handleEditorDiscard(context.Context, dispatcher.Event) (any, error) {
	if err := s.deps.Editor.Discard(); err != nil {
		return nil, err
	}
	return "discarded", nil
}

func (s *Service) handleMarkersList(context.Context, dispatcher.Event) (any, error) {
	return s.deps.Store.List(), nil
}

func (s *Service) draft(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	d, _ := s.deps.Editor.Draft()
	return d, nil
}
