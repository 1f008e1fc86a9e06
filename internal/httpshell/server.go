// Package httpshell exposes the map and editor over HTTP. It stands in for
// the map view: it receives gestures as JSON requests and keeps the last
// rendered pin list for clients to poll.
package httpshell

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storepins/pinboard/internal/dispatcher"
	"github.com/storepins/pinboard/internal/editor"
	"github.com/storepins/pinboard/internal/geo"
	"github.com/storepins/pinboard/internal/handlers"
	"github.com/storepins/pinboard/internal/mapsurface"
	"github.com/storepins/pinboard/pkg/core"
)

const shutdownTimeout = 5 * time.Second

var _ mapsurface.Surface = (*Server)(nil)

// Dependencies holds what the HTTP shell routes to.
type Dependencies struct {
	Dispatcher *dispatcher.Dispatcher
	Editor     *editor.Session
	Logger     *slog.Logger
}

// Server is a gin-backed map surface.
type Server struct {
	deps   Dependencies
	engine *gin.Engine

	mu      sync.RWMutex
	pins    []mapsurface.Pin
	loadErr error
}

// New builds the router. Call Handler or ListenAndServe to serve it.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{deps: deps, pins: []mapsurface.Pin{}}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthcheck", s.healthcheck)

	api := r.Group("/api")
	api.POST("/map/longpress", s.longPress)
	api.POST("/pins/:key/press", s.pinPress)
	api.GET("/pins", s.listPins)
	api.GET("/markers", s.listMarkers)

	api.GET("/editor", s.getDraft)
	api.PATCH("/editor", s.patchDraft)
	api.POST("/editor/image", s.pickImage)
	api.POST("/editor/commit", s.commit)
	api.POST("/editor/discard", s.discard)

	s.engine = r
	return s
}

// Render stores the pins for GET /api/pins.
func (s *Server) Render(pins []mapsurface.Pin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins = append([]mapsurface.Pin(nil), pins...)
}

// Pins returns the last rendered pins.
func (s *Server) Pins() []mapsurface.Pin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]mapsurface.Pin(nil), s.pins...)
}

// SetLoadError records the outcome of the initial marker load. A non-nil
// err is reported to clients alongside the pins until cleared with nil.
func (s *Server) SetLoadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// LoadError returns the recorded initial load failure, if any.
func (s *Server) LoadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("HTTP shell listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.deps.Logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) dispatch(c *gin.Context, cmd string, payload any) (any, error) {
	return s.deps.Dispatcher.Dispatch(c.Request.Context(), dispatcher.Event{Command: cmd, Payload: payload})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, core.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, geo.ErrInvalidCoordinates),
		errors.Is(err, handlers.ErrBadPayload):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.deps.Logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
