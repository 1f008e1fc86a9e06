package httpshell

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storepins/pinboard/internal/handlers"
	"github.com/storepins/pinboard/internal/mapsurface"
)

type longPressRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	// Timestamp is the gesture time in unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

type patchDraftRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
}

type pickImageRequest struct {
	Path string `json:"path"`
}

// pinsResponse carries the rendered pins. LoadError is the notice shown
// when the initial load from the remote store failed.
type pinsResponse struct {
	Pins      []mapsurface.Pin `json:"pins"`
	LoadError string           `json:"loadError,omitempty"`
}

func loadNotice(err error) string {
	if err == nil {
		return ""
	}
	return "markers could not be loaded: " + err.Error()
}

func (s *Server) healthcheck(c *gin.Context) {
	if err := s.LoadError(); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "degraded", "loadError": loadNotice(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) longPress(c *gin.Context) {
	var req longPressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ev := mapsurface.Event{
		Kind:      mapsurface.LongPress,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	}
	if req.Timestamp > 0 {
		ev.Timestamp = time.UnixMilli(req.Timestamp)
	}

	res, err := s.dispatch(c, handlers.CmdLongPress, ev)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) pinPress(c *gin.Context) {
	res, err := s.dispatch(c, handlers.CmdPinPress, mapsurface.Event{
		Kind: mapsurface.PinPress,
		Key:  c.Param("key"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) listPins(c *gin.Context) {
	c.JSON(http.StatusOK, pinsResponse{Pins: s.Pins(), LoadError: loadNotice(s.LoadError())})
}

func (s *Server) listMarkers(c *gin.Context) {
	res, err := s.dispatch(c, handlers.CmdMarkersList, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getDraft(c *gin.Context) {
	d, ok := s.deps.Editor.Draft()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "editor session is closed"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) patchDraft(c *gin.Context) {
	var req patchDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	steps := []struct {
		cmd   string
		value *string
	}{
		{handlers.CmdEditorTitle, req.Title},
		{handlers.CmdEditorDescription, req.Description},
		{handlers.CmdEditorImage, req.Image},
	}
	for _, step := range steps {
		if step.value == nil {
			continue
		}
		if _, err := s.dispatch(c, step.cmd, *step.value); err != nil {
			s.fail(c, err)
			return
		}
	}
	s.getDraft(c)
}

func (s *Server) pickImage(c *gin.Context) {
	var req pickImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := s.dispatch(c, handlers.CmdEditorPick, handlers.PickRequest{Path: req.Path})
	if err != nil {
		s.fail(c, err)
		return
	}
	if picked, _ := res.(bool); !picked {
		c.Status(http.StatusNoContent)
		return
	}
	s.getDraft(c)
}

func (s *Server) commit(c *gin.Context) {
	if _, err := s.dispatch(c, handlers.CmdEditorCommit, nil); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) discard(c *gin.Context) {
	if _, err := s.dispatch(c, handlers.CmdEditorDiscard, nil); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
