// Package editor holds the single in-progress edit of one marker. A Session
// is Closed until Open copies a marker into a draft; Commit writes the draft
// back through the marker store and Discard drops it.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/storepins/pinboard/internal/markers"
	"github.com/storepins/pinboard/internal/media"
	"github.com/storepins/pinboard/pkg/core"
)

// ErrSessionClosed is returned by draft operations while no marker is open.
var ErrSessionClosed = errors.New("editor session is closed")

// Committer applies a finished draft. *markers.Store implements it.
type Committer interface {
	ApplyEdit(key string, edit markers.Edit) error
}

// Draft is the uncommitted edit state.
type Draft struct {
	Key         string               `json:"key"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Image       core.ResourceLocator `json:"image"`
}

// Session is the editor state machine. It is safe for concurrent use.
type Session struct {
	store Committer

	mu    sync.Mutex
	open  bool
	draft Draft
}

// NewSession returns a Closed session committing to store.
func NewSession(store Committer) *Session {
	return &Session{store: store}
}

// Open starts editing m. Any previous draft is replaced without a write.
func (s *Session) Open(m core.Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.draft = Draft{
		Key:         m.Key,
		Title:       m.Title,
		Description: m.Description,
		Image:       m.Image,
	}
}

// IsOpen reports whether a draft is being edited.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft, s.open
}

func (s *Session) SetTitle(title string) error {
	return s.update(func(d *Draft) { d.Title = title })
}

func (s *Session) SetDescription(description string) error {
	return s.update(func(d *Draft) { d.Description = description })
}

func (s *Session) SetImage(image core.ResourceLocator) error {
	return s.update(func(d *Draft) { d.Image = image })
}

func (s *Session) update(fn func(*Draft)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrSessionClosed
	}
	fn(&s.draft)
	return nil
}

// Commit applies the draft to the target marker and closes the session,
// whether or not the marker still exists.
func (s *Session) Commit() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	d := s.draft
	s.open = false
	s.draft = Draft{}
	s.mu.Unlock()

	err := s.store.ApplyEdit(d.Key, markers.Edit{
		Title:       d.Title,
		Description: d.Description,
		Image:       d.Image,
	})
	if err != nil {
		return fmt.Errorf("commit draft: %w", err)
	}
	return nil
}

// Discard drops the draft and closes the session.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrSessionClosed
	}
	s.open = false
	s.draft = Draft{}
	return nil
}

// RequestImage asks picker for permission and an image. A granted, completed
// pick sets the draft image and returns true. Cancelling returns false with
// no error. The draft is unchanged unless an image was picked.
func (s *Session) RequestImage(ctx context.Context, picker media.Picker) (bool, error) {
	d, open := s.Draft()
	if !open {
		return false, ErrSessionClosed
	}

	perm, err := picker.RequestPermission(ctx)
	if err != nil {
		return false, fmt.Errorf("request media permission: %w", err)
	}
	if perm != media.PermissionGranted {
		return false, core.ErrPermissionDenied
	}

	pick, err := picker.PickImage(ctx)
	if err != nil {
		return false, fmt.Errorf("pick image: %w", err)
	}
	if pick.Cancelled {
		return false, nil
	}

	// The session may have been closed or reopened on another marker while
	// the picker was up.
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.draft.Key != d.Key {
		return false, ErrSessionClosed
	}
	s.draft.Image = pick.Locator
	return true, nil
}
