package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/storepins/pinboard/pkg/core"
)

// ErrNotImage is returned when the chosen file is not an image.
var ErrNotImage = errors.New("selected file is not an image")

// FilePicker picks a local image file chosen by the shell. An empty Path
// means the user cancelled.
type FilePicker struct {
	Path string
}

// NewFilePicker returns a picker for path.
func NewFilePicker(path string) *FilePicker {
	return &FilePicker{Path: path}
}

// RequestPermission is denied when the file exists but cannot be opened for
// reading.
func (p *FilePicker) RequestPermission(ctx context.Context) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return PermissionDenied, err
	}
	if strings.TrimSpace(p.Path) == "" {
		return PermissionGranted, nil
	}
	f, err := os.Open(p.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return PermissionDenied, nil
		}
		// Missing files surface from PickImage.
		return PermissionGranted, nil
	}
	_ = f.Close()
	return PermissionGranted, nil
}

// PickImage sniffs the file content and returns a file:// locator.
func (p *FilePicker) PickImage(ctx context.Context) (Pick, error) {
	if err := ctx.Err(); err != nil {
		return Pick{}, err
	}
	if strings.TrimSpace(p.Path) == "" {
		return Cancelled, nil
	}

	abs, err := filepath.Abs(p.Path)
	if err != nil {
		return Pick{}, fmt.Errorf("resolve image path: %w", err)
	}

	mt, err := mimetype.DetectFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return Pick{}, core.ErrPermissionDenied
		}
		return Pick{}, fmt.Errorf("read image: %w", err)
	}
	if !isImage(mt) {
		return Pick{}, fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return Pick{Locator: core.ResourceLocator(u.String())}, nil
}

func isImage(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}
