// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/storepins/pinboard/pkg/core"
)

const snapshotVersion = 1

// Snapshot is the JSON structure written to the snapshot file
type Snapshot struct {
	Version   int             `json:"version"`
	Documents []core.Document `json:"documents"`
}

func compressed(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// readSnapshot loads documents from path. A missing file yields no documents.
func readSnapshot(path string) ([]core.Document, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed(path) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip snapshot: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return snap.Documents, nil
}

// writeSnapshot replaces the file at path with the given documents
func writeSnapshot(path string, docs []core.Document) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if compressed(path) {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if docs == nil {
		docs = []core.Document{}
	}
	encErr := json.NewEncoder(w).Encode(Snapshot{Version: snapshotVersion, Documents: docs})
	if gz != nil {
		if err := gz.Close(); err != nil && encErr == nil {
			encErr = err
		}
	}
	if err := f.Close(); err != nil && encErr == nil {
		encErr = err
	}
	if encErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write snapshot: %w", encErr)
	}

	return os.Rename(tmp, path)
}
