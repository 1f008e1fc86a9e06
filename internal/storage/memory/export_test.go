// internal/storage/memory/export_test.go
package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/storepins/pinboard/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0644)
}

func TestReadSnapshot_Missing(t *testing.T) {
	docs, err := readSnapshot(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestWriteSnapshot_EmptyWritesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, writeSnapshot(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"documents":[]`)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file cleaned up by rename")
}

func TestWriteSnapshot_NullImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.json")
	require.NoError(t, writeSnapshot(path, []core.Document{{ID: "1", Record: core.MarkerRecord{Title: "t"}}}))

	docs, err := readSnapshot(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].Record.Image.IsZero())
}

func TestReadSnapshot_BadGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json.gz")
	require.NoError(t, writeFile(path, "plain text"))

	_, err := readSnapshot(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gzip")
}
