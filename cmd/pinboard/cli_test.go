package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/storepins/pinboard/internal/config"
	"github.com/storepins/pinboard/internal/storage/memory"
	"github.com/storepins/pinboard/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfigDir(t *testing.T) string {
	t.Helper()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	body := `{
		"logLevel": "error",
		"logsDir": "` + filepath.ToSlash(filepath.Join(dir, "logs")) + `",
		"storage": { "type": "memory" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(body), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHttpToWS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:5000/api", "ws://localhost:5000/api"},
		{"https://example.com/api/", "wss://example.com/api"},
		{"ws://already", "ws://already"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, httpToWS(tt.in))
		})
	}
}

func TestCreateStorageBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	b, err := createStorageBackend(config.StorageConfig{Type: "memory"}, logger, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	b, err = createStorageBackend(config.StorageConfig{}, logger, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	_, err = createStorageBackend(config.StorageConfig{Type: "carrier-pigeon"}, logger, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestPlaceCommand(t *testing.T) {
	dir := testConfigDir(t)

	out, err := execute(t, "--config", dir, "place",
		"--lat", "51.5", "--lon", "-0.12",
		"--title", "Corner Shop", "--description", "Fresh bread")
	require.NoError(t, err)

	var got []core.Marker
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Corner Shop", got[0].Title)
	assert.Equal(t, "Fresh bread", got[0].Description)
	assert.Equal(t, core.Coordinate{Latitude: 51.5, Longitude: -0.12}, got[0].Coordinate)
	assert.True(t, got[0].Image.IsZero())
}

func TestPlaceCommand_Defaults(t *testing.T) {
	dir := testConfigDir(t)

	out, err := execute(t, "--config", dir, "place", "--lat", "10", "--lon", "20")
	require.NoError(t, err)

	var got []core.Marker
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, core.DefaultTitle, got[0].Title)
	assert.Equal(t, core.DefaultDescription, got[0].Description)
}

func TestPlaceCommand_WithImage(t *testing.T) {
	dir := testConfigDir(t)
	img := filepath.Join(t.TempDir(), "shop.png")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
	require.NoError(t, os.WriteFile(img, png, 0o644))

	out, err := execute(t, "--config", dir, "place", "--lat", "1", "--lon", "2", "--image", img)
	require.NoError(t, err)

	var got []core.Marker
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Image.String(), "shop.png")
}

func TestPlaceCommand_InvalidCoordinate(t *testing.T) {
	dir := testConfigDir(t)

	_, err := execute(t, "--config", dir, "place", "--lat", "95", "--lon", "0")
	assert.Error(t, err)
}

func TestPlaceCommand_RequiresCoordinates(t *testing.T) {
	dir := testConfigDir(t)

	_, err := execute(t, "--config", dir, "place", "--lat", "1")
	assert.ErrorContains(t, err, "lon")
}

func TestListCommand_EmptyStore(t *testing.T) {
	dir := testConfigDir(t)

	out, err := execute(t, "--config", dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "TITLE")
}
