package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/storepins/pinboard/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000/api", "secret123", 0)

	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.baseURL != "http://localhost:5000/api" {
		t.Errorf("expected baseURL=http://localhost:5000/api, got %s", c.baseURL)
	}
	if c.secret != "secret123" {
		t.Errorf("expected secret=secret123, got %s", c.secret)
	}
	if c.httpClient.Timeout != defaultTimeout {
		t.Errorf("expected default timeout, got %s", c.httpClient.Timeout)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret", time.Second)
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/healthcheck" {
			t.Errorf("expected path /api/healthcheck, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL+"/api", "", time.Second)
	if err := c.Init(context.Background()); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	assert.NoError(t, c.Close())
}

func TestHealthcheck_ServerDown(t *testing.T) {
	c := New("http://localhost:59999", "", time.Second) // unlikely to be listening
	err := c.Healthcheck(context.Background())
	assert.ErrorIs(t, err, core.ErrRemoteUnavailable)
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := New(server.URL, "", time.Second).Healthcheck(context.Background())
	assert.ErrorIs(t, err, core.ErrRemoteUnavailable)
}

func TestInsert_Success(t *testing.T) {
	var received map[string]any
	var secret, contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/markers", r.URL.Path)
		secret = r.Header.Get(SecretHeader)
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"doc-1"}`))
	}))
	defer server.Close()

	c := New(server.URL, "s3cret", time.Second)
	id, err := c.Insert(context.Background(), core.MarkerRecord{
		Title:       "Rema 1000",
		Description: "What's on offer:",
		Latitude:    59.91,
		Longitude:   10.75,
	})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)

	assert.Equal(t, "s3cret", secret)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "Rema 1000", received["title"])
	assert.Equal(t, 59.91, received["latitude"])
	assert.Nil(t, received["image"], "no image is sent as null")
	_, hasImage := received["image"]
	assert.True(t, hasImage)
}

func TestInsert_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"validation", http.StatusUnprocessableEntity, `{"error":"title too long"}`, core.ErrRemoteRejected},
		{"quota", http.StatusTooManyRequests, ``, core.ErrRemoteRejected},
		{"server error", http.StatusInternalServerError, ``, core.ErrRemoteUnavailable},
		{"bad gateway", http.StatusBadGateway, `<html>`, core.ErrRemoteUnavailable},
		{"empty id", http.StatusCreated, `{"id":""}`, core.ErrRemoteRejected},
		{"garbled body", http.StatusCreated, `{"id":`, core.ErrRemoteUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(server.URL, "", time.Second).Insert(context.Background(), core.MarkerRecord{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInsert_ErrorBodySurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"latitude required"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "", time.Second).Insert(context.Background(), core.MarkerRecord{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude required")
}

func TestUpdate(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		if r.URL.Path == "/markers/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(server.URL, "", time.Second)
	require.NoError(t, c.Update(context.Background(), "doc-1", core.MarkerRecord{Title: "x"}))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/markers/doc-1", path)

	err := c.Update(context.Background(), "missing", core.MarkerRecord{})
	assert.ErrorIs(t, err, core.ErrRemoteRejected)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/markers", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"count": 2,
			"documents": [
				{"id": "r1", "record": {"title": "X", "description": "d", "image": null, "latitude": 1, "longitude": 2, "createdAt": "2026-01-02T03:04:05Z"}},
				{"id": "r2", "record": {"title": "Y", "image": "https://cdn/y.png", "latitude": 3, "longitude": 4}}
			]
		}`))
	}))
	defer server.Close()

	docs, err := New(server.URL, "", time.Second).ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "r1", docs[0].ID)
	assert.Equal(t, "X", docs[0].Record.Title)
	assert.True(t, docs[0].Record.Image.IsZero())
	assert.Equal(t, 2.0, docs[0].Record.Longitude)
	assert.Equal(t, 2026, docs[0].Record.CreatedAt.Year())
	assert.Equal(t, core.ResourceLocator("https://cdn/y.png"), docs[1].Record.Image)
}

func TestListAll_TruncatedKeepsPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"documents": [{"id": "r1", "record": {"title": "kept"}}, {"id": "r2", "rec`))
	}))
	defer server.Close()

	docs, err := New(server.URL, "", time.Second).ListAll(context.Background())
	assert.ErrorIs(t, err, core.ErrRemoteUnavailable)
	require.Len(t, docs, 1)
	assert.Equal(t, "kept", docs[0].Record.Title)
}

func TestListAll_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusServiceUnavailable, ``, core.ErrRemoteUnavailable},
		{"forbidden", http.StatusForbidden, ``, core.ErrRemoteRejected},
		{"not an object", http.StatusOK, `[]`, core.ErrRemoteUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			docs, err := New(server.URL, "", time.Second).ListAll(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, docs)
		})
	}
}

func TestListAll_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"documents": []}`))
	}))
	defer server.Close()

	docs, err := New(server.URL, "", time.Second).ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}
