// Package rest implements the storage.Backend interface against a JSON
// document service:
//
//	GET  {base}/healthcheck      -> 200
//	POST {base}/markers          MarkerRecord -> 201 {"id": "..."}
//	PUT  {base}/markers/{id}     MarkerRecord -> 204
//	GET  {base}/markers          -> 200 {"documents": [{"id", "record"}]}
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storepins/pinboard/internal/storage"
	"github.com/storepins/pinboard/pkg/core"
)

var (
	_ storage.Backend = (*Client)(nil)
	_ storage.Updater = (*Client)(nil)
)

// SecretHeader carries the shared secret when one is configured.
const SecretHeader = "X-Pinboard-Secret"

const defaultTimeout = 30 * time.Second

// Client handles communication with the marker document service.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// New creates a new REST backend. A zero timeout means 30s.
func New(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type insertResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Init checks that the service is reachable.
func (c *Client) Init(ctx context.Context) error {
	return c.Healthcheck(ctx)
}

// Close releases idle keep-alive connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Healthcheck checks if the document service is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthcheck", nil)
	if err != nil {
		return storage.Unavailable("healthcheck", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return storage.Unavailable("healthcheck", fmt.Errorf("returned status %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set(SecretHeader, c.secret)
	}
	return c.httpClient.Do(req)
}

// statusError turns a non-success response into a classified error.
func statusError(op string, resp *http.Response) error {
	var body errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)

	err := fmt.Errorf("returned status %d", resp.StatusCode)
	if body.Error != "" {
		err = fmt.Errorf("returned status %d: %s", resp.StatusCode, body.Error)
	}
	if resp.StatusCode == http.StatusNotFound {
		err = fmt.Errorf("%w: %w", err, core.ErrNotFound)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return storage.Rejected(op, err)
	}
	return storage.Unavailable(op, err)
}

// Insert posts rec and returns the id chosen by the service.
func (c *Client) Insert(ctx context.Context, rec core.MarkerRecord) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/markers", rec)
	if err != nil {
		return "", storage.Unavailable("insert", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", statusError("insert", resp)
	}

	var out insertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", storage.Unavailable("insert", fmt.Errorf("failed to decode response: %w", err))
	}
	if out.ID == "" {
		return "", storage.Rejected("insert", errors.New("service returned an empty id"))
	}
	return out.ID, nil
}

// Update replaces the document stored under id.
func (c *Client) Update(ctx context.Context, id string, rec core.MarkerRecord) error {
	resp, err := c.do(ctx, http.MethodPut, "/markers/"+url.PathEscape(id), rec)
	if err != nil {
		return storage.Unavailable("update", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	default:
		return statusError("update", resp)
	}
}

// ListAll fetches every document. The body is decoded as a stream so a
// truncated response still yields the documents read before the cut.
func (c *Client) ListAll(ctx context.Context) ([]core.Document, error) {
	resp, err := c.do(ctx, http.MethodGet, "/markers", nil)
	if err != nil {
		return nil, storage.Unavailable("list", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list", resp)
	}

	docs, err := decodeDocuments(resp.Body)
	if err != nil {
		return docs, storage.Unavailable("list", err)
	}
	return docs, nil
}

// decodeDocuments reads {"documents": [...]} element by element, skipping
// any other top-level keys.
func decodeDocuments(r io.Reader) ([]core.Document, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var docs []core.Document
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return docs, fmt.Errorf("failed to read key: %w", err)
		}
		key, _ := tok.(string)
		if key != "documents" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return docs, fmt.Errorf("failed to skip %q: %w", key, err)
			}
			continue
		}

		if err := expectDelim(dec, '['); err != nil {
			return docs, err
		}
		for dec.More() {
			var doc core.Document
			if err := dec.Decode(&doc); err != nil {
				return docs, fmt.Errorf("failed to decode document %d: %w", len(docs), err)
			}
			docs = append(docs, doc)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return docs, err
		}
	}
	return docs, expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read %q: %w", want, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
