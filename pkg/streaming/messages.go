// Package streaming defines the JSON messages exchanged with a websocket
// marker service. Every request carries an id; the server answers with a
// response whose id matches.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/storepins/pinboard/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeInsertMarker = "insert_marker"
	TypeUpdateMarker = "update_marker"
	TypeListMarkers  = "list_markers"

	TypeAck        = "ack"
	TypeMarkerList = "marker_list"
)

// CodeRejected marks a response the server refused on validation or quota
// grounds. Any other non-empty error is treated as the service being unavailable.
const CodeRejected = "rejected"

// Envelope wraps all requests sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope with payload marshalled to JSON. A nil
// payload is omitted.
func NewEnvelope(msgType, id string, payload any) (Envelope, error) {
	env := Envelope{Type: msgType, ID: id}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env.Payload = raw
	return env, nil
}

// UpdateMarkerPayload targets an existing document.
type UpdateMarkerPayload struct {
	ID     string            `json:"id"`
	Record core.MarkerRecord `json:"record"`
}

// Response is any server message. Type is "ack" for writes and
// "marker_list" for listings; For names the request type and ID echoes the
// request id.
type Response struct {
	Type      string          `json:"type"`
	For       string          `json:"for"`
	ID        string          `json:"id"`
	DocID     string          `json:"docId,omitempty"`
	Documents []core.Document `json:"documents,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      string          `json:"code,omitempty"`
}

// Failed reports whether the server signalled an error.
func (r Response) Failed() bool {
	return r.Error != "" || r.Code != ""
}
