// Package protocol defines the wire formats spoken between the bridge and a
// charting tool: the UDP discovery exchange and the frame_update documents
// pushed over the stream. The relay itself treats frame payloads as opaque
// text; the frame types here exist for consumers that want to decode them.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DiscoveryToken is the fixed plaintext datagram broadcast during discovery.
// A tool that hears it answers with a DiscoveryResponse datagram.
const DiscoveryToken = "CHARTLINK_DISCOVERY_V1"

// FrameUpdateType is the message type tag carried by stream frames.
const FrameUpdateType = "frame_update"

// DiscoveryResponse is the JSON payload a tool sends back over UDP.
// Only WSURL is required for the response to count as a hit.
type DiscoveryResponse struct {
	WSURL       string `json:"ws_url"`
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	HTTPInfoURL string `json:"http_info_url,omitempty"`
}

// ParseDiscoveryResponse decodes a discovery datagram. A response with a
// missing or blank ws_url is reported as an error so callers can treat the
// datagram as a miss.
func ParseDiscoveryResponse(data []byte) (DiscoveryResponse, error) {
	var resp DiscoveryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return DiscoveryResponse{}, fmt.Errorf("parse discovery response: %w", err)
	}
	if strings.TrimSpace(resp.WSURL) == "" {
		return DiscoveryResponse{}, fmt.Errorf("discovery response has no ws_url")
	}
	return resp, nil
}

// Envelope carries just the type tag of a stream message, for consumers that
// dispatch before decoding the full document.
type Envelope struct {
	Type string `json:"type"`
}

// Note is one renderable point inside a frame. Base carries the original
// authoring parameters verbatim; its fields vary by note kind.
type Note struct {
	ID               int             `json:"id"`
	NoteType         int             `json:"note_type"`
	Time             float64         `json:"time"`
	Distance         float64         `json:"distance"`
	Degree           float64         `json:"degree"`
	Delta            float64         `json:"delta"`
	RadiusMultiplier float64         `json:"radius_multiplier"`
	Kind             string          `json:"kind"`
	Base             json.RawMessage `json:"base"`
}

// FrameUpdate is one real-time snapshot of the renderable chart state.
type FrameUpdate struct {
	Type           string  `json:"type"`
	Timestamp      float64 `json:"timestamp"`
	StartChartTime float64 `json:"start_chart_time"`
	StartDistance  float64 `json:"start_distance"`
	CurDegree      float64 `json:"cur_degree"`
	Speed          float64 `json:"speed"`
	Notes          []Note  `json:"notes"`
}

// ParseFrameUpdate decodes a frame_update document. Intended for consumers of
// the relay; the relay never calls this on inbound traffic.
func ParseFrameUpdate(data []byte) (FrameUpdate, error) {
	var frame FrameUpdate
	if err := json.Unmarshal(data, &frame); err != nil {
		return FrameUpdate{}, fmt.Errorf("parse frame update: %w", err)
	}
	if frame.Type != FrameUpdateType {
		return FrameUpdate{}, fmt.Errorf("unexpected message type %q", frame.Type)
	}
	return frame, nil
}
