// Package gateway exposes the bridge over a local WebSocket endpoint so
// headless clients and scripts can talk to the assistant without a chat
// platform account.
package gateway

import (
	"encoding/json"
	"fmt"
)

// Frame types exchanged over the wire.
const (
	// FrameMessage is a client-authored message for the assistant.
	FrameMessage = "message"
	// FrameReply is an assistant response delivered to clients.
	FrameReply = "reply"
	// FrameError reports a protocol or processing failure.
	FrameError = "error"
)

// Frame is the single wire unit, JSON-encoded, one per WebSocket message.
// Data carries file bytes base64-encoded by encoding/json.
type Frame struct {
	Type     string `json:"type"`
	ChatID   string `json:"chatId,omitempty"`
	From     string `json:"from,omitempty"`
	Body     string `json:"body,omitempty"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ParseFrame decodes and validates an inbound frame.
func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("parsing frame: %w", err)
	}
	if f.Type != FrameMessage {
		return Frame{}, fmt.Errorf("unexpected frame type %q", f.Type)
	}
	if f.ChatID == "" {
		return Frame{}, fmt.Errorf("frame missing chatId")
	}
	if f.Body == "" && len(f.Data) == 0 {
		return Frame{}, fmt.Errorf("frame has neither body nor data")
	}
	return f, nil
}

// errorFrame builds an error frame for a failed request.
func errorFrame(msg string) Frame {
	return Frame{Type: FrameError, Error: msg}
}
