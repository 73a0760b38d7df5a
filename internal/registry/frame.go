package registry

import (
	"encoding/json"
	"time"

	"bookclub-notify/internal/model"
)

// EventName names a frame on the live channel.
type EventName string

const (
	// EventConnected is the handshake frame sent right after subscribe.
	EventConnected EventName = "connected"
	// EventNotification carries a business notification payload.
	EventNotification EventName = "notification"
	// EventPing is the keep-alive frame sent by the heartbeat.
	EventPing EventName = "ping"
	// EventRoomClosed is the terminal frame broadcast when a room scope ends.
	EventRoomClosed EventName = "room_closed"
)

// Frame is the wire envelope for every message on a live connection.
type Frame struct {
	Event     EventName `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewFrame builds a frame with the current timestamp.
func NewFrame(event EventName, data any) *Frame {
	return &Frame{
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewEventFrame wraps a live event into a notification frame.
func NewEventFrame(ev model.LiveEvent) *Frame {
	return NewFrame(EventNotification, ev)
}

// Marshal encodes the frame as JSON.
func (f *Frame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}
