// Package transport provides the push-channel abstraction the engine
// uses to receive messages without polling.
package transport

import (
	"context"

	"github.com/anonroom/anonroom-go/core"
)

// Channel is the base interface for push-channel implementations.
// A channel carries per-room message streams; the engine subscribes to
// one topic per joined room and drains inbound messages through the
// message handler.
type Channel interface {
	// Start begins the channel's connection and message handling.
	// The provided context controls the channel's lifetime.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the channel.
	Stop() error
	// IsConnected returns true if the channel is currently connected.
	IsConnected() bool
	// Subscribe begins delivering the room's messages to the handler.
	Subscribe(roomID string) error
	// Unsubscribe stops delivery for the room.
	Unsubscribe(roomID string) error
	// Publish broadcasts a message on the room's topic.
	Publish(roomID string, m *core.Message) error
	// SetMessageHandler sets the callback for inbound room messages.
	SetMessageHandler(fn MessageHandler)
	// SetStateHandler sets the callback for channel state changes.
	SetStateHandler(fn StateHandler)
}

// MessageHandler is called when a room message arrives on the channel.
type MessageHandler func(roomID string, m *core.Message)

// StateHandler is called when the channel state changes.
type StateHandler func(ch Channel, event Event)

// Event represents channel state change events.
type Event int

const (
	// EventConnected is fired when the channel connects.
	EventConnected Event = iota
	// EventDisconnected is fired when the channel disconnects.
	EventDisconnected
	// EventReconnecting is fired when the channel is attempting to reconnect.
	EventReconnecting
	// EventError is fired when an error occurs.
	EventError
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnecting:
		return "reconnecting"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}
