// Package store defines the persistence contract for rooms and votes,
// and the remote-first fallback composition over its implementations.
//
// Implementations: store/postgres (remote relational backend) and
// store/local (embedded fallback). FallbackStore combines the two.
package store

import (
	"context"
	"errors"

	"github.com/anonroom/anonroom-go/core"
)

var (
	// ErrNotFound is returned when a room or message lookup fails.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when a backend cannot be reached.
	// FallbackStore treats it (and any other transport failure) as a
	// signal to degrade to the local store.
	ErrUnavailable = errors.New("backend unavailable")
)

// VoteResult is the outcome of a vote operation.
type VoteResult struct {
	// Removed is true when the vote toggled off.
	Removed bool
	// NewVote is the vote now in effect, empty when Removed.
	NewVote core.VoteType
	// Counts are the message's counters after the adjustment.
	Counts core.VoteCounts
}

// RoomStore is the interface for room persistence backends.
//
// Implementations must treat vote counter adjustments as atomic: two
// clients voting on the same message concurrently must both land.
type RoomStore interface {
	// CreateRoom persists a new room.
	CreateRoom(ctx context.Context, room *core.Room) error

	// GetRoom returns the room with its messages ordered by id.
	// Returns ErrNotFound if it does not exist.
	GetRoom(ctx context.Context, id string) (*core.Room, error)

	// SaveRoom persists the room's metadata. Messages flow through
	// SendMessage and are not rewritten here.
	SaveRoom(ctx context.Context, room *core.Room) error

	// SendMessage appends a message to a room. The store assigns the
	// final message id and zeroes the counters; the returned message
	// carries both.
	SendMessage(ctx context.Context, roomID string, m *core.Message) (*core.Message, error)

	// GetMessagesSince returns messages with id strictly greater than
	// afterID, ordered oldest to newest. The poll path's workhorse.
	GetMessagesSince(ctx context.Context, roomID string, afterID int64) ([]core.Message, error)

	// VoteMessage applies a vote toggle for the given fingerprint.
	// current is the caller's view of its existing vote; authoritative
	// backends may consult their own vote row instead.
	VoteMessage(ctx context.Context, roomID string, messageID int64, fp string, requested, current core.VoteType) (VoteResult, error)
}
