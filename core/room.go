// Package core defines the domain types shared by the sync engine:
// rooms, messages, votes, and sessions.
package core

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	// RoomCodeLength is the length of a shareable room code.
	RoomCodeLength = 8

	// roomCodeAlphabet excludes lowercase to keep codes easy to read aloud.
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Room is a bounded chat session identified by a shareable code.
// The canonical copy lives in the backing store; the in-memory copy is
// owned by whichever client currently has the room loaded.
type Room struct {
	ID           string    `json:"id"`
	Creator      string    `json:"creator"`
	Question     string    `json:"question"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	MessageLimit int       `json:"messageLimit"`
	Messages     []Message `json:"messages"`

	// EnforceExpiry controls whether Expired considers ExpiresAt.
	// Off by default: expiry is advisory in the current design.
	EnforceExpiry bool `json:"-"`
}

// CanAppend reports whether the room can accept another message under
// its message limit. A limit of 0 means unlimited.
func (r *Room) CanAppend() bool {
	return r.MessageLimit <= 0 || len(r.Messages) < r.MessageLimit
}

// Expired reports whether the room has passed its expiry time. Always
// false unless EnforceExpiry is set.
func (r *Room) Expired(now time.Time) bool {
	if !r.EnforceExpiry || r.ExpiresAt.IsZero() {
		return false
	}
	return now.After(r.ExpiresAt)
}

// FindMessage returns the message with the given id, or nil.
func (r *Room) FindMessage(id int64) *Message {
	for i := range r.Messages {
		if r.Messages[i].ID == id {
			return &r.Messages[i]
		}
	}
	return nil
}

// NewRoomCode generates a human-shareable room code.
func NewRoomCode() string {
	b := make([]byte, RoomCodeLength)
	for i := range b {
		b[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(b)
}

// ValidateRoomCode checks that a code is non-empty and well-formed.
func ValidateRoomCode(code string) error {
	if code == "" {
		return ErrEmptyRoomCode
	}
	if len(code) != RoomCodeLength {
		return fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidRoomCode, RoomCodeLength, len(code))
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return fmt.Errorf("%w: %q", ErrInvalidRoomCode, code)
		}
	}
	return nil
}

// Session records the active (room, user) pair so a reload can restore
// it. Refreshed on activity, invalid after SessionMaxAge.
type Session struct {
	RoomID    string    `json:"roomId"`
	UserName  string    `json:"userName"`
	IsCreator bool      `json:"isCreator"`
	Timestamp time.Time `json:"timestamp"`
}
