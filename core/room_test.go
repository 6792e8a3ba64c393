package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewRoomCode_Format(t *testing.T) {
	code := NewRoomCode()
	if len(code) != RoomCodeLength {
		t.Fatalf("code length = %d, want %d", len(code), RoomCodeLength)
	}
	if err := ValidateRoomCode(code); err != nil {
		t.Errorf("generated code %q should validate: %v", code, err)
	}
}

func TestValidateRoomCode_Empty(t *testing.T) {
	if err := ValidateRoomCode(""); !errors.Is(err, ErrEmptyRoomCode) {
		t.Errorf("empty code error = %v, want ErrEmptyRoomCode", err)
	}
}

func TestValidateRoomCode_BadLength(t *testing.T) {
	if err := ValidateRoomCode("ABC"); !errors.Is(err, ErrInvalidRoomCode) {
		t.Errorf("short code error = %v, want ErrInvalidRoomCode", err)
	}
}

func TestValidateRoomCode_BadCharacters(t *testing.T) {
	if err := ValidateRoomCode("room-ab1"); !errors.Is(err, ErrInvalidRoomCode) {
		t.Errorf("lowercase code error = %v, want ErrInvalidRoomCode", err)
	}
}

func TestRoom_CanAppend(t *testing.T) {
	r := &Room{MessageLimit: 2}

	if !r.CanAppend() {
		t.Error("empty room under limit should accept messages")
	}

	r.Messages = []Message{{ID: 1}, {ID: 2}}
	if r.CanAppend() {
		t.Error("room at limit should not accept messages")
	}
}

func TestRoom_CanAppend_Unlimited(t *testing.T) {
	r := &Room{MessageLimit: 0, Messages: make([]Message, 100)}
	if !r.CanAppend() {
		t.Error("limit 0 means unlimited")
	}
}

func TestRoom_Expired_NotEnforced(t *testing.T) {
	r := &Room{ExpiresAt: time.Now().Add(-time.Hour)}
	if r.Expired(time.Now()) {
		t.Error("expiry should be advisory unless EnforceExpiry is set")
	}
}

func TestRoom_Expired_Enforced(t *testing.T) {
	now := time.Now()
	r := &Room{ExpiresAt: now.Add(-time.Second), EnforceExpiry: true}
	if !r.Expired(now) {
		t.Error("past ExpiresAt with EnforceExpiry should be expired")
	}

	r.ExpiresAt = now.Add(time.Hour)
	if r.Expired(now) {
		t.Error("future ExpiresAt should not be expired")
	}
}

func TestRoom_FindMessage(t *testing.T) {
	r := &Room{Messages: []Message{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}}}

	if m := r.FindMessage(2); m == nil || m.Text != "b" {
		t.Errorf("FindMessage(2) = %v, want message b", m)
	}
	if m := r.FindMessage(99); m != nil {
		t.Errorf("FindMessage(99) = %v, want nil", m)
	}
}

func TestMessage_Validate(t *testing.T) {
	m := &Message{Text: "hello"}
	if err := m.Validate(); err != nil {
		t.Errorf("valid message rejected: %v", err)
	}
}

func TestMessage_Validate_Empty(t *testing.T) {
	m := &Message{Text: "   "}
	if err := m.Validate(); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("whitespace-only message error = %v, want ErrEmptyMessage", err)
	}
}

func TestMessage_Validate_TooLong(t *testing.T) {
	m := &Message{Text: strings.Repeat("x", MaxMessageLength+1)}
	if err := m.Validate(); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("overlong message error = %v, want ErrMessageTooLong", err)
	}
}

func TestMessage_Validate_BoundaryLength(t *testing.T) {
	m := &Message{Text: strings.Repeat("x", MaxMessageLength)}
	if err := m.Validate(); err != nil {
		t.Errorf("message at exactly the limit rejected: %v", err)
	}
}

func TestVoteType_Valid(t *testing.T) {
	if !VoteLike.Valid() || !VoteDislike.Valid() {
		t.Error("like and dislike should be valid")
	}
	if VoteType("upvote").Valid() {
		t.Error("unknown vote type should be invalid")
	}
}
