package core

import (
	"fmt"
	"strings"
	"time"
)

// MaxMessageLength is the maximum number of characters in a message.
const MaxMessageLength = 280

// AnonymousName is the author shown for anonymous sends.
const AnonymousName = "Anónimo"

// VoteType identifies one of the two vote directions.
type VoteType string

const (
	// VoteLike is an upvote.
	VoteLike VoteType = "like"
	// VoteDislike is a downvote.
	VoteDislike VoteType = "dislike"
)

// Valid reports whether v is a recognized vote type.
func (v VoteType) Valid() bool {
	return v == VoteLike || v == VoteDislike
}

// VoteCounts holds the aggregate vote counters for a message.
type VoteCounts struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// Message is a single chat message within a room. Immutable once
// confirmed, except for its vote counters.
type Message struct {
	// ID is the server-assigned message id. Zero until the backend
	// confirms the send; the Nonce identifies the message until then.
	ID int64 `json:"id"`

	// Nonce is a client-generated identifier attached at send time.
	// Backends that echo it allow exact self-echo detection; backends
	// that drop it fall back to the content+timing heuristic.
	Nonce string `json:"nonce,omitempty"`

	Text        string     `json:"text"`
	IsAnonymous bool       `json:"isAnonymous"`
	Author      string     `json:"author"`
	Timestamp   time.Time  `json:"timestamp"`
	Votes       VoteCounts `json:"votes"`
}

// Validate checks the message against the length rules. Returns a
// validation error suitable for direct display to the user.
func (m *Message) Validate() error {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return ErrEmptyMessage
	}
	if n := len([]rune(m.Text)); n > MaxMessageLength {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLong, n, MaxMessageLength)
	}
	return nil
}
