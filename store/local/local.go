// Package local implements the fallback room store on an embedded
// buntdb database.
//
// Rooms are stored as JSON blobs keyed by room id, the user's votes as
// a single map keyed by fingerprint, and the current session under a
// fixed key. The store assumes a single client: vote adjustments are
// plain in-memory read-modify-write, safe only because nothing else
// writes the local database.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/buntdb"

	"github.com/anonroom/anonroom-go/core"
	"github.com/anonroom/anonroom-go/core/vote"
	"github.com/anonroom/anonroom-go/store"
)

// Compile-time interface check.
var _ store.RoomStore = (*Store)(nil)

const (
	roomKeyPrefix  = "room:"
	votesKeyPrefix = "votes:"
	// SessionKey is the blob key holding the current session record.
	SessionKey = "session:current"
)

// Store is a buntdb-backed local store.
type Store struct {
	mu sync.Mutex
	db *buntdb.DB
}

// Open opens (or creates) a local store at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRoom persists a new room snapshot.
func (s *Store) CreateRoom(ctx context.Context, room *core.Room) error {
	return s.SaveRoom(ctx, room)
}

// SaveRoom writes the full room snapshot as JSON.
func (s *Store) SaveRoom(_ context.Context, room *core.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encoding room: %w", err)
	}
	return s.Set(roomKeyPrefix+room.ID, string(data))
}

// GetRoom loads a room snapshot. Returns store.ErrNotFound if absent.
func (s *Store) GetRoom(_ context.Context, id string) (*core.Room, error) {
	raw, err := s.Get(roomKeyPrefix + id)
	if err != nil {
		return nil, err
	}
	var room core.Room
	if err := json.Unmarshal([]byte(raw), &room); err != nil {
		return nil, fmt.Errorf("decoding room: %w", err)
	}
	return &room, nil
}

// SendMessage appends a message to the stored room snapshot, assigning
// the next id after the highest already present.
func (s *Store) SendMessage(ctx context.Context, roomID string, m *core.Message) (*core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	stored := *m
	stored.Votes = core.VoteCounts{}
	stored.ID = 1
	for i := range room.Messages {
		if room.Messages[i].ID >= stored.ID {
			stored.ID = room.Messages[i].ID + 1
		}
	}

	room.Messages = append(room.Messages, stored)
	if err := s.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetMessagesSince returns the stored room's messages with id > afterID.
func (s *Store) GetMessagesSince(ctx context.Context, roomID string, afterID int64) ([]core.Message, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	var out []core.Message
	for _, m := range room.Messages {
		if m.ID > afterID {
			out = append(out, m)
		}
	}
	return out, nil
}

// VoteMessage applies a vote toggle to the stored snapshot. The
// caller-supplied current vote is trusted; there is no per-fingerprint
// row locally beyond the votes map.
func (s *Store) VoteMessage(ctx context.Context, roomID string, messageID int64, fp string, requested, current core.VoteType) (store.VoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return store.VoteResult{}, err
	}
	msg := room.FindMessage(messageID)
	if msg == nil {
		return store.VoteResult{}, store.ErrNotFound
	}

	out, err := vote.Resolve(current, requested)
	if err != nil {
		return store.VoteResult{}, err
	}
	vote.Apply(&msg.Votes, out)

	if err := s.SaveRoom(ctx, room); err != nil {
		return store.VoteResult{}, err
	}

	votes, err := s.LoadVotes(fp)
	if err != nil {
		return store.VoteResult{}, err
	}
	key := voteKey(roomID, messageID)
	if out.Removed {
		delete(votes, key)
	} else {
		votes[key] = out.NewVote
	}
	if err := s.SaveVotes(fp, votes); err != nil {
		return store.VoteResult{}, err
	}

	return store.VoteResult{Removed: out.Removed, NewVote: out.NewVote, Counts: msg.Votes}, nil
}

// LoadVotes returns the fingerprint's votes map, keyed
// "{roomID}:{messageID}". An absent map is returned empty.
func (s *Store) LoadVotes(fp string) (map[string]core.VoteType, error) {
	raw, err := s.Get(votesKeyPrefix + fp)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]core.VoteType{}, nil
	}
	if err != nil {
		return nil, err
	}
	votes := map[string]core.VoteType{}
	if err := json.Unmarshal([]byte(raw), &votes); err != nil {
		return nil, fmt.Errorf("decoding votes: %w", err)
	}
	return votes, nil
}

// SaveVotes writes the fingerprint's votes map.
func (s *Store) SaveVotes(fp string, votes map[string]core.VoteType) error {
	data, err := json.Marshal(votes)
	if err != nil {
		return fmt.Errorf("encoding votes: %w", err)
	}
	return s.Set(votesKeyPrefix+fp, string(data))
}

// ClearVotes removes the fingerprint's votes map.
func (s *Store) ClearVotes(fp string) error {
	return s.Delete(votesKeyPrefix + fp)
}

// Get reads a raw blob. Returns store.ErrNotFound if the key is absent.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

// Set writes a raw blob.
func (s *Store) Set(key, value string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, value, nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes a blob. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func voteKey(roomID string, messageID int64) string {
	return fmt.Sprintf("%s:%d", roomID, messageID)
}
