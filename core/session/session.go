// Package session persists and restores the active (room, user) pair
// across reloads.
//
// Restore fails closed: any parse error, missing room, or session older
// than MaxAge deletes the stored record and reports a reason instead of
// a partially-restored state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/anonroom/anonroom-go/core"
	"github.com/anonroom/anonroom-go/store"
)

// MaxAge is the session validity window.
const MaxAge = 24 * time.Hour

// blobKey is where the current session record lives in the blob store.
const blobKey = "session:current"

// Reason explains why a restore failed. Empty on success.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNoSession    Reason = "no_session"
	ReasonExpired      Reason = "session_expired"
	ReasonRoomNotFound Reason = "room_not_found"
	ReasonRoomExpired  Reason = "room_expired"
	ReasonRestoreError Reason = "restore_error"
)

// BlobStore is the raw key/value persistence the session record needs.
// store/local satisfies it.
type BlobStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// RoomLoader resolves the session's room on restore. Typically the
// engine's FallbackStore.
type RoomLoader interface {
	GetRoom(ctx context.Context, id string) (*core.Room, error)
}

// Config configures a session Store.
type Config struct {
	Blobs BlobStore
	Rooms RoomLoader

	// Logger for session events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Store persists the current session record.
type Store struct {
	cfg Config
	log *slog.Logger

	// nowFn allows overriding time.Now() for testing.
	nowFn func() time.Time
}

// NewStore creates a session store.
func NewStore(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:   cfg,
		log:   logger.WithGroup("session"),
		nowFn: time.Now,
	}
}

// Save writes the session record, stamping it with the current time.
func (s *Store) Save(sess core.Session) error {
	sess.Timestamp = s.nowFn()
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.cfg.Blobs.Set(blobKey, string(data))
}

// Refresh re-stamps the stored session's timestamp. A no-op when no
// session is stored.
func (s *Store) Refresh() error {
	raw, err := s.cfg.Blobs.Get(blobKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var sess core.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return err
	}
	return s.Save(sess)
}

// Clear deletes the stored session record.
func (s *Store) Clear() error {
	return s.cfg.Blobs.Delete(blobKey)
}

// Restore loads and validates the stored session, resolving its room.
// On any failure the record is cleared and only the reason is returned;
// there is no error surface because a failed restore is a soft event
// (the UI returns to the entry state).
func (s *Store) Restore(ctx context.Context) (*core.Room, *core.Session, Reason) {
	raw, err := s.cfg.Blobs.Get(blobKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ReasonNoSession
	}
	if err != nil {
		s.log.Warn("session read failed", "error", err)
		return s.failClosed(ReasonRestoreError)
	}

	var sess core.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.log.Warn("session record corrupt", "error", err)
		return s.failClosed(ReasonRestoreError)
	}

	if s.nowFn().Sub(sess.Timestamp) > MaxAge {
		return s.failClosed(ReasonExpired)
	}

	room, err := s.cfg.Rooms.GetRoom(ctx, sess.RoomID)
	if errors.Is(err, store.ErrNotFound) {
		return s.failClosed(ReasonRoomNotFound)
	}
	if err != nil {
		s.log.Warn("session room load failed", "room", sess.RoomID, "error", err)
		return s.failClosed(ReasonRestoreError)
	}
	if room.Expired(s.nowFn()) {
		return s.failClosed(ReasonRoomExpired)
	}

	return room, &sess, ReasonNone
}

func (s *Store) failClosed(reason Reason) (*core.Room, *core.Session, Reason) {
	if err := s.Clear(); err != nil {
		s.log.Warn("session clear failed", "error", err)
	}
	return nil, nil, reason
}
