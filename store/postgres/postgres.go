// Package postgres implements the room store against a PostgreSQL
// backend using database/sql and lib/pq.
//
// Vote counter adjustments are performed server-side in a single
// transaction: the fingerprint's vote row is locked, the counters are
// adjusted relatively (likes = likes + delta), and the row is updated.
// Two concurrent voters therefore never clobber each other's increment.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/anonroom/anonroom-go/core"
	"github.com/anonroom/anonroom-go/core/vote"
	"github.com/anonroom/anonroom-go/store"
)

// Compile-time interface check.
var _ store.RoomStore = (*Store)(nil)

// Store is a PostgreSQL-backed room store.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open connects to the backend and ensures the schema exists.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := NewStore(db, logger)
	if err := s.CreateSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing database handle.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger.WithGroup("postgres")}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates all tables needed by the store.
// Safe to call multiple times.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS room (
    id TEXT PRIMARY KEY,
    creator TEXT NOT NULL,
    question TEXT NOT NULL DEFAULT '',
    message_limit INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS message (
    id BIGSERIAL PRIMARY KEY,
    room_id TEXT NOT NULL REFERENCES room(id) ON DELETE CASCADE,
    nonce TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    author TEXT NOT NULL,
    is_anonymous BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL,
    likes INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
    dislikes INTEGER NOT NULL DEFAULT 0 CHECK (dislikes >= 0)
);

CREATE INDEX IF NOT EXISTS idx_message_room_id ON message(room_id, id);

CREATE TABLE IF NOT EXISTS user_vote (
    message_id BIGINT NOT NULL REFERENCES message(id) ON DELETE CASCADE,
    fingerprint TEXT NOT NULL,
    vote TEXT NOT NULL CHECK (vote IN ('like', 'dislike')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (message_id, fingerprint)
);
`

// CreateRoom persists a new room row.
func (s *Store) CreateRoom(ctx context.Context, room *core.Room) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room (id, creator, question, message_limit, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, room.ID, room.Creator, room.Question, room.MessageLimit, room.CreatedAt, nullTime(room.ExpiresAt))
	if err != nil {
		return fmt.Errorf("creating room: %w", err)
	}
	return nil
}

// SaveRoom upserts the room's metadata row.
func (s *Store) SaveRoom(ctx context.Context, room *core.Room) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room (id, creator, question, message_limit, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			question = EXCLUDED.question,
			message_limit = EXCLUDED.message_limit,
			expires_at = EXCLUDED.expires_at
	`, room.ID, room.Creator, room.Question, room.MessageLimit, room.CreatedAt, nullTime(room.ExpiresAt))
	if err != nil {
		return fmt.Errorf("saving room: %w", err)
	}
	return nil
}

// GetRoom loads a room and its messages ordered by id.
func (s *Store) GetRoom(ctx context.Context, id string) (*core.Room, error) {
	room := &core.Room{ID: id}
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT creator, question, message_limit, created_at, expires_at
		FROM room WHERE id = $1
	`, id).Scan(&room.Creator, &room.Question, &room.MessageLimit, &room.CreatedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading room: %w", err)
	}
	if expires.Valid {
		room.ExpiresAt = expires.Time
	}

	room.Messages, err = s.GetMessagesSince(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// SendMessage inserts a message; the database assigns the id and the
// counters start at zero.
func (s *Store) SendMessage(ctx context.Context, roomID string, m *core.Message) (*core.Message, error) {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	stored := *m
	stored.Timestamp = ts
	stored.Votes = core.VoteCounts{}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO message (room_id, nonce, body, author, is_anonymous, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, roomID, m.Nonce, m.Text, m.Author, m.IsAnonymous, ts).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}
	return &stored, nil
}

// GetMessagesSince returns a room's messages with id > afterID,
// oldest first.
func (s *Store) GetMessagesSince(ctx context.Context, roomID string, afterID int64) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nonce, body, author, is_anonymous, created_at, likes, dislikes
		FROM message
		WHERE room_id = $1 AND id > $2
		ORDER BY id
	`, roomID, afterID)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var m core.Message
		if err := rows.Scan(&m.ID, &m.Nonce, &m.Text, &m.Author, &m.IsAnonymous,
			&m.Timestamp, &m.Votes.Likes, &m.Votes.Dislikes); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// VoteMessage applies a vote toggle inside a single transaction. The
// backend's own vote row is authoritative; the caller's view of its
// current vote is ignored here.
func (s *Store) VoteMessage(ctx context.Context, roomID string, messageID int64, fp string, requested, _ core.VoteType) (store.VoteResult, error) {
	if !requested.Valid() {
		return store.VoteResult{}, core.ErrInvalidVoteType
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.VoteResult{}, fmt.Errorf("beginning vote transaction: %w", err)
	}
	defer tx.Rollback()

	var current core.VoteType
	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT vote FROM user_vote
		WHERE message_id = $1 AND fingerprint = $2
		FOR UPDATE
	`, messageID, fp).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = ""
	case err != nil:
		return store.VoteResult{}, fmt.Errorf("loading vote row: %w", err)
	default:
		current = core.VoteType(existing)
	}

	out, err := vote.Resolve(current, requested)
	if err != nil {
		return store.VoteResult{}, err
	}

	// Relative counter adjustment: never read-modify-write from the client.
	result := store.VoteResult{Removed: out.Removed, NewVote: out.NewVote}
	err = tx.QueryRowContext(ctx, `
		UPDATE message
		SET likes = GREATEST(likes + $2, 0), dislikes = GREATEST(dislikes + $3, 0)
		WHERE id = $1 AND room_id = $4
		RETURNING likes, dislikes
	`, messageID, out.LikesDelta, out.DislikesDelta, roomID).Scan(&result.Counts.Likes, &result.Counts.Dislikes)
	if errors.Is(err, sql.ErrNoRows) {
		return store.VoteResult{}, store.ErrNotFound
	}
	if err != nil {
		return store.VoteResult{}, fmt.Errorf("adjusting counters: %w", err)
	}

	if out.Removed {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM user_vote WHERE message_id = $1 AND fingerprint = $2
		`, messageID, fp)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_vote (message_id, fingerprint, vote)
			VALUES ($1, $2, $3)
			ON CONFLICT (message_id, fingerprint) DO UPDATE SET vote = EXCLUDED.vote
		`, messageID, fp, string(out.NewVote))
	}
	if err != nil {
		return store.VoteResult{}, fmt.Errorf("recording vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return store.VoteResult{}, fmt.Errorf("committing vote: %w", err)
	}
	return result, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
