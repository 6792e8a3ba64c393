package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/anonroom/anonroom-go/core"
)

// Compile-time interface check.
var _ RoomStore = (*FallbackStore)(nil)

// FallbackStore is a RoomStore that prefers a remote backend and
// silently degrades to a local store when the backend fails. Failures
// never propagate to the caller as long as the local store can serve
// the operation; the only user-visible effect is the availability
// signal consumed by the connection-status indicator.
type FallbackStore struct {
	remote RoomStore
	local  RoomStore
	log    *slog.Logger

	mu        sync.Mutex
	available bool

	// OnAvailabilityChange is called (outside the lock) when the
	// remote backend transitions between reachable and unreachable.
	// May be nil.
	OnAvailabilityChange func(available bool)
}

// NewFallbackStore combines a remote and a local store. remote may be
// nil, in which case every operation is served locally.
func NewFallbackStore(remote, local RoomStore, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackStore{
		remote:    remote,
		local:     local,
		log:       logger.WithGroup("fallback"),
		available: remote != nil,
	}
}

// Available reports whether the remote backend is currently reachable.
func (f *FallbackStore) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

// HandleNetworkChange feeds the host environment's connectivity signal.
// Going online re-enables the remote path; going offline disables it
// without waiting for the next failed call.
func (f *FallbackStore) HandleNetworkChange(online bool) {
	f.setAvailable(online && f.remote != nil)
}

// CreateRoom persists a new room, remote-first.
func (f *FallbackStore) CreateRoom(ctx context.Context, room *core.Room) error {
	if f.tryRemote() {
		err := f.remote.CreateRoom(ctx, room)
		if err == nil {
			f.setAvailable(true)
			// Mirror locally so a later backend outage can still load it.
			if lerr := f.local.SaveRoom(ctx, room); lerr != nil {
				f.log.Warn("local mirror failed", "room", room.ID, "error", lerr)
			}
			return nil
		}
		f.degrade("create room", room.ID, err)
	}
	return f.local.CreateRoom(ctx, room)
}

// SaveRoom persists room metadata, remote-first with a local snapshot
// on failure.
func (f *FallbackStore) SaveRoom(ctx context.Context, room *core.Room) error {
	if f.tryRemote() {
		err := f.remote.SaveRoom(ctx, room)
		if err == nil {
			f.setAvailable(true)
			return nil
		}
		f.degrade("save room", room.ID, err)
	}
	return f.local.SaveRoom(ctx, room)
}

// GetRoom loads a room, trying remote first and falling back to the
// local snapshot on failure or absence.
func (f *FallbackStore) GetRoom(ctx context.Context, id string) (*core.Room, error) {
	var remoteErr error
	if f.tryRemote() {
		room, err := f.remote.GetRoom(ctx, id)
		if err == nil {
			f.setAvailable(true)
			// Mirror locally so a later backend outage can still serve
			// sends and polls for the joined room.
			if lerr := f.local.SaveRoom(ctx, room); lerr != nil {
				f.log.Warn("local mirror failed", "room", room.ID, "error", lerr)
			}
			return room, nil
		}
		remoteErr = err
		if !errors.Is(err, ErrNotFound) {
			f.degrade("load room", id, err)
		}
	}

	room, err := f.local.GetRoom(ctx, id)
	if err == nil {
		return room, nil
	}
	if errors.Is(err, ErrNotFound) && remoteErr != nil && !errors.Is(remoteErr, ErrNotFound) {
		return nil, remoteErr
	}
	return nil, err
}

// SendMessage appends a message, remote-first.
func (f *FallbackStore) SendMessage(ctx context.Context, roomID string, m *core.Message) (*core.Message, error) {
	if f.tryRemote() {
		stored, err := f.remote.SendMessage(ctx, roomID, m)
		if err == nil {
			f.setAvailable(true)
			return stored, nil
		}
		f.degrade("send message", roomID, err)
	}
	return f.local.SendMessage(ctx, roomID, m)
}

// GetMessagesSince serves the poll path, remote-first.
func (f *FallbackStore) GetMessagesSince(ctx context.Context, roomID string, afterID int64) ([]core.Message, error) {
	if f.tryRemote() {
		msgs, err := f.remote.GetMessagesSince(ctx, roomID, afterID)
		if err == nil {
			f.setAvailable(true)
			return msgs, nil
		}
		f.degrade("poll messages", roomID, err)
	}
	return f.local.GetMessagesSince(ctx, roomID, afterID)
}

// VoteMessage applies a vote toggle, remote-first. The local path is
// not safe against concurrent voters; that is the fallback's documented
// single-client assumption.
func (f *FallbackStore) VoteMessage(ctx context.Context, roomID string, messageID int64, fp string, requested, current core.VoteType) (VoteResult, error) {
	if f.tryRemote() {
		res, err := f.remote.VoteMessage(ctx, roomID, messageID, fp, requested, current)
		if err == nil || errors.Is(err, core.ErrInvalidVoteType) || errors.Is(err, ErrNotFound) {
			if err == nil {
				f.setAvailable(true)
			}
			return res, err
		}
		f.degrade("vote", roomID, err)
	}
	return f.local.VoteMessage(ctx, roomID, messageID, fp, requested, current)
}

func (f *FallbackStore) tryRemote() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remote != nil && f.available
}

func (f *FallbackStore) degrade(op, id string, err error) {
	f.log.Warn("backend failed, using local store", "op", op, "id", id, "error", err)
	f.setAvailable(false)
}

func (f *FallbackStore) setAvailable(v bool) {
	f.mu.Lock()
	changed := f.available != v
	f.available = v
	fn := f.OnAvailabilityChange
	f.mu.Unlock()

	if changed && fn != nil {
		fn(v)
	}
}
