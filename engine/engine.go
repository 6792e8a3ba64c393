package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anonroom/anonroom-go/core"
	"github.com/anonroom/anonroom-go/core/clock"
	"github.com/anonroom/anonroom-go/core/delivery"
	"github.com/anonroom/anonroom-go/core/reconcile"
	"github.com/anonroom/anonroom-go/core/session"
	"github.com/anonroom/anonroom-go/core/vote"
	"github.com/anonroom/anonroom-go/store"
	"github.com/anonroom/anonroom-go/transport"
)

// ErrNotInRoom is returned for operations on a room the engine has not
// joined (or has already left).
var ErrNotInRoom = errors.New("not in room")

// Status is the connection status surfaced to the UI indicator.
type Status int

const (
	// StatusOnline means push delivery is working.
	StatusOnline Status = iota
	// StatusReconnecting means push was lost and recovery is underway.
	StatusReconnecting
	// StatusOffline means push recovery was exhausted; the room runs on
	// local polling.
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusReconnecting:
		return "reconnecting"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// StatusEvent is a connection status transition for one room.
type StatusEvent struct {
	RoomID      string
	Status      Status
	Attempt     int
	MaxAttempts int
}

// VotesStore persists the local user's votes map across reloads.
// store/local satisfies it.
type VotesStore interface {
	LoadVotes(fp string) (map[string]core.VoteType, error)
	SaveVotes(fp string, votes map[string]core.VoteType) error
	ClearVotes(fp string) error
}

// Config configures an Engine.
type Config struct {
	// Store persists rooms and votes; typically a store.FallbackStore.
	Store store.RoomStore

	// Channel is the push channel. Nil means polling-only operation.
	Channel transport.Channel

	// Sessions persists the active session. May be nil.
	Sessions *session.Store

	// Votes persists the local votes map. May be nil (votes held in
	// memory only).
	Votes VotesStore

	// Clock is the engine's time source. Defaults to the system clock.
	Clock *clock.Clock

	// Fingerprint is the soft device identity scoping votes.
	Fingerprint string

	// Scheduler tunes per-room discovery.
	Scheduler SchedulerConfig

	// DeliveryMaxAge and DeliveryCleanupInterval tune the per-room
	// delivery trackers; zero values use the delivery defaults.
	DeliveryMaxAge          time.Duration
	DeliveryCleanupInterval time.Duration

	// OnMessage is called for every accepted inbound message, in
	// arrival order. May be nil.
	OnMessage func(roomID string, m core.Message)

	// OnStatus is called on connection status transitions. May be nil.
	OnStatus func(ev StatusEvent)

	// OnDelivery is called when a sent message's delivery state
	// changes. The key is the message nonce until the backend assigns
	// an id. May be nil.
	OnDelivery func(roomID, key string, state delivery.State)

	// Logger for engine events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// roomState is everything the engine owns for one joined room. All
// timers hang off ctx; cancelling it on leave releases the poll loop,
// the delivery cleanup loop, and any reconnection backoff at once.
type roomState struct {
	room    *core.Room
	user    core.Session
	rec     *reconcile.Reconciler
	tracker *delivery.Tracker
	sched   *scheduler
	ctx     context.Context
	cancel  context.CancelFunc
	lastID  int64 // highest message id observed, the poll cursor
}

// Engine drives the realtime sync for all joined rooms. Rooms are
// keyed by id in an owned table; there is no ambient singleton state,
// so multiple rooms (and tests) stay isolated.
type Engine struct {
	cfg Config
	log *slog.Logger

	mu    sync.Mutex
	rooms map[string]*roomState
	votes map[string]core.VoteType // "{roomID}:{messageID}" -> vote
}

// New creates an engine and wires the push channel handlers.
func New(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	cfg.Scheduler = cfg.Scheduler.withDefaults()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:   cfg,
		log:   logger.WithGroup("engine"),
		rooms: make(map[string]*roomState),
		votes: make(map[string]core.VoteType),
	}
	e.loadVotes()

	if cfg.Channel != nil {
		cfg.Channel.SetMessageHandler(e.handleChannelMessage)
		cfg.Channel.SetStateHandler(e.handleChannelEvent)
	}
	return e
}

// CreateRoom creates a room with a fresh shareable code, persists it,
// and joins it as the creator.
func (e *Engine) CreateRoom(ctx context.Context, creator, question string, messageLimit int, ttl time.Duration) (*core.Room, error) {
	now := e.cfg.Clock.Now()
	room := &core.Room{
		ID:           core.NewRoomCode(),
		Creator:      creator,
		Question:     question,
		CreatedAt:    now,
		MessageLimit: messageLimit,
	}
	if ttl > 0 {
		room.ExpiresAt = now.Add(ttl)
	}

	if err := e.cfg.Store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("creating room: %w", err)
	}

	sess := core.Session{RoomID: room.ID, UserName: creator, IsCreator: true}
	e.saveSession(sess)
	e.enterRoom(room, sess)
	return room, nil
}

// JoinRoom loads an existing room by code and joins it.
func (e *Engine) JoinRoom(ctx context.Context, code, userName string) (*core.Room, error) {
	if err := core.ValidateRoomCode(code); err != nil {
		return nil, err
	}

	room, err := e.cfg.Store.GetRoom(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, core.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading room: %w", err)
	}
	if room.Expired(e.cfg.Clock.Now()) {
		return nil, core.ErrRoomExpired
	}

	sess := core.Session{RoomID: room.ID, UserName: userName, IsCreator: userName == room.Creator}
	e.saveSession(sess)
	e.enterRoom(room, sess)
	return room, nil
}

// RestoreSession re-enters the room recorded by a previous visit.
// A failed restore is soft: the reason is reported, no error surfaces.
func (e *Engine) RestoreSession(ctx context.Context) (*core.Room, session.Reason) {
	if e.cfg.Sessions == nil {
		return nil, session.ReasonNoSession
	}
	room, sess, reason := e.cfg.Sessions.Restore(ctx)
	if reason != session.ReasonNone {
		return nil, reason
	}
	e.enterRoom(room, *sess)
	return room, session.ReasonNone
}

// LeaveRoom releases everything the engine holds for the room: poll
// and cleanup timers, reconnection backoff, the push subscription, the
// reconciler state, and the stored session.
func (e *Engine) LeaveRoom(roomID string) {
	e.mu.Lock()
	rs, ok := e.rooms[roomID]
	if ok {
		delete(e.rooms, roomID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	rs.sched.Stop()
	rs.cancel()
	rs.rec.Clear()

	if e.cfg.Channel != nil {
		if err := e.cfg.Channel.Unsubscribe(roomID); err != nil {
			e.log.Warn("unsubscribe failed", "room", roomID, "error", err)
		}
	}
	if e.cfg.Sessions != nil {
		if err := e.cfg.Sessions.Clear(); err != nil {
			e.log.Warn("session clear failed", "error", err)
		}
	}
	e.log.Info("left room", "room", roomID)
}

// Send validates and sends a message, reflecting it optimistically
// before the backend confirms. The message limit is checked locally;
// a full room rejects the send without contacting the backend.
func (e *Engine) Send(ctx context.Context, roomID, text string, anonymous bool) (*core.Message, error) {
	e.mu.Lock()
	rs, ok := e.rooms[roomID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrNotInRoom
	}

	author := rs.user.UserName
	if anonymous {
		author = core.AnonymousName
	}
	msg := core.Message{
		Nonce:       uuid.NewString(),
		Text:        text,
		IsAnonymous: anonymous,
		Author:      author,
		Timestamp:   e.cfg.Clock.Unique(),
	}
	if err := msg.Validate(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if !rs.room.CanAppend() {
		e.mu.Unlock()
		return nil, core.ErrMessageLimitReached
	}

	// Optimistic local state: visible immediately, marked "sending".
	rs.rec.NoteSent(msg)
	rs.tracker.SetState(msg.Nonce, delivery.StateSending)
	rs.room.Messages = append(rs.room.Messages, msg)
	e.mu.Unlock()

	e.notifyDelivery(roomID, msg.Nonce, delivery.StateSending)

	stored, err := e.cfg.Store.SendMessage(ctx, roomID, &msg)
	if err != nil {
		// The failed message must not keep a message-limit slot; the
		// delivery entry carries the error to the UI instead.
		e.mu.Lock()
		if e.rooms[roomID] == rs {
			rs.room.Messages = removeByNonce(rs.room.Messages, msg.Nonce)
		}
		e.mu.Unlock()
		rs.tracker.SetState(msg.Nonce, delivery.StateError)
		e.notifyDelivery(roomID, msg.Nonce, delivery.StateError)
		return nil, fmt.Errorf("sending message: %w", err)
	}

	// The room may have been left while the send was in flight; the
	// stale state must not be resurrected.
	e.mu.Lock()
	if e.rooms[roomID] != rs {
		e.mu.Unlock()
		return stored, nil
	}
	if m := findByNonce(rs.room.Messages, msg.Nonce); m != nil {
		m.ID = stored.ID
		m.Timestamp = stored.Timestamp
	}
	rs.rec.Remember(stored.ID)
	if stored.ID > rs.lastID {
		rs.lastID = stored.ID
	}
	e.mu.Unlock()

	rs.tracker.Promote(msg.Nonce, messageKey(stored.ID))
	rs.tracker.SetState(messageKey(stored.ID), delivery.StateSent)
	e.notifyDelivery(roomID, messageKey(stored.ID), delivery.StateSent)
	rs.sched.NotifyActivity()
	e.refreshSession()

	// Best-effort broadcast so peers get the message as a push instead
	// of waiting out a poll interval.
	if e.cfg.Channel != nil && e.cfg.Channel.IsConnected() {
		if perr := e.cfg.Channel.Publish(roomID, stored); perr != nil {
			e.log.Debug("publish failed", "room", roomID, "error", perr)
		}
	}

	return stored, nil
}

// Vote applies a vote toggle for the local user, optimistically
// reflecting it before the backend confirms. A failed remote vote
// leaves the optimistic counts in place; they converge on the next
// room load.
func (e *Engine) Vote(ctx context.Context, roomID string, messageID int64, requested core.VoteType) (store.VoteResult, error) {
	if !requested.Valid() {
		return store.VoteResult{}, core.ErrInvalidVoteType
	}

	key := voteKey(roomID, messageID)

	e.mu.Lock()
	rs, ok := e.rooms[roomID]
	if !ok {
		e.mu.Unlock()
		return store.VoteResult{}, ErrNotInRoom
	}
	current := e.votes[key]
	out, err := vote.Resolve(current, requested)
	if err != nil {
		e.mu.Unlock()
		return store.VoteResult{}, err
	}
	if msg := rs.room.FindMessage(messageID); msg != nil {
		vote.Apply(&msg.Votes, out)
	}
	if out.Removed {
		delete(e.votes, key)
	} else {
		e.votes[key] = out.NewVote
	}
	e.mu.Unlock()

	e.persistVotes()

	res, err := e.cfg.Store.VoteMessage(ctx, roomID, messageID, e.cfg.Fingerprint, requested, current)
	if err != nil {
		e.log.Warn("remote vote failed, keeping optimistic state", "room", roomID, "message", messageID, "error", err)
		return store.VoteResult{
			Removed: out.Removed,
			NewVote: out.NewVote,
		}, nil
	}

	// Adopt the authoritative counters.
	e.mu.Lock()
	if cur := e.rooms[roomID]; cur == rs {
		if msg := rs.room.FindMessage(messageID); msg != nil {
			msg.Votes = res.Counts
		}
	}
	e.mu.Unlock()

	e.refreshSession()
	return res, nil
}

// CurrentVote returns the local user's vote on a message, if any.
func (e *Engine) CurrentVote(roomID string, messageID int64) core.VoteType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.votes[voteKey(roomID, messageID)]
}

// Room returns a snapshot of a joined room's state.
func (e *Engine) Room(roomID string) (*core.Room, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rs, ok := e.rooms[roomID]
	if !ok {
		return nil, false
	}
	snapshot := *rs.room
	snapshot.Messages = append([]core.Message(nil), rs.room.Messages...)
	return &snapshot, true
}

// DeliveryState returns the delivery entry for a sent message key.
func (e *Engine) DeliveryState(roomID, key string) (delivery.Entry, bool) {
	e.mu.Lock()
	rs, ok := e.rooms[roomID]
	e.mu.Unlock()
	if !ok {
		return delivery.Entry{}, false
	}
	return rs.tracker.Get(key)
}

// Mode returns a joined room's discovery mode.
func (e *Engine) Mode(roomID string) (Mode, bool) {
	e.mu.Lock()
	rs, ok := e.rooms[roomID]
	e.mu.Unlock()
	if !ok {
		return ModeStopped, false
	}
	return rs.sched.Mode(), true
}

// NotifyRoomActivity resets the room's poll backoff; external callers
// (UI events, presence signals) use it to speed discovery up.
func (e *Engine) NotifyRoomActivity(roomID string) {
	e.mu.Lock()
	rs, ok := e.rooms[roomID]
	e.mu.Unlock()
	if ok {
		rs.sched.NotifyActivity()
	}
}

// HandleNetworkChange feeds the host environment's connectivity signal
// to the store and the per-room schedulers.
func (e *Engine) HandleNetworkChange(online bool) {
	if fb, ok := e.cfg.Store.(*store.FallbackStore); ok {
		fb.HandleNetworkChange(online)
	}

	e.mu.Lock()
	states := make([]*roomState, 0, len(e.rooms))
	for _, rs := range e.rooms {
		states = append(states, rs)
	}
	e.mu.Unlock()

	for _, rs := range states {
		if !online {
			if rs.sched.ConnectionLost() {
				go e.reconnectLoop(rs)
			}
			continue
		}
		// Back online: a reconnecting room can recover immediately.
		if rs.sched.Mode() == ModeReconnecting && e.cfg.Channel != nil && e.cfg.Channel.IsConnected() {
			e.recoverRoom(rs)
		}
	}
}

// ClearData wipes the local user's votes and session.
func (e *Engine) ClearData() {
	e.mu.Lock()
	clear(e.votes)
	e.mu.Unlock()

	if e.cfg.Votes != nil && e.cfg.Fingerprint != "" {
		if err := e.cfg.Votes.ClearVotes(e.cfg.Fingerprint); err != nil {
			e.log.Warn("clearing votes failed", "error", err)
		}
	}
	if e.cfg.Sessions != nil {
		if err := e.cfg.Sessions.Clear(); err != nil {
			e.log.Warn("clearing session failed", "error", err)
		}
	}
}

// enterRoom installs the per-room state and starts its loops.
func (e *Engine) enterRoom(room *core.Room, sess core.Session) {
	ctx, cancel := context.WithCancel(context.Background())

	rs := &roomState{
		room:   room,
		user:   sess,
		rec:    reconcile.New(),
		ctx:    ctx,
		cancel: cancel,
		sched:  newScheduler(e.cfg.Scheduler, e.cfg.Channel != nil),
	}
	rs.tracker = delivery.NewTracker(delivery.TrackerConfig{
		MaxAge:          e.cfg.DeliveryMaxAge,
		CleanupInterval: e.cfg.DeliveryCleanupInterval,
		Logger:          e.log,
	})
	for i := range room.Messages {
		rs.rec.Remember(room.Messages[i].ID)
		if room.Messages[i].ID > rs.lastID {
			rs.lastID = room.Messages[i].ID
		}
	}

	e.mu.Lock()
	// Re-entering a room tears down the previous state first.
	if old, ok := e.rooms[room.ID]; ok {
		old.sched.Stop()
		old.cancel()
	}
	e.rooms[room.ID] = rs
	e.mu.Unlock()

	go rs.tracker.Start(ctx)
	go e.pollLoop(ctx, room.ID, rs)

	if e.cfg.Channel != nil {
		if err := e.cfg.Channel.Subscribe(room.ID); err != nil {
			e.log.Warn("subscribe failed, falling back to polling", "room", room.ID, "error", err)
			if rs.sched.ConnectionLost() {
				go e.reconnectLoop(rs)
			}
		}
	}
	e.log.Info("entered room", "room", room.ID, "user", sess.UserName, "mode", rs.sched.Mode().String())
}

// pollLoop discovers messages at the scheduler's adaptive interval.
// While the room is subscribed the loop idles; it does the work only
// in polling mode.
func (e *Engine) pollLoop(ctx context.Context, roomID string, rs *roomState) {
	timer := time.NewTimer(rs.sched.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if rs.sched.Mode() == ModePolling {
				e.pollOnce(ctx, roomID, rs)
			}
			timer.Reset(rs.sched.Interval())
		}
	}
}

// pollOnce fetches messages past the cursor and runs them through the
// same inbound path as pushed messages.
func (e *Engine) pollOnce(ctx context.Context, roomID string, rs *roomState) {
	e.mu.Lock()
	cursor := rs.lastID
	e.mu.Unlock()

	msgs, err := e.cfg.Store.GetMessagesSince(ctx, roomID, cursor)
	if err != nil {
		e.log.Debug("poll failed", "room", roomID, "error", err)
		rs.sched.NoteEmptyPoll()
		return
	}

	accepted := 0
	for i := range msgs {
		if e.acceptInbound(roomID, rs, &msgs[i]) {
			accepted++
		}
	}
	if accepted == 0 {
		rs.sched.NoteEmptyPoll()
	}
}

// handleChannelMessage is the push channel's inbound entry point.
func (e *Engine) handleChannelMessage(roomID string, m *core.Message) {
	e.mu.Lock()
	rs, ok := e.rooms[roomID]
	e.mu.Unlock()
	if !ok {
		// A message for a room we already left; the subscription race
		// is harmless.
		return
	}
	e.acceptInbound(roomID, rs, m)
}

// acceptInbound reconciles one inbound message and applies the accept
// side effects: append in arrival order, advance the poll cursor,
// notify activity, render, persist. Returns true when accepted.
func (e *Engine) acceptInbound(roomID string, rs *roomState, m *core.Message) bool {
	verdict := rs.rec.Reconcile(m)
	switch verdict {
	case reconcile.DropDuplicate:
		// A dropped duplicate can still be the echo of our own send:
		// the send confirmation already remembered the final id. Only
		// messages we are tracking get promoted.
		if e.isTracked(rs, m) {
			e.markDelivered(roomID, rs, m)
		}
		return false

	case reconcile.DropSelfEcho:
		// Our own message came back: the round trip is complete.
		e.markDelivered(roomID, rs, m)
		return false
	}

	e.mu.Lock()
	if e.rooms[roomID] != rs {
		e.mu.Unlock()
		return false
	}
	rs.room.Messages = append(rs.room.Messages, *m)
	if m.ID > rs.lastID {
		rs.lastID = m.ID
	}
	snapshot := *rs.room
	snapshot.Messages = append([]core.Message(nil), rs.room.Messages...)
	e.mu.Unlock()

	rs.sched.NotifyActivity()

	if e.cfg.OnMessage != nil {
		e.cfg.OnMessage(roomID, *m)
	}

	// Best-effort persistence of the updated snapshot; a failure only
	// costs fallback freshness.
	if err := e.cfg.Store.SaveRoom(context.Background(), &snapshot); err != nil {
		e.log.Debug("room snapshot save failed", "room", roomID, "error", err)
	}
	e.refreshSession()
	return true
}

// isTracked reports whether the tracker holds an entry for the message,
// under either its final id key or its client nonce.
func (e *Engine) isTracked(rs *roomState, m *core.Message) bool {
	if _, ok := rs.tracker.Get(messageKey(m.ID)); ok {
		return true
	}
	if m.Nonce == "" {
		return false
	}
	_, ok := rs.tracker.Get(m.Nonce)
	return ok
}

// markDelivered promotes a sent message's delivery state when its echo
// arrives. The tracker entry may still be keyed by nonce if the echo
// beat the send confirmation.
func (e *Engine) markDelivered(roomID string, rs *roomState, m *core.Message) {
	key := messageKey(m.ID)
	if _, ok := rs.tracker.Get(key); !ok && m.Nonce != "" {
		if _, ok := rs.tracker.Get(m.Nonce); ok {
			key = m.Nonce
		}
	}
	rs.tracker.SetState(key, delivery.StateDelivered)
	e.notifyDelivery(roomID, key, delivery.StateDelivered)
}

// handleChannelEvent reacts to push channel connectivity transitions.
func (e *Engine) handleChannelEvent(_ transport.Channel, event transport.Event) {
	switch event {
	case transport.EventDisconnected:
		e.mu.Lock()
		states := make([]*roomState, 0, len(e.rooms))
		for _, rs := range e.rooms {
			states = append(states, rs)
		}
		e.mu.Unlock()
		for _, rs := range states {
			if rs.sched.ConnectionLost() {
				go e.reconnectLoop(rs)
			}
		}

	case transport.EventConnected:
		e.mu.Lock()
		states := make([]*roomState, 0, len(e.rooms))
		for _, rs := range e.rooms {
			states = append(states, rs)
		}
		e.mu.Unlock()
		for _, rs := range states {
			if rs.sched.Mode() == ModeReconnecting {
				e.recoverRoom(rs)
			}
		}

	case transport.EventError:
		e.log.Debug("channel error event")
	}
}

// reconnectLoop retries the push subscription with growing delays until
// it recovers, the attempt cap moves the room to permanent polling, or
// the room is left (its context cancels the backoff timer).
func (e *Engine) reconnectLoop(rs *roomState) {
	roomID := rs.room.ID
	maxAttempts := e.cfg.Scheduler.MaxReconnectAttempts

	for {
		delay, attempt, ok := rs.sched.NextRetry()
		if !ok {
			if rs.sched.Mode() == ModePolling {
				e.log.Info("push recovery exhausted, polling permanently", "room", roomID)
				e.notifyStatus(StatusEvent{RoomID: roomID, Status: StatusOffline, Attempt: attempt - 1, MaxAttempts: maxAttempts})
			}
			return
		}

		e.notifyStatus(StatusEvent{RoomID: roomID, Status: StatusReconnecting, Attempt: attempt, MaxAttempts: maxAttempts})

		timer := time.NewTimer(delay)
		select {
		case <-rs.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if rs.sched.Mode() != ModeReconnecting {
			// Left the room, or recovered via a connect event.
			return
		}
		if e.cfg.Channel != nil && e.cfg.Channel.IsConnected() {
			e.recoverRoom(rs)
			return
		}
	}
}

// recoverRoom re-establishes the room's subscription after the channel
// came back.
func (e *Engine) recoverRoom(rs *roomState) {
	roomID := rs.room.ID
	if err := e.cfg.Channel.Subscribe(roomID); err != nil {
		e.log.Warn("resubscribe failed", "room", roomID, "error", err)
		return
	}
	rs.sched.Reconnected()
	e.log.Info("push recovered", "room", roomID)
	e.notifyStatus(StatusEvent{RoomID: roomID, Status: StatusOnline})
}

func (e *Engine) notifyStatus(ev StatusEvent) {
	if e.cfg.OnStatus != nil {
		e.cfg.OnStatus(ev)
	}
}

func (e *Engine) notifyDelivery(roomID, key string, state delivery.State) {
	if e.cfg.OnDelivery != nil {
		e.cfg.OnDelivery(roomID, key, state)
	}
}

func (e *Engine) saveSession(sess core.Session) {
	if e.cfg.Sessions == nil {
		return
	}
	if err := e.cfg.Sessions.Save(sess); err != nil {
		e.log.Warn("session save failed", "error", err)
	}
}

func (e *Engine) refreshSession() {
	if e.cfg.Sessions == nil {
		return
	}
	if err := e.cfg.Sessions.Refresh(); err != nil {
		e.log.Warn("session refresh failed", "error", err)
	}
}

func (e *Engine) loadVotes() {
	if e.cfg.Votes == nil || e.cfg.Fingerprint == "" {
		return
	}
	votes, err := e.cfg.Votes.LoadVotes(e.cfg.Fingerprint)
	if err != nil {
		e.log.Warn("loading votes failed", "error", err)
		return
	}
	if votes == nil {
		votes = make(map[string]core.VoteType)
	}
	e.mu.Lock()
	e.votes = votes
	e.mu.Unlock()
}

func (e *Engine) persistVotes() {
	if e.cfg.Votes == nil || e.cfg.Fingerprint == "" {
		return
	}
	e.mu.Lock()
	snapshot := make(map[string]core.VoteType, len(e.votes))
	for k, v := range e.votes {
		snapshot[k] = v
	}
	e.mu.Unlock()
	if err := e.cfg.Votes.SaveVotes(e.cfg.Fingerprint, snapshot); err != nil {
		e.log.Warn("persisting votes failed", "error", err)
	}
}

func findByNonce(msgs []core.Message, nonce string) *core.Message {
	for i := range msgs {
		if msgs[i].Nonce == nonce {
			return &msgs[i]
		}
	}
	return nil
}

func removeByNonce(msgs []core.Message, nonce string) []core.Message {
	for i := range msgs {
		if msgs[i].Nonce == nonce {
			return append(msgs[:i], msgs[i+1:]...)
		}
	}
	return msgs
}

func messageKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func voteKey(roomID string, messageID int64) string {
	return roomID + ":" + strconv.FormatInt(messageID, 10)
}
