package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anonroom/anonroom-go/core"
	"github.com/anonroom/anonroom-go/core/delivery"
	"github.com/anonroom/anonroom-go/store"
	"github.com/anonroom/anonroom-go/transport"
)

// fakeRoomStore is an in-memory RoomStore with scriptable failures and
// call counting.
type fakeRoomStore struct {
	mu        sync.Mutex
	rooms     map[string]*core.Room
	nextID    int64
	failWith  error
	sendCalls int
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{rooms: map[string]*core.Room{}}
}

func (f *fakeRoomStore) addRoom(room *core.Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := *room
	f.rooms[room.ID] = &snapshot
}

func (f *fakeRoomStore) CreateRoom(_ context.Context, room *core.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	snapshot := *room
	f.rooms[room.ID] = &snapshot
	return nil
}

func (f *fakeRoomStore) SaveRoom(ctx context.Context, room *core.Room) error {
	return f.CreateRoom(ctx, room)
}

func (f *fakeRoomStore) GetRoom(_ context.Context, id string) (*core.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	room, ok := f.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	snapshot := *room
	snapshot.Messages = append([]core.Message(nil), room.Messages...)
	return &snapshot, nil
}

func (f *fakeRoomStore) SendMessage(_ context.Context, roomID string, m *core.Message) (*core.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	f.nextID++
	stored := *m
	stored.ID = f.nextID
	stored.Votes = core.VoteCounts{}
	room.Messages = append(room.Messages, stored)
	return &stored, nil
}

func (f *fakeRoomStore) GetMessagesSince(_ context.Context, roomID string, afterID int64) ([]core.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	var out []core.Message
	for _, m := range room.Messages {
		if m.ID > afterID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRoomStore) VoteMessage(_ context.Context, roomID string, messageID int64, _ string, requested, _ core.VoteType) (store.VoteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return store.VoteResult{}, f.failWith
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return store.VoteResult{}, store.ErrNotFound
	}
	msg := room.FindMessage(messageID)
	if msg == nil {
		return store.VoteResult{}, store.ErrNotFound
	}
	if requested == core.VoteLike {
		msg.Votes.Likes++
	} else {
		msg.Votes.Dislikes++
	}
	return store.VoteResult{NewVote: requested, Counts: msg.Votes}, nil
}

func (f *fakeRoomStore) setFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

// fakeChannel is an in-memory push channel the tests drive directly.
type fakeChannel struct {
	mu           sync.Mutex
	connected    bool
	subs         map[string]int
	unsubs       []string
	published    []core.Message
	msgHandler   transport.MessageHandler
	stateHandler transport.StateHandler
}

func newFakeChannel(connected bool) *fakeChannel {
	return &fakeChannel{connected: connected, subs: map[string]int{}}
}

func (c *fakeChannel) Start(context.Context) error { return nil }
func (c *fakeChannel) Stop() error                 { return nil }

func (c *fakeChannel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeChannel) Subscribe(roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[roomID]++
	return nil
}

func (c *fakeChannel) Unsubscribe(roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubs = append(c.unsubs, roomID)
	return nil
}

func (c *fakeChannel) Publish(_ string, m *core.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, *m)
	return nil
}

func (c *fakeChannel) SetMessageHandler(fn transport.MessageHandler) { c.msgHandler = fn }
func (c *fakeChannel) SetStateHandler(fn transport.StateHandler)     { c.stateHandler = fn }

func (c *fakeChannel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	handler := c.stateHandler
	c.mu.Unlock()
	if handler == nil {
		return
	}
	if v {
		handler(c, transport.EventConnected)
	} else {
		handler(c, transport.EventDisconnected)
	}
}

// deliver pushes a message through the engine's inbound path.
func (c *fakeChannel) deliver(roomID string, m *core.Message) {
	c.msgHandler(roomID, m)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCreateRoom(t *testing.T) {
	st := newFakeRoomStore()
	e := New(Config{Store: st})
	defer func() {
		if room, ok := firstRoom(e); ok {
			e.LeaveRoom(room)
		}
	}()

	room, err := e.CreateRoom(context.Background(), "Ana", "¿Qué opinas?", 0, time.Hour)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := core.ValidateRoomCode(room.ID); err != nil {
		t.Errorf("generated code %q should validate: %v", room.ID, err)
	}
	if _, err := st.GetRoom(context.Background(), room.ID); err != nil {
		t.Error("room should be persisted")
	}
	if mode, ok := e.Mode(room.ID); !ok || mode != ModePolling {
		t.Errorf("mode without channel = %v (%v), want polling", mode, ok)
	}
}

func firstRoom(e *Engine) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.rooms {
		return id, true
	}
	return "", false
}

func TestJoinRoom_Validation(t *testing.T) {
	e := New(Config{Store: newFakeRoomStore()})

	if _, err := e.JoinRoom(context.Background(), "", "Ana"); !errors.Is(err, core.ErrEmptyRoomCode) {
		t.Errorf("empty code error = %v, want ErrEmptyRoomCode", err)
	}
	if _, err := e.JoinRoom(context.Background(), "NOPE9999", "Ana"); !errors.Is(err, core.ErrRoomNotFound) {
		t.Errorf("unknown room error = %v, want ErrRoomNotFound", err)
	}
}

func TestJoinRoom_SubscribesWithChannel(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	ch := newFakeChannel(true)
	e := New(Config{Store: st, Channel: ch})
	defer e.LeaveRoom("ROOMAB12")

	if _, err := e.JoinRoom(context.Background(), "ROOMAB12", "Luis"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	if ch.subs["ROOMAB12"] != 1 {
		t.Errorf("subscriptions = %d, want 1", ch.subs["ROOMAB12"])
	}
	if mode, _ := e.Mode("ROOMAB12"); mode != ModeSubscribed {
		t.Errorf("mode = %v, want subscribed", mode)
	}
}

func TestSend_HappyPath(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	e := New(Config{Store: st})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	stored, err := e.Send(context.Background(), "ROOMAB12", "hola a todos", false)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if stored.ID == 0 {
		t.Error("store should assign the final id")
	}
	if stored.Author != "Ana" {
		t.Errorf("author = %q, want session user", stored.Author)
	}

	entry, ok := e.DeliveryState("ROOMAB12", messageKey(stored.ID))
	if !ok || entry.State != delivery.StateSent {
		t.Errorf("delivery = %v (%v), want sent", entry.State, ok)
	}

	room, _ := e.Room("ROOMAB12")
	if len(room.Messages) != 1 || room.Messages[0].ID != stored.ID {
		t.Errorf("room messages = %+v, want the confirmed send", room.Messages)
	}
}

func TestSend_Anonymous(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	e := New(Config{Store: st})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	stored, err := e.Send(context.Background(), "ROOMAB12", "hola", true)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if stored.Author != core.AnonymousName || !stored.IsAnonymous {
		t.Errorf("anonymous send = %+v", stored)
	}
}

func TestSend_Validation(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	e := New(Config{Store: st})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	if _, err := e.Send(context.Background(), "ROOMAB12", "   ", false); !errors.Is(err, core.ErrEmptyMessage) {
		t.Errorf("empty send error = %v, want ErrEmptyMessage", err)
	}
	if st.sendCalls != 0 {
		t.Error("validation failures must not contact the backend")
	}
}

func TestSend_LimitReached(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana", MessageLimit: 2})
	e := New(Config{Store: st})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	if _, err := e.Send(context.Background(), "ROOMAB12", "uno", false); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := e.Send(context.Background(), "ROOMAB12", "dos", false); err != nil {
		t.Fatalf("second send: %v", err)
	}

	_, err := e.Send(context.Background(), "ROOMAB12", "tres", false)
	if !errors.Is(err, core.ErrMessageLimitReached) {
		t.Fatalf("third send error = %v, want ErrMessageLimitReached", err)
	}
	if st.sendCalls != 2 {
		t.Errorf("backend send calls = %d, want 2 (limit rejected locally)", st.sendCalls)
	}
}

func TestSend_StoreFailure(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	e := New(Config{Store: st})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	st.setFailure(store.ErrUnavailable)
	_, err := e.Send(context.Background(), "ROOMAB12", "hola", false)
	if err == nil {
		t.Fatal("expected send failure")
	}

	// The optimistic entry is rolled back; the error survives only as
	// delivery feedback.
	room, _ := e.Room("ROOMAB12")
	if len(room.Messages) != 0 {
		t.Fatalf("failed message should be removed, got %d", len(room.Messages))
	}

	e.mu.Lock()
	rs := e.rooms["ROOMAB12"]
	e.mu.Unlock()
	if rs.tracker.Count() != 1 {
		t.Errorf("delivery entries = %d, want the errored send", rs.tracker.Count())
	}
}

func TestSend_FailedSendDoesNotConsumeLimit(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana", MessageLimit: 1})
	e := New(Config{Store: st})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	st.setFailure(store.ErrUnavailable)
	if _, err := e.Send(context.Background(), "ROOMAB12", "uno", false); err == nil {
		t.Fatal("expected send failure")
	}

	st.setFailure(nil)
	if _, err := e.Send(context.Background(), "ROOMAB12", "dos", false); err != nil {
		t.Fatalf("retry should fill the limit slot the failed send released: %v", err)
	}
}

func TestInbound_AcceptAndRender(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	ch := newFakeChannel(true)

	var mu sync.Mutex
	var rendered []core.Message
	e := New(Config{
		Store:   st,
		Channel: ch,
		OnMessage: func(_ string, m core.Message) {
			mu.Lock()
			rendered = append(rendered, m)
			mu.Unlock()
		},
	})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	m := &core.Message{ID: 10, Text: "hola", Author: "Luis", Timestamp: time.Now()}
	ch.deliver("ROOMAB12", m)

	mu.Lock()
	n := len(rendered)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("rendered = %d, want 1", n)
	}
	room, _ := e.Room("ROOMAB12")
	if len(room.Messages) != 1 || room.Messages[0].ID != 10 {
		t.Errorf("room messages = %+v", room.Messages)
	}
}

func TestInbound_DuplicateSuppressed(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	ch := newFakeChannel(true)

	var mu sync.Mutex
	rendered := 0
	e := New(Config{
		Store:   st,
		Channel: ch,
		OnMessage: func(string, core.Message) {
			mu.Lock()
			rendered++
			mu.Unlock()
		},
	})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	m := &core.Message{ID: 10, Text: "hola", Author: "Luis", Timestamp: time.Now()}
	for n_ := 0; n_ < 3; n_++ {
		ch.deliver("ROOMAB12", m)
	}

	mu.Lock()
	defer mu.Unlock()
	if rendered != 1 {
		t.Errorf("rendered = %d, want exactly 1 instance", rendered)
	}
}

func TestInbound_SelfEchoMarksDelivered(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	ch := newFakeChannel(true)

	var mu sync.Mutex
	rendered := 0
	e := New(Config{
		Store:   st,
		Channel: ch,
		OnMessage: func(string, core.Message) {
			mu.Lock()
			rendered++
			mu.Unlock()
		},
	})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	stored, err := e.Send(context.Background(), "ROOMAB12", "hola", false)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	// The broker loops our own publish back.
	echo := *stored
	ch.deliver("ROOMAB12", &echo)

	mu.Lock()
	n := rendered
	mu.Unlock()
	if n != 0 {
		t.Errorf("self-echo rendered %d times, want 0", n)
	}
	entry, ok := e.DeliveryState("ROOMAB12", messageKey(stored.ID))
	if !ok || entry.State != delivery.StateDelivered {
		t.Errorf("delivery = %v (%v), want delivered", entry.State, ok)
	}
}

func TestVote_OptimisticAndAuthoritative(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{
		ID: "ROOMAB12", Creator: "Ana",
		Messages: []core.Message{{ID: 1, Text: "hola", Author: "Ana"}},
	})
	e := New(Config{Store: st, Fingerprint: "fp1"})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Luis")

	res, err := e.Vote(context.Background(), "ROOMAB12", 1, core.VoteLike)
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if res.NewVote != core.VoteLike || res.Counts.Likes != 1 {
		t.Errorf("vote result = %+v", res)
	}
	if e.CurrentVote("ROOMAB12", 1) != core.VoteLike {
		t.Error("current vote should be recorded")
	}
}

func TestVote_RemoteFailureKeepsOptimisticState(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{
		ID: "ROOMAB12", Creator: "Ana",
		Messages: []core.Message{{ID: 1, Text: "hola", Author: "Ana"}},
	})
	e := New(Config{Store: st, Fingerprint: "fp1"})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Luis")

	st.setFailure(store.ErrUnavailable)
	res, err := e.Vote(context.Background(), "ROOMAB12", 1, core.VoteLike)
	if err != nil {
		t.Fatalf("Vote should degrade silently, got %v", err)
	}
	if res.NewVote != core.VoteLike {
		t.Errorf("result = %+v, want optimistic like", res)
	}

	room, _ := e.Room("ROOMAB12")
	if room.Messages[0].Votes.Likes != 1 {
		t.Error("optimistic counter should remain without rollback")
	}
}

// nilVotesStore exercises implementations that report no stored votes
// as a nil map rather than an empty one.
type nilVotesStore struct{}

func (nilVotesStore) LoadVotes(string) (map[string]core.VoteType, error) { return nil, nil }
func (nilVotesStore) SaveVotes(string, map[string]core.VoteType) error   { return nil }
func (nilVotesStore) ClearVotes(string) error                            { return nil }

func TestVote_NilPersistedVotesMap(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{
		ID: "ROOMAB12", Creator: "Ana",
		Messages: []core.Message{{ID: 1, Text: "hola", Author: "Ana"}},
	})
	e := New(Config{Store: st, Votes: nilVotesStore{}, Fingerprint: "fp1"})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Luis")

	if _, err := e.Vote(context.Background(), "ROOMAB12", 1, core.VoteLike); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if e.CurrentVote("ROOMAB12", 1) != core.VoteLike {
		t.Error("vote should be recorded despite the nil persisted map")
	}
}

func TestLeaveRoom_ReleasesResources(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	ch := newFakeChannel(true)
	e := New(Config{Store: st, Channel: ch})
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	e.mu.Lock()
	rs := e.rooms["ROOMAB12"]
	e.mu.Unlock()

	e.LeaveRoom("ROOMAB12")

	select {
	case <-rs.ctx.Done():
	default:
		t.Error("room context should be cancelled on leave")
	}
	if rs.sched.Mode() != ModeStopped {
		t.Errorf("scheduler mode = %v, want stopped", rs.sched.Mode())
	}
	if len(ch.unsubs) != 1 || ch.unsubs[0] != "ROOMAB12" {
		t.Errorf("unsubscribes = %v, want [ROOMAB12]", ch.unsubs)
	}
	if _, ok := e.Mode("ROOMAB12"); ok {
		t.Error("room state should be gone")
	}
}

func TestLeaveRoom_DeliveryEntriesCollected(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	e := New(Config{Store: st, DeliveryMaxAge: 10 * time.Millisecond})
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")
	e.Send(context.Background(), "ROOMAB12", "hola", false)

	e.mu.Lock()
	rs := e.rooms["ROOMAB12"]
	e.mu.Unlock()
	if rs.tracker.Count() == 0 {
		t.Fatal("send should leave a delivery entry")
	}

	e.LeaveRoom("ROOMAB12")

	// The next cleanup cycle after the entries age out removes them.
	time.Sleep(20 * time.Millisecond)
	rs.tracker.Cleanup()

	if rs.tracker.Count() != 0 {
		t.Errorf("delivery entries after cleanup = %d, want 0", rs.tracker.Count())
	}
}

func TestSendWhileLeaving_DoesNotResurrectState(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	e := New(Config{Store: st})
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	// Rejoin replaces the state; the old state's continuation must not
	// write into the new one.
	e.mu.Lock()
	old := e.rooms["ROOMAB12"]
	e.mu.Unlock()
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	e.mu.Lock()
	current := e.rooms["ROOMAB12"]
	e.mu.Unlock()
	if old == current {
		t.Fatal("rejoin should install fresh state")
	}
	select {
	case <-old.ctx.Done():
	default:
		t.Error("replaced state should be cancelled")
	}
	e.LeaveRoom("ROOMAB12")
}

func TestReconnect_ExhaustionDegradesToPolling(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	ch := newFakeChannel(true)

	var mu sync.Mutex
	var events []StatusEvent
	e := New(Config{
		Store:   st,
		Channel: ch,
		Scheduler: SchedulerConfig{
			MaxReconnectAttempts: 2,
			ReconnectBaseDelay:   time.Millisecond,
		},
		OnStatus: func(ev StatusEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	ch.setConnected(false)

	waitFor(t, "offline status event", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0 && events[len(events)-1].Status == StatusOffline
	})

	if mode, _ := e.Mode("ROOMAB12"); mode != ModePolling {
		t.Errorf("mode = %v, want permanent polling", mode)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) < 3 {
		t.Fatalf("events = %v, want reconnecting attempts then offline", events)
	}
	if events[0].Status != StatusReconnecting || events[0].Attempt != 1 {
		t.Errorf("first event = %+v, want reconnecting attempt 1", events[0])
	}
	last := events[len(events)-1]
	if last.Status != StatusOffline {
		t.Errorf("final event = %+v, want offline", last)
	}
}

func TestReconnect_Recovery(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})
	ch := newFakeChannel(true)

	var mu sync.Mutex
	var events []StatusEvent
	e := New(Config{
		Store:   st,
		Channel: ch,
		Scheduler: SchedulerConfig{
			MaxReconnectAttempts: 5,
			ReconnectBaseDelay:   5 * time.Millisecond,
		},
		OnStatus: func(ev StatusEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	ch.setConnected(false)
	waitFor(t, "reconnecting mode", func() bool {
		mode, _ := e.Mode("ROOMAB12")
		return mode == ModeReconnecting
	})

	ch.setConnected(true)
	waitFor(t, "subscribed mode", func() bool {
		mode, _ := e.Mode("ROOMAB12")
		return mode == ModeSubscribed
	})

	mu.Lock()
	defer mu.Unlock()
	sawOnline := false
	for _, ev := range events {
		if ev.Status == StatusOnline {
			sawOnline = true
		}
	}
	if !sawOnline {
		t.Errorf("events = %v, want an online transition", events)
	}
	if ch.subs["ROOMAB12"] < 2 {
		t.Errorf("subscriptions = %d, want resubscribe on recovery", ch.subs["ROOMAB12"])
	}
}

func TestPolling_DiscoversMessages(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{ID: "ROOMAB12", Creator: "Ana"})

	var mu sync.Mutex
	var rendered []core.Message
	e := New(Config{
		Store: st,
		Scheduler: SchedulerConfig{
			MinPollInterval: 5 * time.Millisecond,
			MaxPollInterval: 20 * time.Millisecond,
		},
		OnMessage: func(_ string, m core.Message) {
			mu.Lock()
			rendered = append(rendered, m)
			mu.Unlock()
		},
	})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Ana")

	// Another client writes directly to the backend.
	st.SendMessage(context.Background(), "ROOMAB12", &core.Message{Text: "desde otro", Author: "Luis", Timestamp: time.Now()})

	waitFor(t, "polled message", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(rendered) == 1
	})
}

func TestClearData(t *testing.T) {
	st := newFakeRoomStore()
	st.addRoom(&core.Room{
		ID: "ROOMAB12", Creator: "Ana",
		Messages: []core.Message{{ID: 1, Text: "hola", Author: "Ana"}},
	})
	e := New(Config{Store: st, Fingerprint: "fp1"})
	defer e.LeaveRoom("ROOMAB12")
	e.JoinRoom(context.Background(), "ROOMAB12", "Luis")
	e.Vote(context.Background(), "ROOMAB12", 1, core.VoteLike)

	e.ClearData()

	if e.CurrentVote("ROOMAB12", 1) != "" {
		t.Error("votes should be wiped")
	}
}
