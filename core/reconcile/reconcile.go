// Package reconcile decides whether an inbound message is new, a
// duplicate, or a self-echo.
//
// It tracks recently confirmed message ids in a bounded set with
// circular eviction, and remembers the last locally-sent message so the
// client's own message re-arriving through the sync channel can be
// suppressed. Self-echo detection is exact when the backend echoes the
// client nonce, and a content+timing heuristic otherwise.
package reconcile

import (
	"sync"
	"time"

	"github.com/anonroom/anonroom-go/core"
)

const (
	// DefaultMaxKnownIDs is the default capacity of the known-id set.
	DefaultMaxKnownIDs = 512

	// SelfEchoWindow is how close to the last send an identical
	// message must arrive to be treated as a self-echo.
	SelfEchoWindow = 1000 * time.Millisecond
)

// Verdict is the reconciler's decision for an inbound message.
type Verdict int

const (
	// Accept means the message is new: append it and render it.
	Accept Verdict = iota
	// DropDuplicate means the message id has already been seen.
	DropDuplicate
	// DropSelfEcho means the message is the client's own send
	// arriving back through the sync channel.
	DropSelfEcho
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case DropDuplicate:
		return "duplicate"
	case DropSelfEcho:
		return "self_echo"
	default:
		return "unknown"
	}
}

// Reconciler tracks seen message ids and the last sent message for a
// single room. Safe for concurrent use.
type Reconciler struct {
	mu       sync.Mutex
	known    map[int64]struct{}
	ring     []int64 // eviction order, oldest overwritten first
	next     int
	maxIDs   int
	lastSent *core.Message

	// nowFn allows overriding time.Now() for testing.
	nowFn func() time.Time
}

// New creates a Reconciler with the default known-id capacity.
func New() *Reconciler {
	return NewWithCapacity(DefaultMaxKnownIDs)
}

// NewWithCapacity creates a Reconciler whose known-id set holds at most
// maxIDs entries; the oldest entry is evicted when full.
func NewWithCapacity(maxIDs int) *Reconciler {
	if maxIDs <= 0 {
		maxIDs = DefaultMaxKnownIDs
	}
	return &Reconciler{
		known:  make(map[int64]struct{}, maxIDs),
		ring:   make([]int64, maxIDs),
		maxIDs: maxIDs,
		nowFn:  time.Now,
	}
}

// NoteSent records the most recent locally-sent message. Called on the
// send path before the backend confirms, so an echo arriving early is
// still matched.
func (r *Reconciler) NoteSent(m core.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sent := m
	r.lastSent = &sent
}

// Reconcile decides what to do with an inbound message. On Accept the
// message id is recorded in the known set; drops leave the set
// untouched.
func (r *Reconciler) Reconcile(incoming *core.Message) Verdict {
	r.mu.Lock()
	defer r.mu.Unlock()

	if incoming.ID != 0 {
		if _, seen := r.known[incoming.ID]; seen {
			return DropDuplicate
		}
	}

	if r.isSelfEchoLocked(incoming) {
		// The echo carries the server-assigned id the optimistic local
		// copy lacks; record it so a later redelivery is a plain duplicate.
		r.rememberLocked(incoming.ID)
		return DropSelfEcho
	}

	r.rememberLocked(incoming.ID)
	return Accept
}

// isSelfEchoLocked applies nonce matching first, then the
// content+timing heuristic. The heuristic can mis-suppress a genuine
// message from another sender with identical text inside the window;
// that race is a documented limitation of content-based matching.
func (r *Reconciler) isSelfEchoLocked(incoming *core.Message) bool {
	if r.lastSent == nil {
		return false
	}
	if incoming.Nonce != "" && incoming.Nonce == r.lastSent.Nonce {
		return true
	}
	age := r.nowFn().Sub(incoming.Timestamp)
	if age.Abs() >= SelfEchoWindow {
		return false
	}
	return incoming.Text == r.lastSent.Text && incoming.Author == r.lastSent.Author
}

// Remember records an id as seen without reconciling, used for messages
// the client appended itself (initial room load, confirmed sends).
func (r *Reconciler) Remember(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rememberLocked(id)
}

// Known reports whether an id is in the known set.
func (r *Reconciler) Known(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.known[id]
	return ok
}

// KnownCount returns the number of ids currently tracked.
func (r *Reconciler) KnownCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.known)
}

// Clear forgets all known ids and the last sent message.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.known)
	clear(r.ring)
	r.next = 0
	r.lastSent = nil
}

func (r *Reconciler) rememberLocked(id int64) {
	if id == 0 {
		return
	}
	if _, ok := r.known[id]; ok {
		return
	}
	if evicted := r.ring[r.next]; evicted != 0 {
		delete(r.known, evicted)
	}
	r.ring[r.next] = id
	r.next = (r.next + 1) % r.maxIDs
	r.known[id] = struct{}{}
}
