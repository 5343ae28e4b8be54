package mirror

import (
	"sync"

	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

// Change describes one store transition, delivered to subscribers.
type Change struct {
	Mirror           *Mirror
	Watermark        uint64
	Outcome          Outcome
	RefreshRequested bool
}

// Store is the single-writer container for mirror state. The connection
// layer is the only writer; screens read through accessors and Subscribe.
type Store struct {
	mu      sync.RWMutex
	state   State
	subs    map[int]func(Change)
	nextSub int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		state: Empty(),
		subs:  make(map[int]func(Change)),
	}
}

// Mirror returns the current mirror. Callers must treat it as read-only.
func (st *Store) Mirror() *Mirror {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.Mirror
}

// Watermark returns the highest sequence accepted so far.
func (st *Store) Watermark() uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.Watermark
}

// NeedsRefresh reports whether a staleness event is awaiting a re-snapshot.
func (st *Store) NeedsRefresh() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.NeedsRefresh
}

// ApplyEvent runs the reducer and notifies subscribers on any accepted event.
func (st *Store) ApplyEvent(ev *protocol.Event) Outcome {
	st.mu.Lock()
	next, outcome := Apply(st.state, ev)
	st.state = next
	change := Change{
		Mirror:           next.Mirror,
		Watermark:        next.Watermark,
		Outcome:          outcome,
		RefreshRequested: next.NeedsRefresh,
	}
	subs := st.snapshotSubs()
	st.mu.Unlock()

	if outcome != OutcomeDropped {
		for _, fn := range subs {
			fn(change)
		}
	}
	return outcome
}

// InstallSnapshot replaces the mirror wholesale and clears the refresh flag.
func (st *Store) InstallSnapshot(snap *protocol.Snapshot) {
	st.mu.Lock()
	st.state = Install(st.state, snap)
	change := Change{
		Mirror:    st.state.Mirror,
		Watermark: st.state.Watermark,
		Outcome:   OutcomeApplied,
	}
	subs := st.snapshotSubs()
	st.mu.Unlock()

	for _, fn := range subs {
		fn(change)
	}
}

// ClearRefresh drops the refresh flag without touching the mirror. Used when
// a refresh attempt is abandoned during teardown.
func (st *Store) ClearRefresh() {
	st.mu.Lock()
	st.state.NeedsRefresh = false
	st.mu.Unlock()
}

// Reset returns the store to its pre-pairing state and notifies subscribers.
func (st *Store) Reset() {
	st.mu.Lock()
	st.state = Empty()
	change := Change{Mirror: st.state.Mirror, Outcome: OutcomeApplied}
	subs := st.snapshotSubs()
	st.mu.Unlock()

	for _, fn := range subs {
		fn(change)
	}
}

// Subscribe registers a change callback and returns its cancellation handle.
// Callbacks run on the writer's goroutine, outside store locks; they must
// not block.
func (st *Store) Subscribe(fn func(Change)) func() {
	st.mu.Lock()
	id := st.nextSub
	st.nextSub++
	st.subs[id] = fn
	st.mu.Unlock()

	return func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}

// snapshotSubs copies the subscriber list; callers hold st.mu.
func (st *Store) snapshotSubs() []func(Change) {
	out := make([]func(Change), 0, len(st.subs))
	for _, fn := range st.subs {
		out = append(out, fn)
	}
	return out
}
