package reminders

import (
	"container/heap"
	"math/rand/v2"
	"sync"
	"time"
)

type heapRef struct {
	userID   uint64
	id       int32
	nextTick time.Time
}

// refHeap is a container/heap min-heap ordered by nextTick, so the top of
// the heap is always the next reminder due to fire.
type refHeap []heapRef

func (h refHeap) Len() int            { return len(h) }
func (h refHeap) Less(i, j int) bool  { return h[i].nextTick.Before(h[j].nextTick) }
func (h refHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *refHeap) Push(x interface{}) { *h = append(*h, x.(heapRef)) }
func (h *refHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type reminderState struct {
	id          int32
	definition  Definition
	currentTick time.Time
	hasTick     bool
	defused     bool
}

func (s *reminderState) currentReminder() Reminder {
	hasTick := s.hasTick && !s.defused
	return Reminder{
		UserID:      s.definition.UserID(),
		ReminderID:  s.id,
		CurrentTick: s.currentTick,
		HasTick:     hasTick,
		Message:     s.definition.Message(),
	}
}

// fastForwardAfter advances the state's pending tick to the next one after
// then, but only if it currently has a pending tick and has not been
// defused — a defused state reports no next tick so Advance drops it from
// the index instead of re-queueing it.
func (s *reminderState) fastForwardAfter(then time.Time) (time.Time, bool) {
	if !s.hasTick || s.defused {
		return time.Time{}, false
	}
	next, ok := s.definition.NextTick(then)
	s.currentTick = next
	s.hasTick = ok
	return next, ok
}

// MemoryStore is the in-memory scheduling index: a min-heap of pending
// ticks plus a two-level user/id lookup. A heap entry is never surgically
// removed on defuse; it is left to be popped in order and discarded as a
// no-op tombstone once it reaches the front (DequeueNext drops the defused
// state from the index and moves on to the next entry).
type MemoryStore struct {
	mu     sync.Mutex
	queue  refHeap
	lookup map[uint64]map[int32]*reminderState
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		queue:  refHeap{},
		lookup: make(map[uint64]map[int32]*reminderState),
	}
}

// Insert computes the definition's first tick after now and, if it fires
// at all, stores it and returns its generated id.
func (m *MemoryStore) Insert(def Definition, now time.Time) (int32, bool) {
	tick, ok := def.NextTick(now)
	if !ok {
		return 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.internalInsertNew(def, tick), true
}

// InsertWithID stores a definition under a caller-chosen id, skipping
// random id generation — used when rehydrating from durable storage where
// the id is already assigned.
func (m *MemoryStore) InsertWithID(id int32, def Definition, currentTick time.Time, hasTick bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertState(id, def, currentTick, hasTick)
}

func (m *MemoryStore) internalInsertNew(def Definition, now time.Time) int32 {
	byUser := m.userMap(def.UserID())
	var id int32
	for {
		id = int32(rand.Uint32())
		if _, taken := byUser[id]; !taken {
			break
		}
	}
	m.insertStateLocked(id, def, now, true)
	return id
}

func (m *MemoryStore) insertState(id int32, def Definition, currentTick time.Time, hasTick bool) {
	m.insertStateLocked(id, def, currentTick, hasTick)
}

func (m *MemoryStore) insertStateLocked(id int32, def Definition, currentTick time.Time, hasTick bool) {
	byUser := m.userMap(def.UserID())
	byUser[id] = &reminderState{
		id:          id,
		definition:  def,
		currentTick: currentTick,
		hasTick:     hasTick,
	}
	if hasTick {
		heap.Push(&m.queue, heapRef{userID: def.UserID(), id: id, nextTick: currentTick})
	}
}

func (m *MemoryStore) userMap(userID uint64) map[int32]*reminderState {
	byUser, ok := m.lookup[userID]
	if !ok {
		byUser = make(map[int32]*reminderState)
		m.lookup[userID] = byUser
	}
	return byUser
}

// DequeueNext pops the earliest-due heap entry and returns its current
// snapshot. Orphaned entries (left behind by CompactDefused, whose state
// has already been dropped from the index) are skipped rather than
// treated as an empty queue, so a compaction pass can never hide reminders
// still pending underneath. Defused entries are tombstones — spec says
// they are silently skipped — and are dropped from the index here rather
// than handed back, so the engine never dequeues a reminder with no
// pending tick. It returns false once the heap is drained.
func (m *MemoryStore) DequeueNext() (Reminder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.queue.Len() > 0 {
		ref := heap.Pop(&m.queue).(heapRef)
		st, ok := m.getStateLocked(ref.userID, ref.id)
		if !ok {
			continue
		}
		if st.defused {
			m.removeStateLocked(ref.userID, ref.id)
			continue
		}
		return st.currentReminder(), true
	}
	return Reminder{}, false
}

// Requeue pushes a reminder that was dequeued but not fired (a wake-up
// interrupted its wait) back onto the heap at its existing tick, without
// advancing it. It is a no-op for a reminder that had no pending tick.
func (m *MemoryStore) Requeue(r Reminder) {
	if !r.HasTick {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	heap.Push(&m.queue, heapRef{userID: r.UserID, id: r.ReminderID, nextTick: r.CurrentTick})
}

// CompactDefused drops every defused reminder from the index immediately,
// rather than waiting for its stale heap entry to reach the front on its
// own — which, for an infrequent recurring schedule, could otherwise sit
// for a long time. It returns the number of reminders removed.
func (m *MemoryStore) CompactDefused() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for userID, byUser := range m.lookup {
		for id, st := range byUser {
			if st.defused {
				delete(byUser, id)
				removed++
			}
		}
		if len(byUser) == 0 {
			delete(m.lookup, userID)
		}
	}
	return removed
}

// Advance fast-forwards the reminder's state past then, re-queueing it if
// it still has a next tick, or dropping it from the index entirely if it
// has been exhausted or defused.
func (m *MemoryStore) Advance(r Reminder, then time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.getStateLocked(r.UserID, r.ReminderID)
	if !ok {
		return
	}
	next, hasNext := st.fastForwardAfter(then)
	if hasNext {
		heap.Push(&m.queue, heapRef{userID: r.UserID, id: r.ReminderID, nextTick: next})
		return
	}
	m.removeStateLocked(r.UserID, r.ReminderID)
}

// Defuse marks a reminder as cancelled. Its stale heap entry is left in
// place and discarded the next time it reaches the front of the queue. It
// returns false if no such reminder is tracked for the user.
func (m *MemoryStore) Defuse(userID uint64, id int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.getStateLocked(userID, id)
	if !ok {
		return false
	}
	st.defused = true
	return true
}

// Get returns the current snapshot of a single reminder.
func (m *MemoryStore) Get(userID uint64, id int32) (Reminder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.getStateLocked(userID, id)
	if !ok {
		return Reminder{}, false
	}
	return st.currentReminder(), true
}

// GetAll returns every reminder currently tracked for a user, keyed by id.
func (m *MemoryStore) GetAll(userID uint64) map[int32]Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int32]Reminder)
	for id, st := range m.lookup[userID] {
		out[id] = st.currentReminder()
	}
	return out
}

func (m *MemoryStore) getStateLocked(userID uint64, id int32) (*reminderState, bool) {
	byUser, ok := m.lookup[userID]
	if !ok {
		return nil, false
	}
	st, ok := byUser[id]
	return st, ok
}

func (m *MemoryStore) removeStateLocked(userID uint64, id int32) {
	byUser, ok := m.lookup[userID]
	if !ok {
		return
	}
	delete(byUser, id)
	if len(byUser) == 0 {
		delete(m.lookup, userID)
	}
}
