package reminders

import (
	"context"
	"errors"
	"time"

	"github.com/adhocore/gronx"

	"ricordami/pkg/logger"
	"ricordami/pkg/schedule"
)

// ErrNotFound reports that a reminder id is not tracked for the given user.
var ErrNotFound = errors.New("reminders: not found")

// Clock abstracts "now" so the engine's event loop is testable without
// sleeping real wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Callback is fired, detached from the engine's event loop, whenever a
// reminder's tick arrives. Implementations should not block for long —
// the engine does not wait for a callback to return before dequeuing the
// next reminder.
type Callback interface {
	Call(ctx context.Context, userID uint64, reminderID int32, message string)
}

type engineSignal int

const (
	signalWakeUp engineSignal = iota
	signalStop
)

// Engine is the single-task event loop that ties the in-memory schedule
// index, the durable write-through store, and a fire callback together:
// it sleeps until the earliest pending reminder is due, fires it on a
// detached goroutine, advances it to its next tick (or drops it), and
// repeats — waking early whenever Add/Defuse touches the heap so a newly
// inserted reminder with an earlier tick preempts an in-flight sleep.
type Engine struct {
	memory   *MemoryStore
	durable  *DurableStore
	clock    Clock
	callback Callback
	signal   chan engineSignal
}

// NewEngine builds an Engine. durable may be nil to run purely in-memory
// (useful for tests); in production it should be a store opened with
// OpenDurableStore so reminders survive a restart.
func NewEngine(memory *MemoryStore, durable *DurableStore, clock Clock, callback Callback) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		memory:   memory,
		durable:  durable,
		clock:    clock,
		callback: callback,
		signal:   make(chan engineSignal, 128),
	}
}

// NewAndInit builds an Engine and rehydrates it from the durable store, if
// one is given. Call this once at boot, before Run.
func NewAndInit(memory *MemoryStore, durable *DurableStore, clock Clock, callback Callback) (*Engine, error) {
	e := NewEngine(memory, durable, clock, callback)
	if durable == nil {
		return e, nil
	}
	now := e.clock.Now()
	loaded := 0
	dropped := 0
	err := durable.LoadAll(func(id ID, def Definition) error {
		tick, ok := def.NextTick(now)
		if !ok {
			dropped++
			if derr := durable.Delete(id); derr != nil {
				return derr
			}
			return nil
		}
		e.memory.InsertWithID(id.ReminderID, def, tick, true)
		loaded++
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.InfoCF("reminder-engine", "rehydrated from durable storage", map[string]interface{}{
		"loaded":  loaded,
		"dropped": dropped,
	})
	return e, nil
}

// Add schedules a new reminder: inserts it into the in-memory index,
// write-through persists it if a durable store is attached, and wakes the
// event loop so it can reconsider its sleep. It returns false if the
// schedule never fires even once (e.g. a Once instant already in the
// past). If durable persistence fails, the in-memory insert is rolled
// back by defusing it and (false, err) is returned — an entry that could
// not be persisted must not fire from memory only to be lost on restart.
func (e *Engine) Add(userID uint64, message string, sched schedule.Schedule) (int32, bool, error) {
	def := NewDefinition(sched, userID, message)
	id, ok := e.memory.Insert(def, e.clock.Now())
	if !ok {
		return 0, false, nil
	}
	if e.durable != nil {
		if err := e.durable.Create(ID{UserID: userID, ReminderID: id}, def); err != nil {
			e.memory.Defuse(userID, id)
			return 0, false, err
		}
	}
	e.wake()
	return id, true, nil
}

// Defuse cancels a reminder. Its in-memory tombstone is left in place
// (per MemoryStore's no-heap-surgery design) and its durable row, if any,
// is deleted immediately. It wakes the event loop so a reminder currently
// being slept on is re-picked rather than dispatched after its timer
// fires on a now-stale tick. It returns ErrNotFound if no such reminder is
// tracked for the user; the durable delete is skipped in that case, since
// DurableStore.Delete's own no-op-on-missing-row semantics would otherwise
// always mask it.
func (e *Engine) Defuse(userID uint64, id int32) error {
	if !e.memory.Defuse(userID, id) {
		return ErrNotFound
	}
	e.wake()
	if e.durable != nil {
		return e.durable.Delete(ID{UserID: userID, ReminderID: id})
	}
	return nil
}

// Get returns a single reminder's current snapshot.
func (e *Engine) Get(userID uint64, id int32) (Reminder, bool) {
	return e.memory.Get(userID, id)
}

// GetAll returns every reminder currently tracked for a user.
func (e *Engine) GetAll(userID uint64) map[int32]Reminder {
	return e.memory.GetAll(userID)
}

// Stop asks the event loop to exit at its next opportunity. It returns
// false if the signal channel was full (the loop will still eventually
// notice via Run's context, if one was given).
func (e *Engine) Stop() bool {
	select {
	case e.signal <- signalStop:
		return true
	default:
		return false
	}
}

func (e *Engine) wake() {
	select {
	case e.signal <- signalWakeUp:
	default:
	}
}

// Run is the event loop. It blocks until ctx is cancelled or Stop is
// called. Each iteration dequeues the earliest pending reminder, sleeps
// until it is due (computed as max(0, tick-now), never the reverse),
// fires it on a detached goroutine, and advances it to its next
// occurrence.
func (e *Engine) Run(ctx context.Context) error {
	for {
		reminder, ok := e.memory.DequeueNext()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case sig := <-e.signal:
				if sig == signalStop {
					return nil
				}
				continue
			}
		}

		if reminder.HasTick {
			timeToWait := reminder.CurrentTick.Sub(e.clock.Now())
			if timeToWait < 0 {
				timeToWait = 0
			}
			timer := time.NewTimer(timeToWait)
			select {
			case <-timer.C:
				e.dispatch(reminder)
			case sig := <-e.signal:
				timer.Stop()
				if sig == signalStop {
					return nil
				}
				// A newer reminder may now be due earlier than this one.
				// Put this one back unfired and let the next loop
				// iteration re-pick the true earliest.
				e.memory.Requeue(reminder)
				continue
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		e.memory.Advance(reminder, e.clock.Now())
	}
}

func (e *Engine) dispatch(reminder Reminder) {
	if e.callback == nil {
		return
	}
	userID, id, message := reminder.UserID, reminder.ReminderID, reminder.Message
	go func() {
		e.callback.Call(context.Background(), userID, id, message)
	}()
}

// RunSweep runs the periodic defused-reminder compaction sweep on the
// cron schedule described by cronExpr (e.g. "0 * * * *" for hourly),
// until ctx is cancelled.
func (e *Engine) RunSweep(ctx context.Context, cronExpr string) error {
	for {
		next, err := gronx.NextTickAfter(cronExpr, e.clock.Now(), false)
		if err != nil {
			return err
		}
		wait := next.Sub(e.clock.Now())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			removed := e.memory.CompactDefused()
			if removed > 0 {
				logger.InfoCF("reminder-sweep", "compacted defused reminders", map[string]interface{}{
					"removed": removed,
				})
			}
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
