// Package reminders implements the durable, schedulable reminder: its
// definition, its in-flight snapshot, the in-memory priority queue that
// orders pending fires, the write-through durable store, and the engine
// event loop that ties them together.
package reminders

import (
	"time"

	"ricordami/pkg/schedule"
)

// ID identifies a reminder within a user's namespace.
type ID struct {
	UserID     uint64
	ReminderID int32
}

// Definition is the immutable recipe for a reminder: what schedule governs
// it, who owns it, and what message fires.
type Definition struct {
	schedule schedule.Schedule
	userID   uint64
	message  string
}

// NewDefinition builds a Definition from a schedule, owning user id and
// message text.
func NewDefinition(s schedule.Schedule, userID uint64, message string) Definition {
	return Definition{schedule: s, userID: userID, message: message}
}

// NextTick returns the smallest instant strictly after now at which this
// definition's schedule fires, or false if it never fires again.
func (d Definition) NextTick(now time.Time) (time.Time, bool) {
	return d.schedule.NextTick(now)
}

// UserID returns the owning user id.
func (d Definition) UserID() uint64 { return d.userID }

// Message returns the reminder's message text.
func (d Definition) Message() string { return d.message }

// Schedule returns the governing schedule.
func (d Definition) Schedule() schedule.Schedule { return d.schedule }

// Reminder is a point-in-time snapshot handed out of storage: an identity,
// an optional pending tick (absent once defused or exhausted), and the
// message to fire.
type Reminder struct {
	UserID      uint64
	ReminderID  int32
	CurrentTick time.Time
	HasTick     bool
	Message     string
}

// ID returns the reminder's (user, id) identity pair.
func (r Reminder) ID() ID {
	return ID{UserID: r.UserID, ReminderID: r.ReminderID}
}
