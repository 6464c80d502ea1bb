package reminders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ricordami/pkg/schedule"
)

func onceDef(userID uint64, when time.Time, msg string) Definition {
	return NewDefinition(schedule.NewOnce(when), userID, msg)
}

func TestMemoryStoreInsertAndDequeueOrdering(t *testing.T) {
	m := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	idLate, ok := m.Insert(onceDef(1, now.Add(2*time.Hour), "late"), now)
	require.True(t, ok)
	idEarly, ok := m.Insert(onceDef(1, now.Add(time.Hour), "early"), now)
	require.True(t, ok)

	first, ok := m.DequeueNext()
	require.True(t, ok)
	require.Equal(t, idEarly, first.ReminderID)
	require.Equal(t, "early", first.Message)

	second, ok := m.DequeueNext()
	require.True(t, ok)
	require.Equal(t, idLate, second.ReminderID)

	_, ok = m.DequeueNext()
	require.False(t, ok)
}

func TestMemoryStoreInsertPastScheduleNeverQueued(t *testing.T) {
	m := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, ok := m.Insert(onceDef(1, now.Add(-time.Hour), "already past"), now)
	require.False(t, ok)
	_, ok = m.DequeueNext()
	require.False(t, ok)
}

func TestMemoryStoreDefuseBeforeFireDropsReminder(t *testing.T) {
	m := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	id, ok := m.Insert(onceDef(1, now.Add(time.Hour), "hi"), now)
	require.True(t, ok)

	m.Defuse(1, id)

	r, ok := m.Get(1, id)
	require.True(t, ok)
	require.False(t, r.HasTick)

	popped, ok := m.DequeueNext()
	require.False(t, ok)
	require.False(t, popped.HasTick)

	m.Advance(popped, now.Add(time.Hour))
	_, ok = m.Get(1, id)
	require.False(t, ok)
}

func TestMemoryStoreAdvanceRequeuesRecurrent(t *testing.T) {
	loc := time.UTC
	g, err := schedule.NewGrid(
		schedule.AllSetMinutes(), schedule.AllSetHours(), schedule.AllSetWeeksOfMonth(),
		schedule.AllSetDaysOfMonth(), schedule.AllSetDaysOfWeek(), schedule.AllSetMonthsOfYear(),
		1, 1, loc,
	)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, loc)
	def := NewDefinition(schedule.NewRecurrent(g, now), 7, "tick")
	m := NewMemoryStore()
	id, ok := m.Insert(def, now)
	require.True(t, ok)

	r, ok := m.DequeueNext()
	require.True(t, ok)
	require.True(t, r.HasTick)
	fired := r.CurrentTick

	m.Advance(r, fired)

	next, ok := m.Get(7, id)
	require.True(t, ok)
	require.True(t, next.HasTick)
	require.True(t, next.CurrentTick.After(fired))
}

func TestMemoryStoreGetAll(t *testing.T) {
	m := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	id1, _ := m.Insert(onceDef(3, now.Add(time.Hour), "a"), now)
	id2, _ := m.Insert(onceDef(3, now.Add(2*time.Hour), "b"), now)
	m.Insert(onceDef(4, now.Add(time.Hour), "other user"), now)

	all := m.GetAll(3)
	require.Len(t, all, 2)
	require.Contains(t, all, id1)
	require.Contains(t, all, id2)
}

func TestMemoryStoreInsertWithIDRehydration(t *testing.T) {
	m := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	def := onceDef(9, now.Add(time.Hour), "rehydrated")

	m.InsertWithID(42, def, now.Add(time.Hour), true)

	r, ok := m.Get(9, 42)
	require.True(t, ok)
	require.True(t, r.HasTick)
	require.Equal(t, "rehydrated", r.Message)

	popped, ok := m.DequeueNext()
	require.True(t, ok)
	require.Equal(t, int32(42), popped.ReminderID)
}
