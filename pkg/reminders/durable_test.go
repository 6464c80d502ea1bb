package reminders

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ricordami/pkg/schedule"
)

func openTestDurableStore(t *testing.T) *DurableStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "ricordami.db")
	s, err := OpenDurableStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDurableStoreOnceRoundTrip(t *testing.T) {
	s := openTestDurableStore(t)
	when := time.Date(2024, 8, 18, 20, 58, 0, 0, time.UTC)
	def := NewDefinition(schedule.NewOnce(when), 42, "comprare il latte")
	id := ID{UserID: 42, ReminderID: 7}

	require.NoError(t, s.Create(id, def))

	var got []Definition
	var gotIDs []ID
	require.NoError(t, s.LoadAll(func(id ID, def Definition) error {
		gotIDs = append(gotIDs, id)
		got = append(got, def)
		return nil
	}))

	require.Len(t, got, 1)
	require.Equal(t, id, gotIDs[0])
	require.Equal(t, uint64(42), got[0].UserID())
	require.Equal(t, "comprare il latte", got[0].Message())
	require.Equal(t, schedule.Once, got[0].Schedule().Kind())
	require.True(t, got[0].Schedule().When().Equal(when))
}

func TestDurableStoreRecurrentRoundTrip(t *testing.T) {
	s := openTestDurableStore(t)
	loc := time.UTC
	g, err := schedule.NewGrid(
		schedule.NewMinutesBitmap([]int{0}), schedule.NewHoursBitmap([]int{9}),
		schedule.AllSetWeeksOfMonth(), schedule.AllSetDaysOfMonth(),
		schedule.NewDaysOfWeekBitmap([]int{0, 2, 4}), schedule.AllSetMonthsOfYear(),
		1, 2024, loc,
	)
	require.NoError(t, err)
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, loc)
	def := NewDefinition(schedule.NewRecurrent(g, since), 1, "palestra")
	id := ID{UserID: 1, ReminderID: 100}

	require.NoError(t, s.Create(id, def))

	var loaded Definition
	require.NoError(t, s.LoadAll(func(_ ID, def Definition) error {
		loaded = def
		return nil
	}))

	require.Equal(t, schedule.Recurrent, loaded.Schedule().Kind())
	gotSince, _ := loaded.Schedule().Bounds()
	require.True(t, gotSince.Equal(since))

	tick, ok := loaded.NextTick(since)
	require.True(t, ok)
	require.Equal(t, 9, tick.Hour())
}

func TestDurableStoreDelete(t *testing.T) {
	s := openTestDurableStore(t)
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	def := NewDefinition(schedule.NewOnce(when), 3, "msg")
	id := ID{UserID: 3, ReminderID: 5}
	require.NoError(t, s.Create(id, def))
	require.NoError(t, s.Delete(id))

	var count int
	require.NoError(t, s.LoadAll(func(ID, Definition) error {
		count++
		return nil
	}))
	require.Equal(t, 0, count)
}
