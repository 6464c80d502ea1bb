package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleOnceFiresOnceThenExhausted(t *testing.T) {
	when := time.Date(2024, 8, 18, 20, 58, 0, 0, time.UTC)
	s := NewOnce(when)

	now := time.Date(2024, 8, 17, 20, 58, 0, 0, time.UTC)
	got, ok := s.NextTick(now)
	require.True(t, ok)
	require.True(t, got.Equal(when))

	_, ok = s.NextTick(when)
	require.False(t, ok)
	_, ok = s.NextTick(when.Add(time.Minute))
	require.False(t, ok)
}

func TestScheduleRecurrentNeverBeforeSince(t *testing.T) {
	loc := time.UTC
	g := mustGrid(t, allIndices(60), allIndices(24), allIndices(5), allIndices(31), allIndices(7), allIndices(12), 1, 1, loc)
	since := time.Date(2030, 1, 1, 0, 0, 0, 0, loc)
	s := NewRecurrent(g, since)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, loc)
	got, ok := s.NextTick(now)
	require.True(t, ok)
	require.True(t, got.After(since) || got.Equal(since.Add(time.Minute)))
	require.True(t, got.After(since))
}

func TestScheduleRecurrentUntilExcludesUntilAndBeyond(t *testing.T) {
	loc := time.UTC
	g := mustGrid(t, []int{0}, []int{12}, nil, nil, nil, nil, 1, 1, loc)
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, loc)
	until := time.Date(2024, 1, 3, 12, 0, 0, 0, loc)
	s := NewRecurrentUntil(g, since, until)

	now := since
	var ticks []time.Time
	for i := 0; i < 10; i++ {
		got, ok := s.NextTick(now)
		if !ok {
			break
		}
		ticks = append(ticks, got)
		now = got
	}
	require.Equal(t, 2, len(ticks))
	require.True(t, ticks[0].Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, loc)))
	require.True(t, ticks[1].Equal(time.Date(2024, 1, 2, 12, 0, 0, 0, loc)))
}

func TestScheduleNextTickStrictlyMonotonic(t *testing.T) {
	loc := time.UTC
	g := mustGrid(t, allIndices(60), allIndices(24), allIndices(5), allIndices(31), allIndices(7), allIndices(12), 1, 1, loc)
	s := NewRecurrent(g, time.Date(2024, 1, 1, 0, 0, 0, 0, loc))

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, loc)
	for i := 0; i < 50; i++ {
		got, ok := s.NextTick(now)
		require.True(t, ok)
		require.True(t, got.After(now))
		now = got
	}
}
