package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func romeLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)
	return loc
}

func mustGrid(t *testing.T, minutes, hours, weeks, days, dow, months []int, cadence, start int, loc *time.Location) *Grid {
	// A nil list leaves that calendar field unconstrained.
	orAll := func(bits []int, width int) []int {
		if bits == nil {
			return allIndices(width)
		}
		return bits
	}
	g, err := NewGrid(
		NewMinutesBitmap(orAll(minutes, widthMinutes)),
		NewHoursBitmap(orAll(hours, widthHours)),
		NewWeeksOfMonthBitmap(orAll(weeks, widthWeeksOfMonth)),
		NewDaysOfMonthBitmap(orAll(days, widthDaysOfMonth)),
		NewDaysOfWeekBitmap(orAll(dow, widthDaysOfWeek)),
		NewMonthsOfYearBitmap(orAll(months, widthMonthsOfYear)),
		cadence, start, loc,
	)
	require.NoError(t, err)
	return g
}

func TestNewGridRejectsEmptyBitmapOrBadCadence(t *testing.T) {
	loc := time.UTC
	minutes := AllSetMinutes()
	hours := AllSetHours()
	weeks := AllSetWeeksOfMonth()
	days := AllSetDaysOfMonth()
	dow := AllSetDaysOfWeek()
	months := AllSetMonthsOfYear()

	_, err := NewGrid(minutes, hours, weeks, days, dow, months, 0, 2024, loc)
	require.ErrorIs(t, err, ErrInvalidGrid)

	empty := NewMinutesBitmap(nil)
	empty.Unset(0)
	_, err = NewGrid(empty, hours, weeks, days, dow, months, 1, 2024, loc)
	require.ErrorIs(t, err, ErrInvalidGrid)
}

// scenario 3 from the worked examples: every other year, the first Saturday
// of January, no explicit time clause — hours/minutes default to the
// instant the grid was built from.
func TestNextScheduledAfter_EveryOtherYearFirstSaturdayOfJanuary(t *testing.T) {
	loc := romeLoc(t)
	g := mustGrid(t,
		[]int{58}, []int{20},
		[]int{0}, nil, []int{5}, []int{0},
		2, 2025, loc)

	since := time.Date(2025, 1, 1, 20, 58, 0, 0, loc)
	got, ok := g.NextScheduledAfter(since)
	require.True(t, ok)
	want := time.Date(2025, 1, 4, 20, 58, 0, 0, loc)
	require.True(t, want.Equal(got), "got %v want %v", got, want)
}

// scenario 4: every Friday at 18:00, bounded between two dates.
func TestNextScheduledAfter_WeeklyFridaySequence(t *testing.T) {
	loc := romeLoc(t)
	g := mustGrid(t,
		[]int{0}, []int{18},
		nil, nil, []int{4}, nil,
		1, 1, loc)

	since := time.Date(2024, 8, 29, 20, 58, 0, 0, loc)
	want := []time.Time{
		time.Date(2024, 8, 30, 18, 0, 0, 0, loc),
		time.Date(2024, 9, 6, 18, 0, 0, 0, loc),
		time.Date(2024, 9, 13, 18, 0, 0, 0, loc),
		time.Date(2024, 9, 20, 18, 0, 0, 0, loc),
		time.Date(2024, 9, 27, 18, 0, 0, 0, loc),
		time.Date(2024, 10, 4, 18, 0, 0, 0, loc),
		time.Date(2024, 10, 11, 18, 0, 0, 0, loc),
		time.Date(2024, 10, 18, 18, 0, 0, 0, loc),
		time.Date(2024, 10, 25, 18, 0, 0, 0, loc),
	}

	cur := since
	for _, w := range want {
		got, ok := g.NextScheduledAfter(cur)
		require.True(t, ok)
		require.True(t, w.Equal(got), "got %v want %v", got, w)
		cur = got
	}
}

func TestNextScheduledAfter_ImpossibleGridTerminates(t *testing.T) {
	loc := time.UTC
	g := mustGrid(t,
		nil, nil,
		nil, []int{29}, nil, []int{1},
		1, 1, loc)

	_, ok := g.NextScheduledAfter(time.Date(2024, 1, 1, 0, 0, 0, 0, loc))
	require.False(t, ok)
}

func TestNextScheduledAfter_EveryMinuteForever(t *testing.T) {
	loc := time.UTC
	g := mustGrid(t,
		allIndices(60), allIndices(24), allIndices(5), allIndices(31), allIndices(7), allIndices(12),
		1, 1, loc)

	now := time.Date(2024, 3, 10, 1, 59, 0, 0, loc)
	got, ok := g.NextScheduledAfter(now)
	require.True(t, ok)
	require.True(t, got.Equal(now.Add(time.Minute)))
}

func TestNextScheduledAfter_StrictlyAfterNow(t *testing.T) {
	loc := time.UTC
	g := mustGrid(t, allIndices(60), allIndices(24), allIndices(5), allIndices(31), allIndices(7), allIndices(12), 1, 1, loc)
	now := time.Date(2024, 3, 10, 1, 59, 0, 0, loc)
	got, ok := g.NextScheduledAfter(now)
	require.True(t, ok)
	require.True(t, got.After(now))
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
