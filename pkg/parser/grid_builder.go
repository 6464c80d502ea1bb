package parser

import (
	"errors"
	"strconv"
	"time"

	"ricordami/pkg/schedule"
)

// errUnparsableGrid is returned when a "ogni" clause sequence produced no
// usable cadence at all, so the Grid's invariants (every bitmap non-empty)
// cannot be satisfied.
var errUnparsableGrid = errors.New("parser: unparsable recurrence grid")

// gridBuilder accumulates the six calendar constraints plus year cadence
// across a Recurrent clause walk. A nil field means "never narrowed by the
// input" — minutes/hours default to the parse-time now's minute/hour
// (mirroring Once's "default to now unless overridden" behavior) while the
// other four default to "every value", per spec.md's default-grid rule.
type gridBuilder struct {
	minutes      []int
	hours        []int
	weeksOfMonth []int
	daysOfMonth  []int
	daysOfWeek   []int
	monthsOfYear []int
	yearCadence  int
}

func newGridBuilder() *gridBuilder {
	return &gridBuilder{yearCadence: 1}
}

func (b *gridBuilder) build(now time.Time, yearStart int) (*schedule.Grid, error) {
	minutes := b.minutes
	if minutes == nil {
		minutes = []int{now.Minute()}
	}
	hours := b.hours
	if hours == nil {
		hours = []int{now.Hour()}
	}
	weeksOfMonth := b.weeksOfMonth
	if weeksOfMonth == nil {
		weeksOfMonth = allIndices(5)
	}
	daysOfMonth := b.daysOfMonth
	if daysOfMonth == nil {
		daysOfMonth = allIndices(31)
	}
	daysOfWeek := b.daysOfWeek
	if daysOfWeek == nil {
		daysOfWeek = allIndices(7)
	}
	monthsOfYear := b.monthsOfYear
	if monthsOfYear == nil {
		monthsOfYear = allIndices(12)
	}

	grid, err := schedule.NewGrid(
		schedule.NewMinutesBitmap(minutes),
		schedule.NewHoursBitmap(hours),
		schedule.NewWeeksOfMonthBitmap(weeksOfMonth),
		schedule.NewDaysOfMonthBitmap(daysOfMonth),
		schedule.NewDaysOfWeekBitmap(daysOfWeek),
		schedule.NewMonthsOfYearBitmap(monthsOfYear),
		b.yearCadence,
		yearStart,
		europeRome,
	)
	if err != nil {
		return nil, errUnparsableGrid
	}
	return grid, nil
}

// applyTimeClause parses "alle <time>+": one or more HH[:MM[:SS]] / "HH [e]
// MM" expressions, accumulating explicit minutes/hours bitmaps.
func (b *gridBuilder) applyTimeClause(tokens []string, i int) int {
	var hours, minutes []int
	for {
		hour, minute, newI, ok := parseTimeTokens(tokens, i)
		if !ok {
			break
		}
		hours = append(hours, hour)
		minutes = append(minutes, minute)
		i = newI
	}
	if len(hours) == 0 {
		return i
	}
	b.hours = hours
	b.minutes = minutes
	return i
}

// applyCadenceClause parses one "ogni <...>" sub-grammar, dispatching on
// the shape of what follows: a year count, an ordinal+weekday list (with an
// optional trailing "di <month>"), a D/M date literal, a bare day (with an
// optional "di <month>" or "del mese"), a bare month list, a bare weekday
// list, or one of the "giorno"/"mese"/"ora"/"minuto" cadence words.
func (b *gridBuilder) applyCadenceClause(tokens []string, i int) int {
	if i >= len(tokens) {
		return i
	}
	tok := tokens[i]

	if n, err := strconv.Atoi(tok); err == nil {
		if i+1 < len(tokens) && (tokens[i+1] == "anni" || tokens[i+1] == "anno") {
			b.yearCadence = n
			return i + 2
		}
		day := n
		j := i + 1
		if j+1 < len(tokens) && tokens[j] == "del" && tokens[j+1] == "mese" {
			b.daysOfMonth = []int{day - 1}
			return j + 2
		}
		if j < len(tokens) && tokens[j] == "di" {
			if months, j2 := consumeMonthList(tokens, j+1); len(months) > 0 {
				b.daysOfMonth = []int{day - 1}
				b.monthsOfYear = months
				return j2
			}
		}
		b.daysOfMonth = []int{day - 1}
		return j
	}

	if d, m, _, ok := parseDateLiteral(tok); ok {
		b.daysOfMonth = []int{d - 1}
		b.monthsOfYear = []int{m - 1}
		return i + 1
	}

	if _, ok := ordinalNames[tok]; ok {
		ords, j := consumeOrdinalList(tokens, i)
		weekdays, j2 := consumeWeekdayList(tokens, j)
		if len(ords) > 0 {
			b.weeksOfMonth = ords
		}
		if len(weekdays) > 0 {
			b.daysOfWeek = weekdays
		}
		if j2 < len(tokens) && tokens[j2] == "di" {
			if months, j3 := consumeMonthList(tokens, j2+1); len(months) > 0 {
				b.monthsOfYear = months
				return j3
			}
		}
		return j2
	}

	switch tok {
	case "giorno", "giorni", "mese":
		return i + 1
	case "ora":
		b.hours = allIndices(hoursWidth)
		return i + 1
	case "minuto":
		b.minutes = allIndices(minutesWidth)
		return i + 1
	}

	if months, j := consumeMonthList(tokens, i); len(months) > 0 {
		b.monthsOfYear = months
		return j
	}
	if weekdays, j := consumeWeekdayList(tokens, i); len(weekdays) > 0 {
		b.daysOfWeek = weekdays
		return j
	}

	return i
}

func consumeOrdinalList(tokens []string, i int) ([]int, int) {
	if i >= len(tokens) {
		return nil, i
	}
	var out []int
	for _, part := range splitCommaList(tokens[i]) {
		if v, ok := ordinalNames[part]; ok {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, i
	}
	return out, i + 1
}

func consumeWeekdayList(tokens []string, i int) ([]int, int) {
	if i >= len(tokens) {
		return nil, i
	}
	var out []int
	for _, part := range splitCommaList(tokens[i]) {
		if v, ok := weekdayNames[part]; ok {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, i
	}
	return out, i + 1
}

func consumeMonthList(tokens []string, i int) ([]int, int) {
	if i >= len(tokens) {
		return nil, i
	}
	var out []int
	for _, part := range splitCommaList(tokens[i]) {
		if m, ok := monthNames[part]; ok {
			out = append(out, int(m)-1)
		}
	}
	if len(out) == 0 {
		return nil, i
	}
	return out, i + 1
}
