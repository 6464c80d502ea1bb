package parser

import (
	"strconv"
	"strings"
	"time"

	"ricordami/pkg/schedule"
)

const (
	minutesWidth = 60
	hoursWidth   = 24
)

var europeRome = loadRome()

func loadRome() *time.Location {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		return time.UTC
	}
	return loc
}

// Parse tokenizes nothing itself: tokens is the already-tokenized first
// line of a "ricordami ..." command, leading command keyword included. It
// dispatches on the second token (the first after the command keyword) to
// the Once or Recurrent grammar and returns the resulting Schedule, or
// false if the input cannot be parsed at all.
func Parse(tokens []string, now time.Time) (schedule.Schedule, bool) {
	if len(tokens) < 2 {
		return schedule.Schedule{}, false
	}
	rest := tokens[1:]
	context := now.In(europeRome)

	head := rest[0]
	switch {
	case head == "alle" || head == "a" || head == "il" || head == "lo" || head == "l" ||
		head == "nel" || head == "ad" || head == "tra":
		return buildOnce(rest, context)
	case isWeekday(head):
		return buildOnce(rest, context)
	case head == "ogni" || head == "fino" || head == "dal" || head == "dall" || head == "da":
		return buildRecurrent(rest, context)
	default:
		return schedule.Schedule{}, false
	}
}

// --- Once ---

func buildOnce(tokens []string, now time.Time) (schedule.Schedule, bool) {
	when := now
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		i++
		switch {
		case tok == "tra":
			when, i = advanceDuration(when, tokens, i)
		case tok == "alle":
			when, i = configureTime(when, tokens, i)
		case tok == "il" || tok == "lo" || tok == "l":
			when, i = configureDate(when, tokens, i)
		case tok == "a" || tok == "ad":
			when, i = configureMonth(when, tokens, i)
		case tok == "nel":
			when, i = configureYear(when, tokens, i)
		case isWeekday(tok):
			when = configureWeekday(when, tok)
		}
	}
	return schedule.NewOnce(when.UTC()), true
}

func advanceDuration(when time.Time, tokens []string, i int) (time.Time, int) {
	for i < len(tokens) {
		if tokens[i] == "e" {
			i++
			continue
		}
		n, err := strconv.Atoi(tokens[i])
		if err != nil {
			break
		}
		if i+1 >= len(tokens) {
			break
		}
		unit, ok := durationUnits[tokens[i+1]]
		if !ok {
			break
		}
		when = when.Add(time.Duration(n) * unit)
		i += 2
	}
	return when, i
}

func configureTime(when time.Time, tokens []string, i int) (time.Time, int) {
	hour, minute, newI, ok := parseTimeTokens(tokens, i)
	if !ok {
		return when, i
	}
	candidate := time.Date(when.Year(), when.Month(), when.Day(), hour, minute, 0, 0, when.Location())
	if candidate.Before(when) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, newI
}

// parseTimeTokens accepts "HH:MM", "HH:MM:SS", or "HH [e] MM" (minute
// optional, defaulting to 0). An out-of-range minute falls back to
// hour-only: a separate minute token, if present but invalid, is left
// unconsumed. An out-of-range hour is not parsed as a time at all.
func parseTimeTokens(tokens []string, i int) (hour, minute, newI int, ok bool) {
	if i >= len(tokens) {
		return 0, 0, i, false
	}
	if hh, mm, parsed := parseHHMM(tokens[i]); parsed {
		if hh < 0 || hh > 23 {
			return 0, 0, i, false
		}
		if mm < 0 || mm > 59 {
			mm = 0
		}
		return hh, mm, i + 1, true
	}
	hour, err := strconv.Atoi(tokens[i])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, i, false
	}
	i++
	j := i
	if j < len(tokens) && tokens[j] == "e" {
		j++
	}
	if j < len(tokens) {
		if mm, err := strconv.Atoi(tokens[j]); err == nil && mm >= 0 && mm <= 59 {
			return hour, mm, j + 1, true
		}
	}
	return hour, 0, i, true
}

func parseHHMM(s string) (hour, minute int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, false
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return hh, mm, true
}

func configureDate(when time.Time, tokens []string, i int) (time.Time, int) {
	if i >= len(tokens) {
		return when, i
	}
	tok := tokens[i]

	if d, m, y, ok := parseDateLiteral(tok); ok {
		return applyDate(when, d, m, y, true), i + 1
	}

	day, err := strconv.Atoi(tok)
	if err != nil || day < 1 || day > 31 {
		return when, i
	}
	i++
	month := int(when.Month())
	year := 0
	monthGiven := false
	if i < len(tokens) {
		if m, ok := monthNames[tokens[i]]; ok {
			month = int(m)
			monthGiven = true
			i++
			if i < len(tokens) {
				if y, err := strconv.Atoi(tokens[i]); err == nil && y > 1970 {
					year = y
					i++
				}
			}
		}
	}
	return applyDate(when, day, month, year, monthGiven), i
}

func applyDate(when time.Time, day, month, year int, monthGiven bool) time.Time {
	if year == 0 {
		year = when.Year()
	}
	candidate := time.Date(year, time.Month(month), day, when.Hour(), when.Minute(), when.Second(), 0, when.Location())
	if candidate.Before(when) {
		if monthGiven {
			candidate = candidate.AddDate(1, 0, 0)
		} else {
			candidate = candidate.AddDate(0, 1, 0)
		}
	}
	return candidate
}

func configureMonth(when time.Time, tokens []string, i int) (time.Time, int) {
	if i >= len(tokens) {
		return when, i
	}
	m, ok := monthNames[tokens[i]]
	if !ok {
		return when, i
	}
	i++
	year := when.Year()
	if i < len(tokens) {
		if y, err := strconv.Atoi(tokens[i]); err == nil && y > 1970 {
			year = y
			i++
		}
	}
	candidate := time.Date(year, m, when.Day(), when.Hour(), when.Minute(), when.Second(), 0, when.Location())
	if candidate.Before(when) {
		candidate = candidate.AddDate(1, 0, 0)
	}
	return candidate, i
}

func configureYear(when time.Time, tokens []string, i int) (time.Time, int) {
	if i >= len(tokens) {
		return when, i
	}
	y, err := strconv.Atoi(tokens[i])
	if err != nil {
		return when, i
	}
	i++
	return time.Date(y, time.January, 1, when.Hour(), when.Minute(), when.Second(), 0, when.Location()), i
}

func configureWeekday(when time.Time, tok string) time.Time {
	target, ok := weekdayNames[tok]
	if !ok {
		return when
	}
	delta := (target - isoWeekday(when) + 7) % 7
	return when.AddDate(0, 0, delta)
}

// --- Recurrent ---

func buildRecurrent(tokens []string, now time.Time) (schedule.Schedule, bool) {
	b := newGridBuilder()
	var since, until time.Time
	sinceSet, untilSet := false, false

	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		i++
		switch {
		case tok == "ogni":
			i = b.applyCadenceClause(tokens, i)
		case tok == "alle" && !sinceSet:
			i = b.applyTimeClause(tokens, i)
		case tok == "dal" || tok == "dalle" || tok == "dall" || tok == "da":
			since, i = parseDateOrYearOrWeekday(now, tokens, i)
			sinceSet = true
		case tok == "fino":
			if i < len(tokens) && isUntilMarker(tokens[i]) {
				i++
			}
			ref := now
			if sinceSet {
				ref = since
			}
			until, i = parseDateOrYearOrWeekday(ref, tokens, i)
			untilSet = true
		case isUntilMarker(tok) && sinceSet && !untilSet:
			until, i = parseDateOrYearOrWeekday(since, tokens, i)
			untilSet = true
		}
	}

	yearStart := now.Year()
	if sinceSet {
		yearStart = since.Year()
	}
	grid, err := b.build(now, yearStart)
	if err != nil {
		return schedule.Schedule{}, false
	}

	if untilSet {
		return schedule.NewRecurrentUntil(grid, since.UTC(), until.UTC()), true
	}
	return schedule.NewRecurrent(grid, since.UTC()), true
}

func isUntilMarker(tok string) bool {
	switch tok {
	case "al", "alle", "all", "a", "ad":
		return true
	}
	return false
}

// parseDateOrYearOrWeekday parses a single "since"/"until" bound: a date
// literal (D/M[/Y]), a bare weekday (advance to its next occurrence from
// ref), a bare year (> 1970), or a bare day optionally followed by a month
// and year. The result keeps ref's hour/minute/second.
func parseDateOrYearOrWeekday(ref time.Time, tokens []string, i int) (time.Time, int) {
	if i >= len(tokens) {
		return ref, i
	}
	tok := tokens[i]

	if d, m, y, ok := parseDateLiteral(tok); ok {
		year := y
		if year == 0 {
			year = ref.Year()
		}
		return time.Date(year, time.Month(m), d, ref.Hour(), ref.Minute(), ref.Second(), 0, ref.Location()), i + 1
	}

	if wd, ok := weekdayNames[tok]; ok {
		delta := (wd - isoWeekday(ref) + 7) % 7
		return ref.AddDate(0, 0, delta), i + 1
	}

	if n, err := strconv.Atoi(tok); err == nil {
		if n > 1970 {
			return time.Date(n, time.January, 1, ref.Hour(), ref.Minute(), ref.Second(), 0, ref.Location()), i + 1
		}
		day := n
		j := i + 1
		month := ref.Month()
		year := ref.Year()
		if j < len(tokens) {
			if m, ok := monthNames[tokens[j]]; ok {
				month = m
				j++
				if j < len(tokens) {
					if y, err := strconv.Atoi(tokens[j]); err == nil && y > 1970 {
						year = y
						j++
					}
				}
			}
		}
		return time.Date(year, month, day, ref.Hour(), ref.Minute(), ref.Second(), 0, ref.Location()), j
	}

	return ref, i
}

// parseDateLiteral splits a "D/M", "D-M", "D.M", or "D<sep>M<sep>Y" token
// into its numeric parts. year is 0 if not present.
func parseDateLiteral(s string) (day, month, year int, ok bool) {
	var sep string
	switch {
	case strings.Contains(s, "/"):
		sep = "/"
	case strings.Contains(s, "-"):
		sep = "-"
	case strings.Contains(s, "."):
		sep = "."
	default:
		return 0, 0, 0, false
	}
	parts := strings.Split(s, sep)
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, false
	}
	d, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, false
	}
	y := 0
	if len(parts) == 3 {
		y, err = strconv.Atoi(parts[2])
		if err != nil {
			return 0, 0, 0, false
		}
	}
	return d, m, y, true
}

func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func splitCommaList(tok string) []string {
	return strings.Split(tok, ",")
}
