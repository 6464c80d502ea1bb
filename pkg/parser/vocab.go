// Package parser turns the tokenized first line of a reminder command into
// a schedule.Schedule: the Italian natural-language front end described by
// spec.md's Parser component.
package parser

import "time"

// weekdayNames maps lowercase Italian weekday names (with and without the
// accented "ì") to the Monday=0..Sunday=6 index used by schedule.Grid's
// days-of-week bitmap.
var weekdayNames = map[string]int{
	"lunedì": 0, "lunedi": 0,
	"martedì": 1, "martedi": 1,
	"mercoledì": 2, "mercoledi": 2,
	"giovedì": 3, "giovedi": 3,
	"venerdì": 4, "venerdi": 4,
	"sabato":   5,
	"domenica": 6,
}

// monthNames maps lowercase Italian month names to time.Month.
var monthNames = map[string]time.Month{
	"gennaio":   time.January,
	"febbraio":  time.February,
	"marzo":     time.March,
	"aprile":    time.April,
	"maggio":    time.May,
	"giugno":    time.June,
	"luglio":    time.July,
	"agosto":    time.August,
	"settembre": time.September,
	"ottobre":   time.October,
	"novembre":  time.November,
	"dicembre":  time.December,
}

// durationUnits maps singular and plural Italian duration words to the
// corresponding time.Duration of one unit, for the "tra N <unit>" clause.
var durationUnits = map[string]time.Duration{
	"secondo": time.Second, "secondi": time.Second,
	"minuto": time.Minute, "minuti": time.Minute,
	"ora": time.Hour, "ore": time.Hour,
	"giorno": 24 * time.Hour, "giorni": 24 * time.Hour,
	"settimana": 7 * 24 * time.Hour, "settimane": 7 * 24 * time.Hour,
}

// ordinalNames maps masculine and feminine Italian ordinals (primo..quinto)
// to the 0-based index used by the weeks-of-month bitmap.
var ordinalNames = map[string]int{
	"primo": 0, "prima": 0,
	"secondo": 1, "seconda": 1,
	"terzo": 2, "terza": 2,
	"quarto": 3, "quarta": 3,
	"quinto": 4, "quinta": 4,
}

func isWeekday(tok string) bool {
	_, ok := weekdayNames[tok]
	return ok
}
