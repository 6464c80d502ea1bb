// Package logger is a thin, package-level wrapper over log/slog rendered
// through tint, matching the category+fields calling convention used
// throughout this codebase (logger.InfoCF("reminder", "fired", fields)).
package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

var base = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
	Level:      slog.LevelInfo,
	TimeFormat: time.Kitchen,
}))

// Init reconfigures the package logger: minimum level, colour only when
// stderr is a terminal, and source locations when debug is set. Output
// always goes to stderr. Call it once at process startup before any other
// goroutine logs.
func Init(level slog.Level, debug bool) {
	opts := &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(),
	}
	if debug {
		opts.AddSource = true
	}
	base = slog.New(tint.NewHandler(os.Stderr, opts))
}

func isTerminal() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func attrs(category string, fields map[string]interface{}) []any {
	out := make([]any, 0, 2+2*len(fields))
	out = append(out, "category", category)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

// DebugC logs a debug-level message tagged with a category.
func DebugC(category, msg string) {
	base.Debug(msg, "category", category)
}

// DebugCF logs a debug-level message tagged with a category and fields.
func DebugCF(category, msg string, fields map[string]interface{}) {
	base.Debug(msg, attrs(category, fields)...)
}

// InfoC logs an info-level message tagged with a category.
func InfoC(category, msg string) {
	base.Info(msg, "category", category)
}

// InfoCF logs an info-level message tagged with a category and fields.
func InfoCF(category, msg string, fields map[string]interface{}) {
	base.Info(msg, attrs(category, fields)...)
}

// WarnC logs a warn-level message tagged with a category.
func WarnC(category, msg string) {
	base.Warn(msg, "category", category)
}

// WarnCF logs a warn-level message tagged with a category and fields.
func WarnCF(category, msg string, fields map[string]interface{}) {
	base.Warn(msg, attrs(category, fields)...)
}

// ErrorC logs an error-level message tagged with a category.
func ErrorC(category, msg string) {
	base.Error(msg, "category", category)
}

// ErrorCF logs an error-level message tagged with a category and fields.
func ErrorCF(category, msg string, fields map[string]interface{}) {
	base.Error(msg, attrs(category, fields)...)
}
