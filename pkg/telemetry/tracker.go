// Package telemetry tracks reminder-engine activity (fires, defuses, parse
// failures) per day, flushing periodically to a JSON file under the
// workspace's state directory.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ricordami/pkg/logger"
)

// Event labels for tracking reminder-engine activity by kind.
const (
	EventFired        = "fired"
	EventDefused      = "defused"
	EventParseFailure = "parse_failure"
)

// EventBucket tracks how many times a single event kind occurred.
type EventBucket struct {
	Count int64 `json:"count"`
}

// DayBucket tracks event counts for a single calendar day.
type DayBucket struct {
	Date   string                  `json:"date"` // "2006-01-02"
	Events map[string]*EventBucket `json:"events"`
	Total  int64                   `json:"total"`
}

// TelemetryData is the on-disk format.
type TelemetryData struct {
	Days []*DayBucket `json:"days"`
}

// Tracker counts reminder-engine events per day.
type Tracker struct {
	mu       sync.Mutex
	data     *TelemetryData
	filePath string
	dirty    bool
}

// NewTracker creates a tracker that persists to workspace/state/telemetry.json.
func NewTracker(workspace string) *Tracker {
	fp := filepath.Join(workspace, "state", "telemetry.json")
	t := &Tracker{
		filePath: fp,
		data:     &TelemetryData{},
	}
	t.load()
	return t
}

// Start begins periodic flushing every 60 seconds.
func (t *Tracker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Flush()
			}
		}
	}()
}

// Stop performs a final flush.
func (t *Tracker) Stop() {
	t.Flush()
}

// Record increments today's count for the given event kind. Hot path,
// mutex-only, no I/O.
func (t *Tracker) Record(event string) {
	today := time.Now().Format("2006-01-02")

	t.mu.Lock()
	defer t.mu.Unlock()

	bucket := t.getOrCreateDay(today)
	eb, ok := bucket.Events[event]
	if !ok {
		eb = &EventBucket{}
		bucket.Events[event] = eb
	}
	eb.Count++
	bucket.Total++

	t.dirty = true
}

// GetToday returns today's bucket (copy). Returns nil if no data yet.
func (t *Tracker) GetToday() *DayBucket {
	return t.GetDay(time.Now().Format("2006-01-02"))
}

// GetDay returns the bucket for a specific date (copy). Returns nil if not found.
func (t *Tracker) GetDay(date string) *DayBucket {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, d := range t.data.Days {
		if d.Date == date {
			return copyDayBucket(d)
		}
	}
	return nil
}

// GetLastNDays returns buckets for the last n days (most recent first).
func (t *Tracker) GetLastNDays(n int) []*DayBucket {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]*DayBucket, 0, n)
	for i := len(t.data.Days) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, copyDayBucket(t.data.Days[i]))
	}
	return result
}

// Flush writes data to disk if dirty. Prunes entries older than 30 days.
func (t *Tracker) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.dirty {
		return
	}

	t.prune(30)
	t.dirty = false

	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		logger.ErrorCF("telemetry", "failed to marshal", map[string]interface{}{"error": err.Error()})
		return
	}

	dir := filepath.Dir(t.filePath)
	os.MkdirAll(dir, 0755)

	tmpPath := t.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		logger.ErrorCF("telemetry", "failed to write tmp", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.Rename(tmpPath, t.filePath); err != nil {
		logger.ErrorCF("telemetry", "failed to rename", map[string]interface{}{"error": err.Error()})
	}
}

func (t *Tracker) load() {
	data, err := os.ReadFile(t.filePath)
	if err != nil {
		return
	}

	var td TelemetryData
	if err := json.Unmarshal(data, &td); err != nil {
		logger.WarnCF("telemetry", "failed to parse telemetry data, starting fresh",
			map[string]interface{}{"error": err.Error()})
		return
	}
	t.data = &td
}

func (t *Tracker) getOrCreateDay(date string) *DayBucket {
	for _, d := range t.data.Days {
		if d.Date == date {
			return d
		}
	}
	bucket := &DayBucket{
		Date:   date,
		Events: make(map[string]*EventBucket),
	}
	t.data.Days = append(t.data.Days, bucket)
	return bucket
}

func (t *Tracker) prune(keepDays int) {
	cutoff := time.Now().AddDate(0, 0, -keepDays).Format("2006-01-02")
	kept := make([]*DayBucket, 0, len(t.data.Days))
	for _, d := range t.data.Days {
		if d.Date >= cutoff {
			kept = append(kept, d)
		}
	}
	t.data.Days = kept
}

func copyDayBucket(src *DayBucket) *DayBucket {
	cp := &DayBucket{
		Date:   src.Date,
		Total:  src.Total,
		Events: make(map[string]*EventBucket, len(src.Events)),
	}
	for k, v := range src.Events {
		eb := *v
		cp.Events[k] = &eb
	}
	return cp
}

// FormatDayBucket returns a human-readable summary of a day bucket.
func FormatDayBucket(b *DayBucket) string {
	if b == nil {
		return "No data available."
	}

	result := fmt.Sprintf("Date: %s\n", b.Date)
	result += fmt.Sprintf("Total: %d events\n", b.Total)

	if len(b.Events) > 0 {
		result += "\nBy kind:\n"
		for name, eb := range b.Events {
			result += fmt.Sprintf("  %s: %d\n", name, eb.Count)
		}
	}
	return result
}
