package reminders

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	_ "github.com/ncruces/go-sqlite3/driver"

	"ricordami/pkg/bitmap"
	"ricordami/pkg/schedule"
)

const schemaDDL = `
PRAGMA journal_mode=wal;
PRAGMA busy_timeout=10000;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS reminders (
	user_id TEXT NOT NULL,
	reminder_id INTEGER NOT NULL,
	message TEXT NOT NULL,
	schedule BLOB NOT NULL,
	PRIMARY KEY(user_id, reminder_id)
) STRICT, WITHOUT ROWID;
`

// DurableStore is the write-through document store backing the engine: one
// row per reminder, keyed by (user_id, reminder_id), with the schedule
// serialized to gzip-compressed JSON.
type DurableStore struct {
	db *sql.DB
}

// OpenDurableStore opens (and, if needed, initializes) a SQLite-backed
// durable store at the given DSN, e.g. "file:ricordami.db".
func OpenDurableStore(dsn string) (*DurableStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open durable store: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &DurableStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *DurableStore) Close() error {
	return s.db.Close()
}

// Create writes a new reminder row, write-through, so it survives a
// restart even if it has not yet fired once.
func (s *DurableStore) Create(id ID, def Definition) error {
	blob, err := encodeSchedule(def.Schedule())
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO reminders (user_id, reminder_id, message, schedule) VALUES (?, ?, ?, ?)`,
		userIDKey(id.UserID), id.ReminderID, def.Message(), blob,
	)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// Delete removes a reminder row. Deleting a row that does not exist is not
// an error.
func (s *DurableStore) Delete(id ID) error {
	_, err := s.db.Exec(
		`DELETE FROM reminders WHERE user_id = ? AND reminder_id = ?`,
		userIDKey(id.UserID), id.ReminderID,
	)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return nil
}

// LoadAll streams every durable reminder, for boot-time rehydration of the
// in-memory store. fn is called once per row; an error from fn aborts the
// scan and is returned as-is.
func (s *DurableStore) LoadAll(fn func(ID, Definition) error) error {
	rows, err := s.db.Query(`SELECT user_id, reminder_id, message, schedule FROM reminders`)
	if err != nil {
		return fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userKey    string
			reminderID int32
			message    string
			blob       []byte
		)
		if err := rows.Scan(&userKey, &reminderID, &message, &blob); err != nil {
			return fmt.Errorf("scan reminder: %w", err)
		}
		userID, err := parseUserIDKey(userKey)
		if err != nil {
			return err
		}
		sch, err := decodeSchedule(blob)
		if err != nil {
			return fmt.Errorf("decode schedule for %s/%d: %w", userKey, reminderID, err)
		}
		def := NewDefinition(sch, userID, message)
		if err := fn(ID{UserID: userID, ReminderID: reminderID}, def); err != nil {
			return err
		}
	}
	return rows.Err()
}

func userIDKey(userID uint64) string {
	return fmt.Sprintf("%d", userID)
}

func parseUserIDKey(key string) (uint64, error) {
	var userID uint64
	_, err := fmt.Sscanf(key, "%d", &userID)
	if err != nil {
		return 0, fmt.Errorf("parse user id %q: %w", key, err)
	}
	return userID, nil
}

// scheduleRecord is the wire shape of a Schedule, matching the tagged
// record layout: a kind discriminant plus the fields relevant to it.
type scheduleRecord struct {
	Kind  string      `json:"kind"`
	When  *time.Time  `json:"when,omitempty"`
	Since *time.Time  `json:"since,omitempty"`
	Until *time.Time  `json:"until,omitempty"`
	Grid  *gridRecord `json:"grid,omitempty"`
}

type gridRecord struct {
	Minutes      []byte `json:"minutes"`
	Hours        []byte `json:"hours"`
	WeeksOfMonth []byte `json:"weeks_of_month"`
	DaysOfMonth  []byte `json:"days_of_month"`
	DaysOfWeek   []byte `json:"days_of_week"`
	MonthsOfYear []byte `json:"months_of_year"`
	YearCadence  int    `json:"year_cadence"`
	YearStart    int    `json:"year_start"`
	Timezone     string `json:"timezone"`
}

func toScheduleRecord(s schedule.Schedule) scheduleRecord {
	switch s.Kind() {
	case schedule.Once:
		when := s.When()
		return scheduleRecord{Kind: "once", When: &when}
	case schedule.Recurrent:
		since, _ := s.Bounds()
		return scheduleRecord{Kind: "recurrent", Since: &since, Grid: toGridRecord(s.Grid())}
	case schedule.RecurrentUntil:
		since, until := s.Bounds()
		return scheduleRecord{Kind: "recurrent_until", Since: &since, Until: &until, Grid: toGridRecord(s.Grid())}
	default:
		return scheduleRecord{}
	}
}

func toGridRecord(g *schedule.Grid) *gridRecord {
	minutes, hours, weeks, days, dow, months := g.Bitmaps()
	cadence, start := g.YearCadenceAndStart()
	return &gridRecord{
		Minutes:      minutes.Encode(),
		Hours:        hours.Encode(),
		WeeksOfMonth: weeks.Encode(),
		DaysOfMonth:  days.Encode(),
		DaysOfWeek:   dow.Encode(),
		MonthsOfYear: months.Encode(),
		YearCadence:  cadence,
		YearStart:    start,
		Timezone:     g.Timezone().String(),
	}
}

var errMalformedScheduleRecord = errors.New("reminders: malformed schedule record")

func fromScheduleRecord(rec scheduleRecord) (schedule.Schedule, error) {
	switch rec.Kind {
	case "once":
		if rec.When == nil {
			return schedule.Schedule{}, errMalformedScheduleRecord
		}
		return schedule.NewOnce(*rec.When), nil
	case "recurrent":
		if rec.Since == nil || rec.Grid == nil {
			return schedule.Schedule{}, errMalformedScheduleRecord
		}
		g, err := fromGridRecord(*rec.Grid)
		if err != nil {
			return schedule.Schedule{}, err
		}
		return schedule.NewRecurrent(g, *rec.Since), nil
	case "recurrent_until":
		if rec.Since == nil || rec.Until == nil || rec.Grid == nil {
			return schedule.Schedule{}, errMalformedScheduleRecord
		}
		g, err := fromGridRecord(*rec.Grid)
		if err != nil {
			return schedule.Schedule{}, err
		}
		return schedule.NewRecurrentUntil(g, *rec.Since, *rec.Until), nil
	default:
		return schedule.Schedule{}, errMalformedScheduleRecord
	}
}

func fromGridRecord(rec gridRecord) (*schedule.Grid, error) {
	loc, err := time.LoadLocation(rec.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", rec.Timezone, err)
	}
	return schedule.NewGrid(
		bitmap.Decode(rec.Minutes),
		bitmap.Decode(rec.Hours),
		bitmap.Decode(rec.WeeksOfMonth),
		bitmap.Decode(rec.DaysOfMonth),
		bitmap.Decode(rec.DaysOfWeek),
		bitmap.Decode(rec.MonthsOfYear),
		rec.YearCadence, rec.YearStart, loc,
	)
}

func encodeSchedule(s schedule.Schedule) ([]byte, error) {
	plain, err := json.Marshal(toScheduleRecord(s))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(plain); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSchedule(blob []byte) (schedule.Schedule, error) {
	gr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return schedule.Schedule{}, err
	}
	defer gr.Close()
	plain, err := io.ReadAll(gr)
	if err != nil {
		return schedule.Schedule{}, err
	}
	var rec scheduleRecord
	if err := json.Unmarshal(plain, &rec); err != nil {
		return schedule.Schedule{}, err
	}
	return fromScheduleRecord(rec)
}
