package reminders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ricordami/pkg/schedule"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingCallback struct {
	mu    sync.Mutex
	calls []callRecord
	fired chan struct{}
}

type callRecord struct {
	userID     uint64
	reminderID int32
	message    string
}

func newRecordingCallback() *recordingCallback {
	return &recordingCallback{fired: make(chan struct{}, 16)}
}

func (c *recordingCallback) Call(_ context.Context, userID uint64, reminderID int32, message string) {
	c.mu.Lock()
	c.calls = append(c.calls, callRecord{userID, reminderID, message})
	c.mu.Unlock()
	c.fired <- struct{}{}
}

func (c *recordingCallback) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestEngineFiresOnceReminder(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cb := newRecordingCallback()
	engine := NewEngine(NewMemoryStore(), nil, clock, cb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	when := clock.Now().Add(50 * time.Millisecond)
	_, ok, err := engine.Add(1, "hello", schedule.NewOnce(when))
	require.NoError(t, err)
	require.True(t, ok)

	select {
	case <-cb.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("reminder never fired")
	}
	require.Equal(t, 1, cb.count())
	engine.Stop()
}

func TestEngineDefuseBeforeFireNeverCalls(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cb := newRecordingCallback()
	engine := NewEngine(NewMemoryStore(), nil, clock, cb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	when := clock.Now().Add(200 * time.Millisecond)
	id, ok, err := engine.Add(1, "hello", schedule.NewOnce(when))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, engine.Defuse(1, id))

	select {
	case <-cb.fired:
		t.Fatal("defused reminder fired")
	case <-time.After(350 * time.Millisecond):
	}
	require.Equal(t, 0, cb.count())
	engine.Stop()
}

func TestEngineAddWithEarlierTickPreemptsSleep(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cb := newRecordingCallback()
	engine := NewEngine(NewMemoryStore(), nil, clock, cb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	_, ok, err := engine.Add(1, "late", schedule.NewOnce(clock.Now().Add(5*time.Second)))
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok, err = engine.Add(1, "early", schedule.NewOnce(clock.Now().Add(30*time.Millisecond)))
	require.NoError(t, err)
	require.True(t, ok)

	select {
	case <-cb.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("early reminder never fired")
	}
	require.Equal(t, "early", cb.calls[0].message)
	engine.Stop()
}
