package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	Err     error
	Panic   bool
	Entries []Entry
}

func (f *fakeSink) Write(_ context.Context, e Entry) error {
	if f.Panic {
		panic("sink exploded")
	}
	f.Entries = append(f.Entries, e)
	return f.Err
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestRecorder_StampsEntry(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))
	sink := &fakeSink{}
	r := NewRecorder(sink,
		WithClock(fixedClock(now)),
		WithIDGenerator(func() string { return "id-1" }),
		WithRequestInfo(RequestInfo{IPAddress: "10.0.0.1", UserAgent: "ua", Location: "Riga"}),
	)

	r.Record(context.Background(), Event{
		UserID:  "u1",
		Action:  ActionLoginSuccess,
		Success: true,
		Details: map[string]any{"email": "a@b.co"},
	})

	require.Len(t, sink.Entries, 1)
	assert.Equal(t, Entry{
		ID:        "id-1",
		UserID:    "u1",
		Action:    ActionLoginSuccess,
		IPAddress: "10.0.0.1",
		UserAgent: "ua",
		Location:  "Riga",
		Timestamp: now.UTC(),
		Success:   true,
		Details:   map[string]any{"email": "a@b.co"},
	}, sink.Entries[0])
}

func TestRecorder_DefaultIDsAreUnique(t *testing.T) {
	sink := &fakeSink{}
	r := NewRecorder(sink)

	r.Record(context.Background(), Event{Action: ActionLogout})
	r.Record(context.Background(), Event{Action: ActionLogout})

	require.Len(t, sink.Entries, 2)
	assert.NotEmpty(t, sink.Entries[0].ID)
	assert.NotEqual(t, sink.Entries[0].ID, sink.Entries[1].ID)
}

func TestRecorder_SinkFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()

	assert.NotPanics(t, func() {
		NewRecorder(&fakeSink{Err: errors.New("disk full")}).Record(ctx, Event{Action: ActionLoginAttempt})
	})
	assert.NotPanics(t, func() {
		NewRecorder(&fakeSink{Panic: true}).Record(ctx, Event{Action: ActionLoginAttempt})
	})
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() { r.Record(context.Background(), Event{Action: ActionLogout}) })
	assert.NotPanics(t, func() { NewRecorder(nil).Record(context.Background(), Event{Action: ActionLogout}) })
}

func TestDefaultUserAgent(t *testing.T) {
	assert.Regexp(t, `^authkeeper-cli/1\.2\.3 \([a-z0-9]+/[a-z0-9]+\)$`, DefaultUserAgent("1.2.3"))
}
