package journal

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-checkpoint/internal/model"
	"fleet-checkpoint/internal/notification"
	"fleet-checkpoint/internal/parse"
	"fleet-checkpoint/internal/scan"
	"fleet-checkpoint/internal/store"
	"fleet-checkpoint/internal/turn"
)

type memStore struct {
	store.Store
	mu     sync.Mutex
	events []model.ScanEvent
}

func (m *memStore) RecordScan(ctx context.Context, ev *model.ScanEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []notification.ClockEvent
}

func (f *fakeDispatcher) Dispatch(ev notification.ClockEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return true
}

type fakeAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeAlerter) Alert(m string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
}

var juan = model.Driver{ID: "7", NationalID: "12345678-9", FirstName: "Juan", LastName: "Pérez", State: model.StateDayOff}

func successReport() scan.Report {
	d := juan
	o := turn.Outcome{Kind: turn.OutcomeSuccess, Action: turn.ActionClockIn, Message: "Clock-in recorded", NewState: model.StateAvailable}
	return scan.Report{
		Payload: "12345678-9",
		At:      time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Result: scan.Result{
			Show: true, Attempted: true, Kind: scan.ResultSuccess, Message: o.Message,
			Extraction: parse.Extraction{Kind: parse.KindBareID, Value: "12345678-9"},
			Driver:     &d,
			Outcome:    &o,
		},
	}
}

func TestEventFromReport(t *testing.T) {
	ev := EventFromReport(successReport())
	assert.Equal(t, model.ScanEvent{
		Payload:    "12345678-9",
		Kind:       "bare_id",
		Identifier: "12345678-9",
		DriverID:   "7",
		DriverName: "Juan Pérez",
		Action:     "clock_in",
		Result:     "success",
		Message:    "Clock-in recorded",
		ScannedAt:  time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}, ev)

	notFound := EventFromReport(scan.Report{Payload: "99999999-9", Result: scan.Result{Kind: scan.ResultError, Message: "not found"}})
	assert.Empty(t, notFound.DriverID)
	assert.Empty(t, notFound.Action)
}

func TestEventFromReport_LongPayload(t *testing.T) {
	payload := strings.Repeat("ñ", 4000)
	ev := EventFromReport(scan.Report{
		Payload: payload,
		Result: scan.Result{
			Show:       true,
			Kind:       scan.ResultError,
			Extraction: parse.Extraction{Kind: parse.KindNameQuery, Value: payload},
		},
	})

	assert.Equal(t, payload, ev.Payload, "the payload column is unbounded")
	assert.Equal(t, strings.Repeat("ñ", maxIdentifierLen), ev.Identifier)
	assert.Equal(t, "short", truncate("short", maxIdentifierLen))
}

func TestRecorder_FansOut(t *testing.T) {
	s := &memStore{}
	d := &fakeDispatcher{}
	a := &fakeAlerter{}
	var purged int32
	var mu sync.Mutex

	r := NewRecorder(s, Options{Notifier: d, Alerter: a, OnRecorded: func() {
		mu.Lock()
		purged++
		mu.Unlock()
	}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Record(successReport())

	failed := successReport()
	o := turn.Outcome{Kind: turn.OutcomeError, Action: turn.ActionClockIn, Message: "shift already open"}
	failed.Result.Kind = scan.ResultError
	failed.Result.Message = o.Message
	failed.Result.Outcome = &o
	r.Record(failed)

	r.Record(scan.Report{Payload: "99999999-9", Result: scan.Result{Show: true, Kind: scan.ResultError, Message: "not found"}})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return purged == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, s.count())

	d.mu.Lock()
	require.Len(t, d.events, 1)
	assert.True(t, d.events[0].ClockIn)
	assert.Equal(t, "Juan Pérez", d.events[0].DriverName)
	d.mu.Unlock()

	a.mu.Lock()
	assert.Equal(t, []string{"Checkpoint: shift already open"}, a.messages)
	a.mu.Unlock()
}
