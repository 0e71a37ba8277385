package journal

import (
	"context"
	"log"
	"time"

	"fleet-checkpoint/internal/model"
	"fleet-checkpoint/internal/notification"
	"fleet-checkpoint/internal/scan"
	"fleet-checkpoint/internal/store"
	"fleet-checkpoint/internal/turn"
)

// ClockDispatcher queues push notifications for confirmed transitions.
type ClockDispatcher interface {
	Dispatch(ev notification.ClockEvent) bool
}

// Alerter sends operator alerts.
type Alerter interface {
	Alert(message string)
}

// ScanObserver counts scan outcomes.
type ScanObserver interface {
	ObserveScan(result, action string)
}

// Options wires the optional side effects of a journaled scan.
type Options struct {
	Notifier ClockDispatcher
	Alerter  Alerter
	Observer ScanObserver
	// OnRecorded runs after every stored event, e.g. to purge response caches.
	OnRecorded func()
}

// Recorder persists scan reports and fans them out to notifiers. Record never blocks;
// the work happens on the Run goroutine.
type Recorder struct {
	store store.Store
	opts  Options
	queue chan scan.Report
}

func NewRecorder(s store.Store, opts Options) *Recorder {
	return &Recorder{
		store: s,
		opts:  opts,
		queue: make(chan scan.Report, 64),
	}
}

// Record queues a report. Reports are dropped when the queue is full.
func (r *Recorder) Record(rep scan.Report) {
	select {
	case r.queue <- rep:
	default:
		log.Printf("Journal queue full, dropping scan report for %q", rep.Payload)
	}
}

// Run drains the queue until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	log.Println("Scan journal started.")
	for {
		select {
		case rep := <-r.queue:
			r.handle(ctx, rep)
		case <-ctx.Done():
			log.Println("Scan journal shutting down.")
			return
		}
	}
}

func (r *Recorder) handle(ctx context.Context, rep scan.Report) {
	ev := EventFromReport(rep)

	if r.opts.Observer != nil {
		r.opts.Observer.ObserveScan(ev.Result, ev.Action)
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.store.RecordScan(writeCtx, &ev); err != nil {
		log.Printf("Error journaling scan: %v", err)
	} else if r.opts.OnRecorded != nil {
		r.opts.OnRecorded()
	}

	res := rep.Result
	if res.Outcome == nil || res.Driver == nil {
		return
	}
	switch {
	case res.Outcome.Kind == turn.OutcomeSuccess:
		if r.opts.Notifier != nil {
			r.opts.Notifier.Dispatch(notification.ClockEvent{
				ClockIn:    res.Outcome.Action == turn.ActionClockIn,
				DriverID:   res.Driver.ID,
				DriverName: res.Driver.FullName(),
				NationalID: res.Driver.NationalID,
				At:         rep.At,
			})
		}
	case r.opts.Alerter != nil:
		r.opts.Alerter.Alert("Checkpoint: " + res.Message)
	}
}

// maxIdentifierLen matches the indexed identifier column. Name queries carry the whole
// payload, which can be far longer.
const maxIdentifierLen = 128

// EventFromReport builds the journal row for a report.
func EventFromReport(rep scan.Report) model.ScanEvent {
	res := rep.Result
	ev := model.ScanEvent{
		Payload:    rep.Payload,
		Kind:       string(res.Extraction.Kind),
		Identifier: truncate(res.Extraction.Value, maxIdentifierLen),
		Result:     string(res.Kind),
		Message:    res.Message,
		ScannedAt:  rep.At,
	}
	if res.Driver != nil {
		ev.DriverID = res.Driver.ID
		ev.DriverName = res.Driver.FullName()
	}
	if res.Outcome != nil {
		ev.Action = string(res.Outcome.Action)
	}
	return ev
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
