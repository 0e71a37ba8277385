package frame

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Event is the outcome of decoding one frame. An empty Payload means nothing was
// decoded.
type Event struct {
	Payload string
	At      time.Time
}

// Observer is told about every decoded frame.
type Observer interface {
	ObserveFrame(decoded bool, took time.Duration)
}

// Loop pulls frames from a source at a fixed cadence and emits one Event per frame.
// A Loop is started once.
type Loop struct {
	open     Opener
	decoder  Decoder
	limiter  *rate.Limiter
	observer Observer

	closeOnce sync.Once
	src       Source

	mu  sync.Mutex
	err error
}

// NewLoop creates a loop emitting at most fps events per second. A slow decode
// delays the next frame.
func NewLoop(open Opener, decoder Decoder, fps float64) *Loop {
	return &Loop{
		open:    open,
		decoder: decoder,
		limiter: rate.NewLimiter(rate.Limit(fps), 1),
	}
}

// SetObserver registers o for per-frame reports. Call before Start.
func (l *Loop) SetObserver(o Observer) {
	l.observer = o
}

// Start acquires the source and begins emitting events. Acquisition failures are
// returned once and are not retried. The returned channel is closed when ctx is
// cancelled or the source fails; Err reports the failure after that.
func (l *Loop) Start(ctx context.Context) (<-chan Event, error) {
	src, err := l.open(ctx)
	if err != nil {
		if src != nil {
			l.src = src
			l.release()
		}
		return nil, err
	}
	l.src = src

	events := make(chan Event)
	go l.run(ctx, events)
	return events, nil
}

func (l *Loop) run(ctx context.Context, events chan<- Event) {
	defer close(events)
	defer l.release()

	for {
		if err := l.limiter.Wait(ctx); err != nil {
			return
		}

		img, err := l.src.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("Frame source failed: %v", err)
				l.setErr(err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		payload, ok := l.decoder.Decode(img)
		if !ok {
			payload = ""
		}
		if l.observer != nil {
			l.observer.ObserveFrame(payload != "", time.Since(start))
		}

		select {
		case events <- Event{Payload: payload, At: time.Now()}:
		case <-ctx.Done():
			return
		}
	}
}

// release closes the source exactly once.
func (l *Loop) release() {
	l.closeOnce.Do(func() {
		if err := l.src.Close(); err != nil {
			log.Printf("Error closing frame source: %v", err)
		}
	})
}

func (l *Loop) setErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// Err returns the error that ended the loop, or nil when it stopped because its
// context was cancelled.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// IsAcquireError reports whether err is a camera acquisition failure.
func IsAcquireError(err error) bool {
	var ae *AcquireError
	return errors.As(err, &ae)
}
