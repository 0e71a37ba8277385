package roster

import (
	"context"
	"log"
	"sync"
	"time"

	"fleet-checkpoint/internal/model"
)

// Fetcher loads the full roster from the source of truth.
type Fetcher interface {
	FetchRoster(ctx context.Context) ([]model.Driver, error)
}

// RefreshObserver is told about every refresh attempt.
type RefreshObserver interface {
	ObserveRosterRefresh(size int, err error, took time.Duration)
}

// Roster is the in-memory driver list used for identity resolution. It is read-mostly:
// the only local write is the optimistic state mirror in SetState, which is always
// followed by a refetch request.
type Roster struct {
	fetcher  Fetcher
	observer RefreshObserver

	mu       sync.RWMutex
	drivers  []model.Driver
	loadedAt time.Time

	refresh chan struct{}
}

// New creates an empty roster. Nothing is fetched until Refresh or Run is called.
func New(fetcher Fetcher) *Roster {
	return &Roster{
		fetcher: fetcher,
		refresh: make(chan struct{}, 1),
	}
}

// SetObserver registers o for refresh reports. Call before Run.
func (r *Roster) SetObserver(o RefreshObserver) {
	r.observer = o
}

// Refresh replaces the roster with a fresh copy. On error the current roster is kept.
func (r *Roster) Refresh(ctx context.Context) error {
	start := time.Now()
	drivers, err := r.fetcher.FetchRoster(ctx)
	if r.observer != nil {
		r.observer.ObserveRosterRefresh(len(drivers), err, time.Since(start))
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.drivers = drivers
	r.loadedAt = time.Now()
	r.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current roster.
func (r *Roster) Snapshot() []model.Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Driver, len(r.drivers))
	copy(out, r.drivers)
	return out
}

// Loaded reports whether at least one refresh has succeeded.
func (r *Roster) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.loadedAt.IsZero()
}

// LoadedAt returns the time of the last successful refresh.
func (r *Roster) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}

// Get looks a driver up by ID.
func (r *Roster) Get(id string) (model.Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.drivers {
		if d.ID == id {
			return d, true
		}
	}
	return model.Driver{}, false
}

// SetState mirrors a confirmed transition locally until the next refresh.
// It returns false when the driver is not in the roster.
func (r *Roster) SetState(id string, state model.AvailabilityState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.drivers {
		if r.drivers[i].ID == id {
			r.drivers[i].State = state
			return true
		}
	}
	return false
}

// RequestRefresh asks Run for a refetch. Requests made while one is pending are
// coalesced; the call never blocks.
func (r *Roster) RequestRefresh() {
	select {
	case r.refresh <- struct{}{}:
	default:
	}
}

// Run refreshes the roster immediately, then on every interval tick and on every
// RequestRefresh until ctx is cancelled.
func (r *Roster) Run(ctx context.Context, interval time.Duration) {
	log.Println("Starting roster refresher...")
	r.refreshAndLog(ctx)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Roster refresher shutting down.")
			return
		case <-timer.C:
			r.refreshAndLog(ctx)
			timer.Reset(interval)
		case <-r.refresh:
			r.refreshAndLog(ctx)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(interval)
		}
	}
}

func (r *Roster) refreshAndLog(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		if ctx.Err() == nil {
			log.Printf("Error refreshing roster: %v", err)
		}
		return
	}
	log.Printf("Roster refreshed: %d drivers", len(r.Snapshot()))
}
