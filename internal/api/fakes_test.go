package api

import (
	"context"
	"errors"
	"sort"
	"sync"

	"fleet-checkpoint/internal/model"
	"fleet-checkpoint/internal/scan"
	"fleet-checkpoint/internal/store"
)

type fakeScanner struct {
	session   scan.Session
	submitted []string
	err       error

	manual    []string
	result    scan.Result
	manualErr error
}

func (f *fakeScanner) Session() scan.Session { return f.session }

func (f *fakeScanner) Subscribe() (<-chan scan.Session, func()) {
	ch := make(chan scan.Session)
	return ch, func() {}
}

func (f *fakeScanner) Submit(p string) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, p)
	return nil
}

func (f *fakeScanner) Manual(ctx context.Context, d model.Driver) (scan.Result, error) {
	if f.manualErr != nil {
		return scan.Result{}, f.manualErr
	}
	f.manual = append(f.manual, d.ID)
	return f.result, nil
}

type fakeRoster struct {
	drivers []model.Driver
	loaded  bool
}

func (f *fakeRoster) Snapshot() []model.Driver { return f.drivers }
func (f *fakeRoster) Loaded() bool             { return f.loaded }
func (f *fakeRoster) Get(id string) (model.Driver, bool) {
	for _, d := range f.drivers {
		if d.ID == id {
			return d, true
		}
	}
	return model.Driver{}, false
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

// memStore is an in-memory store.Store.
type memStore struct {
	mu      sync.Mutex
	scans   []model.ScanEvent
	subs    map[string]model.PushSubscription
	pingErr error
	limits  []int
}

func newMemStore() *memStore {
	return &memStore{subs: make(map[string]model.PushSubscription)}
}

func (m *memStore) RecordScan(ctx context.Context, ev *model.ScanEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, *ev)
	return nil
}

func (m *memStore) RecentScans(ctx context.Context, limit int) ([]model.ScanEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, limit)
	out := append([]model.ScanEvent(nil), m.scans...)
	sort.Slice(out, func(i, j int) bool { return out[i].ScannedAt.After(out[j].ScannedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.Endpoint] = *sub
	return nil
}

func (m *memStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[endpoint]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sub, nil
}

func (m *memStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, endpoint)
	return nil
}

func (m *memStore) SubscriptionsFor(ctx context.Context, clockIn bool) ([]model.PushSubscription, error) {
	return nil, errors.New("not implemented")
}

func (m *memStore) Ping(ctx context.Context) error { return m.pingErr }
