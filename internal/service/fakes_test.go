package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"site-analytics/internal/domain"
)

var errStorage = errors.New("storage unavailable")

type cacheEntry struct {
	value   string
	expired bool
}

// fakeCacheRepository keeps entries in memory; an entry is fresh until marked expired
type fakeCacheRepository struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	getErr   error
	setErr   error
	staleErr error
	sets     int
}

func newFakeCacheRepository() *fakeCacheRepository {
	return &fakeCacheRepository{entries: make(map[string]cacheEntry)}
}

func (f *fakeCacheRepository) put(key, value string, expired bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = cacheEntry{value: value, expired: expired}
}

func (f *fakeCacheRepository) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = cacheEntry{value: value, expired: ttl <= 0}
	return nil
}

func (f *fakeCacheRepository) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	e, ok := f.entries[key]
	if !ok || e.expired {
		return "", false, nil
	}
	return e.value, true, nil
}

func (f *fakeCacheRepository) GetStale(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.staleErr != nil {
		return "", false, f.staleErr
	}
	e, ok := f.entries[key]
	return e.value, ok, nil
}

func (f *fakeCacheRepository) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := f.Get(ctx, key)
	return ok, err
}

func (f *fakeCacheRepository) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *fakeCacheRepository) ClearExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, e := range f.entries {
		if e.expired {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeCacheRepository) ClearAll(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.entries))
	f.entries = make(map[string]cacheEntry)
	return n, nil
}

// fakeEventRepository records every batch; failNext makes the next N inserts fail
type fakeEventRepository struct {
	mu       sync.Mutex
	batches  [][]domain.EventRecord
	failNext int
	calls    int
}

func (f *fakeEventRepository) InsertBatch(ctx context.Context, events []domain.EventRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failNext > 0 {
		f.failNext--
		return errStorage
	}
	batch := make([]domain.EventRecord, len(events))
	copy(batch, events)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeEventRepository) stored() []domain.EventRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.EventRecord
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

func (f *fakeEventRepository) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakeVisitRepository struct {
	mu     sync.Mutex
	visits []domain.VisitRecord
	err    error
}

func (f *fakeVisitRepository) Create(ctx context.Context, visit *domain.VisitRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	visit.ID = int64(len(f.visits) + 1)
	visit.CreatedAt = time.Now().UTC()
	f.visits = append(f.visits, *visit)
	return nil
}

func (f *fakeVisitRepository) all() []domain.VisitRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.VisitRecord(nil), f.visits...)
}
