package repofake

import (
	"context"
	"sync"

	"github.com/vitatrack/auth-server/provider"
)

// FakeProviderRepo is a thread-safe in-memory implementation of
// provider.Repo for tests.
type FakeProviderRepo struct {
	mu      sync.RWMutex
	records []*provider.Record
}

func NewFakeProviderRepo() *FakeProviderRepo {
	return &FakeProviderRepo{}
}

func (r *FakeProviderRepo) Latest(ctx context.Context) (*provider.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.records) == 0 {
		return nil, nil
	}
	latest := r.records[0]
	for _, rec := range r.records[1:] {
		if rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	cp := *latest
	return &cp, nil
}

func (r *FakeProviderRepo) Insert(ctx context.Context, rec *provider.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

// Count returns the number of stored records, so tests can assert that
// saves always append rather than update in place.
func (r *FakeProviderRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
