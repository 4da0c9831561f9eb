package repofake

import (
	"context"
	"strings"
	"sync"

	"github.com/vitatrack/auth-server/grants"
)

// FakeGrantRepo is a thread-safe in-memory implementation of grants.Repo
type FakeGrantRepo struct {
	mu    sync.RWMutex
	rows  map[string]*grants.Grant
	order []string
}

func NewFakeGrantRepo() *FakeGrantRepo {
	return &FakeGrantRepo{rows: make(map[string]*grants.Grant)}
}

func (r *FakeGrantRepo) Insert(ctx context.Context, grant *grants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *grant
	r.rows[grant.ID] = &cp
	r.order = append(r.order, grant.ID)
	return nil
}

func (r *FakeGrantRepo) GetByID(ctx context.Context, id string) (*grants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	grant, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *grant
	return &cp, nil
}

func (r *FakeGrantRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]*grants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*grants.Grant
	for _, id := range r.order {
		if grant, ok := r.rows[id]; ok && grant.OwnerUserID == ownerUserID {
			cp := *grant
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *FakeGrantRepo) ListForGrantee(ctx context.Context, userID, email string) ([]*grants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*grants.Grant
	for _, id := range r.order {
		grant, ok := r.rows[id]
		if !ok {
			continue
		}
		if granteeID, resolved := grant.Grantee.UserID(); resolved && granteeID == userID {
			cp := *grant
			out = append(out, &cp)
			continue
		}
		if email != "" && strings.EqualFold(grant.Grantee.Email(), email) {
			cp := *grant
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *FakeGrantRepo) Update(ctx context.Context, ownerUserID string, grant *grants.Grant) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[grant.ID]
	if !ok || existing.OwnerUserID != ownerUserID {
		return false, nil
	}
	cp := *grant
	r.rows[grant.ID] = &cp
	return true, nil
}

func (r *FakeGrantRepo) Delete(ctx context.Context, ownerUserID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[id]
	if !ok || existing.OwnerUserID != ownerUserID {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}
