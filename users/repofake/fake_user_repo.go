package repofake

import (
	"context"
	"strings"
	"sync"

	"github.com/vitatrack/auth-server/users"
)

// FakeUserRepo is a thread-safe in-memory implementation of users.Repo
type FakeUserRepo struct {
	mu       sync.RWMutex
	accounts map[string]*users.Account              // keyed by lowercase email
	prefs    map[string][]users.NutrientPreference  // keyed by account id
	mutation int                                    // counts writes, for idempotency assertions
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		accounts: make(map[string]*users.Account),
		prefs:    make(map[string][]users.NutrientPreference),
	}
}

func (r *FakeUserRepo) GetByEmail(ctx context.Context, email string) (*users.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	cp := *account
	return &cp, nil
}

func (r *FakeUserRepo) GetByID(ctx context.Context, id string) (*users.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, account := range r.accounts {
		if account.ID == id {
			cp := *account
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakeUserRepo) CreateWithPreferences(ctx context.Context, account *users.Account, prefs []users.NutrientPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *account
	r.accounts[strings.ToLower(account.Email)] = &cp
	r.prefs[account.ID] = append([]users.NutrientPreference(nil), prefs...)
	r.mutation++
	return nil
}

func (r *FakeUserRepo) SetFederatedSubject(ctx context.Context, id, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.ID == id {
			account.FederatedSubject = subject
			r.mutation++
			return nil
		}
	}
	return nil
}

// Preferences returns the seeded preference rows for an account.
func (r *FakeUserRepo) Preferences(id string) []users.NutrientPreference {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]users.NutrientPreference(nil), r.prefs[id]...)
}

// MutationCount returns how many writes the repo has seen.
func (r *FakeUserRepo) MutationCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mutation
}
