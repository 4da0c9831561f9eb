package sessions

import (
	"sync"

	"github.com/vitatrack/auth-server/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{sessions: make(map[string]*Session)}
}

func (r *InMemoryRepo) Upsert(sessionID string, session *Session) error {
	if sessionID == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "[InMemoryRepo.Upsert] session id cannot be empty")
	}
	if session == nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "[InMemoryRepo.Upsert] session cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = copySession(session)
	return nil
}

func (r *InMemoryRepo) Get(sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[InMemoryRepo.Get] session id cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	session, exists := r.sessions[sessionID]
	if !exists {
		return nil, errors.Wrapf(errors.ErrSessionNotFound, "[InMemoryRepo.Get] %s", sessionID)
	}
	return copySession(session), nil
}

func (r *InMemoryRepo) Delete(sessionID string) error {
	if sessionID == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "[InMemoryRepo.Delete] session id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

// copySession prevents external mutation of stored state.
func copySession(s *Session) *Session {
	cp := *s
	if s.Flow != nil {
		flow := *s.Flow
		cp.Flow = &flow
	}
	if s.User != nil {
		user := *s.User
		if s.User.Claims != nil {
			user.Claims = make(map[string]interface{}, len(s.User.Claims))
			for k, v := range s.User.Claims {
				user.Claims[k] = v
			}
		}
		cp.User = &user
	}
	return &cp
}
