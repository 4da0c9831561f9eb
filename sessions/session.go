// Package sessions holds browser-session state: the in-flight login flow
// secrets, the resolved principal, and signed session tokens for API
// consumers.
package sessions

import (
	"time"
)

// FlowState carries the single-use secrets of one in-flight login. All
// three are generated at initiation, bound to the browser session, and
// invalidated after one callback attempt.
type FlowState struct {
	CodeVerifier  string
	ExpectedState string
	ExpectedNonce string
	CreatedAt     time.Time
}

// Principal is who the session belongs to. UserID is empty when the
// identity could not be resolved to a local account (degraded outcome:
// the raw claims still say who the provider authenticated).
type Principal struct {
	UserID string                 `json:"user_id,omitempty"`
	Email  string                 `json:"email,omitempty"`
	Name   string                 `json:"name,omitempty"`
	Role   string                 `json:"role,omitempty"`
	Claims map[string]interface{} `json:"claims,omitempty"`
}

// Resolved reports whether the principal maps to a local account.
// Cross-account operations require a resolved principal.
func (p *Principal) Resolved() bool {
	return p != nil && p.UserID != ""
}

// Session is one browser session.
type Session struct {
	ID        string
	Flow      *FlowState // nil when no login is in flight
	User      *Principal // nil before login completes
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Repo persists browser sessions.
type Repo interface {
	Upsert(sessionID string, session *Session) error
	Get(sessionID string) (*Session, error)
	Delete(sessionID string) error
}
