package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vitatrack/auth-server/internal/errors"
	"github.com/vitatrack/auth-server/sessions"
	"github.com/vitatrack/auth-server/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the browser session
	ContextKeySession ContextKey = "session"
	// ContextKeyPrincipal stores the authenticated principal
	ContextKeyPrincipal ContextKey = "principal"
)

func sessionFromContext(ctx context.Context) *sessions.Session {
	sess, _ := ctx.Value(ContextKeySession).(*sessions.Session)
	return sess
}

func principalFromContext(ctx context.Context) *sessions.Principal {
	principal, _ := ctx.Value(ContextKeyPrincipal).(*sessions.Principal)
	return principal
}

// WithSession loads the browser session named by the session cookie,
// creating a fresh one (and setting the cookie) when none exists.
func (s *Server) WithSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var sess *sessions.Session

			cookie, err := r.Cookie(s.config.GetSessionCookieName())
			if err == nil && cookie.Value != "" {
				sess, err = s.deps.Sessions.Get(cookie.Value)
				if err != nil && !errors.Is(err, errors.ErrSessionNotFound) {
					s.writeError(w, err)
					return
				}
			}

			if sess != nil && sess.ExpiresAt.Before(time.Now()) {
				if err := s.deps.Sessions.Delete(sess.ID); err != nil {
					log.Error().Err(err).Msg("failed to delete expired session")
				}
				sess = nil
			}

			if sess == nil {
				now := time.Now()
				sess = &sessions.Session{
					ID:        uuid.New().String(),
					CreatedAt: now,
					ExpiresAt: now.Add(s.config.GetSessionExpiry()),
				}
				if err := s.deps.Sessions.Upsert(sess.ID, sess); err != nil {
					s.writeError(w, err)
					return
				}
				s.setSessionCookie(w, r, sess)
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, sess)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireUser resolves the caller's principal: from the browser session
// when logged in, otherwise from a Bearer session token. No principal
// means 401.
func (s *Server) RequireUser() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal := s.principalFor(r)
			if principal == nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireAdmin gates admin-only routes. Runs after RequireUser.
func (s *Server) RequireAdmin() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal := principalFromContext(r.Context())
			if principal == nil || principal.Role != string(users.RoleAdmin) {
				writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin access required"})
				return
			}
			next(w, r)
		}
	}
}

func (s *Server) principalFor(r *http.Request) *sessions.Principal {
	if sess := sessionFromContext(r.Context()); sess != nil && sess.User != nil {
		return sess.User
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil
	}
	principal, err := s.deps.Tokens.Parse(parts[1])
	if err != nil {
		log.Warn().Err(err).Msg("rejected session token")
		return nil
	}
	return principal
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sess *sessions.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.config.GetSessionExpiry().Seconds()),
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
