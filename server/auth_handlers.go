package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vitatrack/auth-server/sessions"
)

// LoginSettingsHandler reports which login modes the active configuration
// enables, so the frontend can render the right form.
func (s *Server) LoginSettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := s.deps.Flows.LoginSettings(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

// PasswordLoginHandler authenticates the email/password path.
func (s *Server) PasswordLoginHandler() http.HandlerFunc {
	type request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	type response struct {
		User         *sessions.Principal `json:"user"`
		SessionToken string              `json:"sessionToken,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}

		sess := sessionFromContext(r.Context())
		principal, err := s.deps.Flows.PasswordLogin(r.Context(), sess, req.Email, req.Password)
		if err != nil {
			s.writeError(w, err)
			return
		}

		resp := response{User: principal}
		token, err := s.deps.Tokens.Issue(principal)
		if err != nil {
			log.Error().Err(err).Msg("session token issuance failed")
		} else {
			resp.SessionToken = token
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// LogoutHandler drops the browser session and its cookie.
func (s *Server) LogoutHandler() http.HandlerFunc {
	type response struct {
		Success bool `json:"success"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if err := s.deps.Sessions.Delete(sess.ID); err != nil {
			log.Error().Err(err).Msg("failed to delete session on logout")
		}
		s.clearSessionCookie(w, r)
		writeJSON(w, http.StatusOK, response{Success: true})
	}
}
