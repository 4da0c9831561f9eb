package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// OpenIDLoginHandler starts a federated login flow and hands the browser
// the provider authorization URL.
func (s *Server) OpenIDLoginHandler() http.HandlerFunc {
	type response struct {
		AuthorizationURL string `json:"authorizationUrl"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		authURL, err := s.deps.Flows.Initiate(r.Context(), sess)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{AuthorizationURL: authURL})
	}
}

// OpenIDCallbackHandler completes the flow with the code/state pair the
// frontend relayed from the provider redirect.
func (s *Server) OpenIDCallbackHandler() http.HandlerFunc {
	type request struct {
		Code  string `json:"code"`
		State string `json:"state"`
	}
	type response struct {
		Success      bool   `json:"success"`
		RedirectURL  string `json:"redirectUrl"`
		SessionToken string `json:"sessionToken,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}

		sess := sessionFromContext(r.Context())
		claims, err := s.deps.Flows.Callback(r.Context(), sess, req.Code, req.State)
		if err != nil {
			s.writeError(w, err)
			return
		}

		principal, err := s.deps.Flows.MaterializeSession(r.Context(), sess, claims)
		if err != nil {
			s.writeError(w, err)
			return
		}

		resp := response{Success: true, RedirectURL: s.config.GetFrontendURL()}
		if principal.Resolved() {
			token, err := s.deps.Tokens.Issue(principal)
			if err != nil {
				log.Error().Err(err).Msg("session token issuance failed")
			} else {
				resp.SessionToken = token
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// MeHandler returns the authenticated principal.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, principalFromContext(r.Context()))
	}
}
