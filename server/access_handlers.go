package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vitatrack/auth-server/grants"
	"github.com/vitatrack/auth-server/internal/errors"
)

// grantView is the wire shape of one delegated-access grant.
type grantView struct {
	ID            string                     `json:"id"`
	OwnerUserID   string                     `json:"owner_user_id"`
	GranteeUserID string                     `json:"grantee_user_id,omitempty"`
	GranteeEmail  string                     `json:"grantee_email"`
	Permissions   map[grants.Capability]bool `json:"permissions"`
	ValidUntil    *time.Time                 `json:"valid_until,omitempty"`
	IsActive      bool                       `json:"is_active"`
	Status        grants.Status              `json:"status"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

func grantViewOf(grant *grants.Grant) grantView {
	view := grantView{
		ID:           grant.ID,
		OwnerUserID:  grant.OwnerUserID,
		GranteeEmail: grant.Grantee.Email(),
		Permissions:  grant.Permissions,
		ValidUntil:   grant.ValidUntil,
		IsActive:     grant.IsActive,
		Status:       grant.Status,
		CreatedAt:    grant.CreatedAt,
		UpdatedAt:    grant.UpdatedAt,
	}
	if userID, ok := grant.Grantee.UserID(); ok {
		view.GranteeUserID = userID
	}
	return view
}

func grantViewsOf(list []*grants.Grant) []grantView {
	views := make([]grantView, 0, len(list))
	for _, grant := range list {
		views = append(views, grantViewOf(grant))
	}
	return views
}

// GrantListHandler lists the grants the caller has extended.
func (s *Server) GrantListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := principalFromContext(r.Context())
		list, err := s.deps.Grants.ListByOwner(r.Context(), principal.UserID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, grantViewsOf(list))
	}
}

// GrantCreateHandler extends a new grant from the caller to an email.
func (s *Server) GrantCreateHandler() http.HandlerFunc {
	type request struct {
		Email       string                     `json:"email"`
		Permissions map[grants.Capability]bool `json:"permissions"`
		ValidUntil  *time.Time                 `json:"valid_until,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}

		principal := principalFromContext(r.Context())
		grant, err := s.deps.Grants.Create(r.Context(), principal.UserID, req.Email, req.Permissions, req.ValidUntil)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, grantViewOf(grant))
	}
}

// GrantUpdateHandler mutates a grant the caller owns. Omitted fields keep
// their stored values; valid_until clears only when clear_valid_until is
// set.
func (s *Server) GrantUpdateHandler() http.HandlerFunc {
	type request struct {
		Permissions     map[grants.Capability]bool `json:"permissions,omitempty"`
		ValidUntil      *time.Time                 `json:"valid_until,omitempty"`
		ClearValidUntil bool                       `json:"clear_valid_until,omitempty"`
		IsActive        *bool                      `json:"is_active,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}

		principal := principalFromContext(r.Context())
		grant, err := s.deps.Grants.Update(r.Context(), principal.UserID, mux.Vars(r)["id"], grants.UpdateInput{
			Permissions:     req.Permissions,
			ValidUntil:      req.ValidUntil,
			ClearValidUntil: req.ClearValidUntil,
			IsActive:        req.IsActive,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, grantViewOf(grant))
	}
}

// GrantDeleteHandler revokes a grant the caller owns.
func (s *Server) GrantDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := principalFromContext(r.Context())
		if err := s.deps.Grants.Delete(r.Context(), principal.UserID, mux.Vars(r)["id"]); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// AccessibleUsersHandler lists the accounts the caller can act on through
// currently effective grants.
func (s *Server) AccessibleUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := principalFromContext(r.Context())
		accessible, err := s.deps.Grants.AccessibleUsers(r.Context(), principal.UserID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, accessible)
	}
}

// AccessCheckHandler answers whether the caller holds a capability over
// the target account. A denied check is a 403, not a 200-with-false, so
// data routes can forward it directly.
func (s *Server) AccessCheckHandler() http.HandlerFunc {
	type response struct {
		Allowed bool `json:"allowed"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		capability := grants.Capability(r.URL.Query().Get("permission"))
		if capability == "" {
			s.writeError(w, errors.Wrapf(errors.ErrInvalidRequest, "[AccessCheckHandler] permission query parameter is required"))
			return
		}

		principal := principalFromContext(r.Context())
		allowed, err := s.deps.Grants.CheckAccess(r.Context(), principal.UserID, mux.Vars(r)["userId"], capability)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if !allowed {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "access denied"})
			return
		}
		writeJSON(w, http.StatusOK, response{Allowed: true})
	}
}
