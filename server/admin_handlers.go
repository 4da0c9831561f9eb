package server

import (
	"net/http"
	"time"

	"github.com/vitatrack/auth-server/internal/errors"
	"github.com/vitatrack/auth-server/provider"
)

// oidcSettingsView is the admin-facing shape of the provider
// configuration. The client secret never appears in it; a stored secret
// shows as the masking placeholder.
type oidcSettingsView struct {
	IssuerURL               string   `json:"issuer_url"`
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret"`
	RedirectURIs            []string `json:"redirect_uris"`
	Scope                   string   `json:"scope"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	IDTokenSigningAlg       string   `json:"id_token_signing_alg,omitempty"`
	UserinfoSigningAlg      string   `json:"userinfo_signing_alg,omitempty"`
	RequestTimeoutMS        int64    `json:"request_timeout_ms"`
	AutoRegister            bool     `json:"auto_register"`
	EnablePasswordLogin     bool     `json:"enable_password_login"`
	IsActive                bool     `json:"is_active"`
}

func settingsViewOf(cfg *provider.Config) oidcSettingsView {
	view := oidcSettingsView{
		IssuerURL:               cfg.IssuerURL,
		ClientID:                cfg.ClientID,
		RedirectURIs:            cfg.RedirectURIs,
		Scope:                   cfg.Scope,
		TokenEndpointAuthMethod: cfg.TokenEndpointAuthMethod,
		ResponseTypes:           cfg.ResponseTypes,
		IDTokenSigningAlg:       cfg.IDTokenSigningAlg,
		UserinfoSigningAlg:      cfg.UserinfoSigningAlg,
		RequestTimeoutMS:        cfg.RequestTimeout.Milliseconds(),
		AutoRegister:            cfg.AutoRegister,
		EnablePasswordLogin:     cfg.EnablePasswordLogin,
		IsActive:                cfg.IsActive,
	}
	if cfg.ClientSecret != "" {
		view.ClientSecret = provider.SecretPlaceholder
	}
	return view
}

// OIDCSettingsGetHandler returns the stored provider configuration with
// the secret masked.
func (s *Server) OIDCSettingsGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.deps.Registry.ActiveConfig(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		if cfg == nil {
			writeJSON(w, http.StatusOK, oidcSettingsView{EnablePasswordLogin: true})
			return
		}
		writeJSON(w, http.StatusOK, settingsViewOf(cfg))
	}
}

// OIDCSettingsSaveHandler stores a new provider configuration and
// invalidates the live client so the next login rediscovers. Submitting
// the masking placeholder (or no secret) keeps the stored one.
func (s *Server) OIDCSettingsSaveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oidcSettingsView
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		if req.IsActive && (req.IssuerURL == "" || req.ClientID == "") {
			s.writeError(w, errors.Wrapf(errors.ErrInvalidRequest,
				"[OIDCSettingsSaveHandler] issuer_url and client_id are required for an active configuration"))
			return
		}

		cfg, err := s.deps.Registry.Save(r.Context(), provider.SaveInput{
			IssuerURL:               req.IssuerURL,
			ClientID:                req.ClientID,
			ClientSecret:            req.ClientSecret,
			RedirectURIs:            req.RedirectURIs,
			Scope:                   req.Scope,
			TokenEndpointAuthMethod: req.TokenEndpointAuthMethod,
			ResponseTypes:           req.ResponseTypes,
			IDTokenSigningAlg:       req.IDTokenSigningAlg,
			UserinfoSigningAlg:      req.UserinfoSigningAlg,
			RequestTimeout:          time.Duration(req.RequestTimeoutMS) * time.Millisecond,
			AutoRegister:            req.AutoRegister,
			EnablePasswordLogin:     req.EnablePasswordLogin,
			IsActive:                req.IsActive,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.deps.Factory.Invalidate()
		writeJSON(w, http.StatusOK, settingsViewOf(cfg))
	}
}
