// Package server is the HTTP surface: federated and password login,
// session handling, admin configuration, and delegated-access management.
package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vitatrack/auth-server/grants"
	"github.com/vitatrack/auth-server/internal/config"
	"github.com/vitatrack/auth-server/internal/errors"
	"github.com/vitatrack/auth-server/loginflow"
	"github.com/vitatrack/auth-server/provider"
	"github.com/vitatrack/auth-server/sessions"
	"github.com/vitatrack/auth-server/users"
)

// Deps bundles everything the HTTP layer delegates to.
type Deps struct {
	Flows    *loginflow.Controller
	Grants   *grants.Engine
	Registry *provider.Registry
	Factory  *provider.SessionFactory
	Sessions sessions.Repo
	Users    users.Repo
	Tokens   *sessions.TokenIssuer
}

func (d Deps) validate() error {
	if d.Flows == nil {
		return errors.Wrapf(errors.ErrInternal, "[server.Deps] flow controller is required")
	}
	if d.Grants == nil {
		return errors.Wrapf(errors.ErrInternal, "[server.Deps] grants engine is required")
	}
	if d.Registry == nil {
		return errors.Wrapf(errors.ErrInternal, "[server.Deps] provider registry is required")
	}
	if d.Factory == nil {
		return errors.Wrapf(errors.ErrInternal, "[server.Deps] session factory is required")
	}
	if d.Sessions == nil {
		return errors.Wrapf(errors.ErrInternal, "[server.Deps] session repo is required")
	}
	if d.Users == nil {
		return errors.Wrapf(errors.ErrInternal, "[server.Deps] user repo is required")
	}
	if d.Tokens == nil {
		return errors.Wrapf(errors.ErrInternal, "[server.Deps] token issuer is required")
	}
	return nil
}

type Server struct {
	env    string
	router *mux.Router
	config config.Config
	deps   Deps
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[server.New] config is required")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		env:    cfg.GetEnv(),
		router: mux.NewRouter(),
		config: cfg,
		deps:   deps,
	}
	s.initRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
