package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	s.router.Use(s.RecoverMiddleware, s.LoggingMiddleware)

	// Federated login flow (session-scoped, no authenticated user yet)
	s.router.HandleFunc(RouteOpenIDLogin,
		ChainMiddleware(s.OpenIDLoginHandler(), s.WithSession())).Methods(http.MethodGet)
	s.router.HandleFunc(RouteOpenIDCallback,
		ChainMiddleware(s.OpenIDCallbackHandler(), s.WithSession())).Methods(http.MethodPost)
	s.router.HandleFunc(RouteOpenIDMe,
		ChainMiddleware(s.MeHandler(), s.WithSession(), s.RequireUser())).Methods(http.MethodGet)

	// Password login & session
	s.router.HandleFunc(RouteAuthLoginSettings, s.LoginSettingsHandler()).Methods(http.MethodGet)
	s.router.HandleFunc(RouteAuthLogin,
		ChainMiddleware(s.PasswordLoginHandler(), s.WithSession())).Methods(http.MethodPost)
	s.router.HandleFunc(RouteAuthLogout,
		ChainMiddleware(s.LogoutHandler(), s.WithSession())).Methods(http.MethodPost)

	// Admin
	s.router.HandleFunc(RouteAdminOIDCSettings,
		ChainMiddleware(s.OIDCSettingsGetHandler(), s.WithSession(), s.RequireUser(), s.RequireAdmin())).Methods(http.MethodGet)
	s.router.HandleFunc(RouteAdminOIDCSettings,
		ChainMiddleware(s.OIDCSettingsSaveHandler(), s.WithSession(), s.RequireUser(), s.RequireAdmin())).Methods(http.MethodPost)

	// Delegated access (all owner- or grantee-scoped to the caller)
	s.router.HandleFunc(RouteAccessibleUsers,
		ChainMiddleware(s.AccessibleUsersHandler(), s.WithSession(), s.RequireUser())).Methods(http.MethodGet)
	s.router.HandleFunc(RouteAccessCheck,
		ChainMiddleware(s.AccessCheckHandler(), s.WithSession(), s.RequireUser())).Methods(http.MethodGet)
	s.router.HandleFunc(RouteAccess,
		ChainMiddleware(s.GrantListHandler(), s.WithSession(), s.RequireUser())).Methods(http.MethodGet)
	s.router.HandleFunc(RouteAccess,
		ChainMiddleware(s.GrantCreateHandler(), s.WithSession(), s.RequireUser())).Methods(http.MethodPost)
	s.router.HandleFunc(RouteAccessByID,
		ChainMiddleware(s.GrantUpdateHandler(), s.WithSession(), s.RequireUser())).Methods(http.MethodPut)
	s.router.HandleFunc(RouteAccessByID,
		ChainMiddleware(s.GrantDeleteHandler(), s.WithSession(), s.RequireUser())).Methods(http.MethodDelete)
}
