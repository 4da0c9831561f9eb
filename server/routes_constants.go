package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Federated login flow
	RouteOpenIDLogin    = "/openid/login"
	RouteOpenIDCallback = "/openid/callback"
	RouteOpenIDMe       = "/openid/me"

	// Password login & session
	RouteAuthLogin         = "/auth/login"
	RouteAuthLogout        = "/auth/logout"
	RouteAuthLoginSettings = "/auth/login-settings"

	// Admin
	RouteAdminOIDCSettings = "/admin/oidc-settings"

	// Delegated access
	RouteAccess            = "/access"
	RouteAccessByID        = "/access/{id}"
	RouteAccessibleUsers   = "/access/accessible-users"
	RouteAccessCheck       = "/access/check/{userId}"
)
