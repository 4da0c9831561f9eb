package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vitatrack/auth-server/grants"
	grantfake "github.com/vitatrack/auth-server/grants/repofake"
	"github.com/vitatrack/auth-server/loginflow"
	"github.com/vitatrack/auth-server/provider"
	providerfake "github.com/vitatrack/auth-server/provider/repofake"
	"github.com/vitatrack/auth-server/secrets"
	"github.com/vitatrack/auth-server/server"
	"github.com/vitatrack/auth-server/sessions"
	"github.com/vitatrack/auth-server/users"
	userfake "github.com/vitatrack/auth-server/users/repofake"
)

type testConfig struct{}

func (testConfig) GetPort() string                  { return ":8080" }
func (testConfig) GetAppName() string               { return "VitaTrack Auth" }
func (testConfig) GetBaseURL() string               { return "http://localhost:8080" }
func (testConfig) GetFrontendURL() string           { return "http://localhost:3000" }
func (testConfig) GetDatabasePath() string          { return ":memory:" }
func (testConfig) GetEnv() string                   { return "TEST" }
func (testConfig) GetEncryptionKey() []byte         { return make([]byte, 32) }
func (testConfig) GetSessionSecret() []byte         { return []byte("test-session-secret") }
func (testConfig) GetSessionExpiry() time.Duration  { return time.Hour }
func (testConfig) GetSessionCookieName() string     { return "vitatrack_session" }

type fixture struct {
	server   *server.Server
	users    *userfake.FakeUserRepo
	grants   *grantfake.FakeGrantRepo
	registry *provider.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testConfig{}
	codec, err := secrets.NewCodec(cfg.GetEncryptionKey())
	require.NoError(t, err)
	registry, err := provider.NewRegistry(providerfake.NewFakeProviderRepo(), codec)
	require.NoError(t, err)
	factory, err := provider.NewSessionFactory(registry, cfg.GetFrontendURL())
	require.NoError(t, err)

	userRepo := userfake.NewFakeUserRepo()
	provisioner, err := users.NewProvisioner(userRepo)
	require.NoError(t, err)

	grantRepo := grantfake.NewFakeGrantRepo()
	engine, err := grants.NewEngine(grantRepo, userRepo)
	require.NoError(t, err)

	sessionRepo := sessions.NewInMemoryRepo()
	flows, err := loginflow.NewController(factory, registry, sessionRepo, provisioner, userRepo)
	require.NoError(t, err)

	tokens, err := sessions.NewTokenIssuer(cfg.GetSessionSecret(), cfg.GetBaseURL(), cfg.GetSessionExpiry())
	require.NoError(t, err)

	srv, err := server.New(cfg, server.Deps{
		Flows:    flows,
		Grants:   engine,
		Registry: registry,
		Factory:  factory,
		Sessions: sessionRepo,
		Users:    userRepo,
		Tokens:   tokens,
	})
	require.NoError(t, err)

	return &fixture{server: srv, users: userRepo, grants: grantRepo, registry: registry}
}

func (f *fixture) addUser(t *testing.T, id, email, password string, role users.RoleType) {
	t.Helper()
	hash, err := users.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, f.users.CreateWithPreferences(context.Background(), &users.Account{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}, nil))
}

type request struct {
	method string
	path   string
	body   interface{}
	token  string
	cookie *http.Cookie
}

func (f *fixture) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	body := bytes.NewBuffer(nil)
	if req.body != nil {
		require.NoError(t, json.NewEncoder(body).Encode(req.body))
	}
	httpReq := httptest.NewRequest(req.method, req.path, body)
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.cookie != nil {
		httpReq.AddCookie(req.cookie)
	}
	recorder := httptest.NewRecorder()
	f.server.ServeHTTP(recorder, httpReq)
	return recorder
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(v))
}

// login runs a password login and returns the bearer session token.
func (f *fixture) login(t *testing.T, email, password string) string {
	t.Helper()
	recorder := f.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]string{
		"email":    email,
		"password": password,
	}})
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp struct {
		SessionToken string `json:"sessionToken"`
	}
	decode(t, recorder, &resp)
	require.NotEmpty(t, resp.SessionToken)
	return resp.SessionToken
}

func TestLoginSettingsWithoutConfiguration(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, request{method: http.MethodGet, path: "/auth/login-settings"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp struct {
		OIDCEnabled     bool `json:"oidc_enabled"`
		PasswordEnabled bool `json:"password_enabled"`
	}
	decode(t, recorder, &resp)
	require.False(t, resp.OIDCEnabled)
	require.True(t, resp.PasswordEnabled)
}

func TestOpenIDLoginWithoutProviderIsGenerically503(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, request{method: http.MethodGet, path: "/openid/login"})
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	var resp struct {
		Error string `json:"error"`
	}
	decode(t, recorder, &resp)
	require.Equal(t, "authentication service unavailable", resp.Error)
}

func TestOpenIDLoginSetsSessionCookie(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, request{method: http.MethodGet, path: "/openid/login"})

	var sessionCookie *http.Cookie
	for _, c := range recorder.Result().Cookies() {
		if c.Name == "vitatrack_session" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	require.True(t, sessionCookie.HttpOnly)
	require.NotEmpty(t, sessionCookie.Value)
}

func TestPasswordLoginAndMe(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "user-1", "casey@example.com", "correct horse", users.RoleUser)

	token := f.login(t, "casey@example.com", "correct horse")

	recorder := f.do(t, request{method: http.MethodGet, path: "/openid/me", token: token})
	require.Equal(t, http.StatusOK, recorder.Code)

	var principal sessions.Principal
	decode(t, recorder, &principal)
	require.Equal(t, "user-1", principal.UserID)
	require.Equal(t, "casey@example.com", principal.Email)
}

func TestPasswordLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "user-1", "casey@example.com", "correct horse", users.RoleUser)

	recorder := f.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]string{
		"email":    "casey@example.com",
		"password": "wrong",
	}})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestMeRequiresAuthentication(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, request{method: http.MethodGet, path: "/openid/me"})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = f.do(t, request{method: http.MethodGet, path: "/openid/me", token: "not-a-token"})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestGrantLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "owner-1", "owner@example.com", "owner pass", users.RoleUser)
	f.addUser(t, "friend-1", "friend@example.com", "friend pass", users.RoleUser)
	ownerToken := f.login(t, "owner@example.com", "owner pass")
	friendToken := f.login(t, "friend@example.com", "friend pass")

	// Create a grant to a registered email: resolves immediately.
	recorder := f.do(t, request{method: http.MethodPost, path: "/access", token: ownerToken, body: map[string]interface{}{
		"email":       "friend@example.com",
		"permissions": map[string]bool{"reports": true},
	}})
	require.Equal(t, http.StatusCreated, recorder.Code)

	var created struct {
		ID            string `json:"id"`
		GranteeUserID string `json:"grantee_user_id"`
		Status        string `json:"status"`
	}
	decode(t, recorder, &created)
	require.Equal(t, "friend-1", created.GranteeUserID)
	require.Equal(t, "active", created.Status)

	// The owner sees it in their list.
	recorder = f.do(t, request{method: http.MethodGet, path: "/access", token: ownerToken})
	require.Equal(t, http.StatusOK, recorder.Code)
	var list []map[string]interface{}
	decode(t, recorder, &list)
	require.Len(t, list, 1)

	// The friend sees the owner among accessible users.
	recorder = f.do(t, request{method: http.MethodGet, path: "/access/accessible-users", token: friendToken})
	require.Equal(t, http.StatusOK, recorder.Code)
	var accessible []struct {
		UserID string `json:"user_id"`
	}
	decode(t, recorder, &accessible)
	require.Len(t, accessible, 1)
	require.Equal(t, "owner-1", accessible[0].UserID)

	// reports covers calorie through inheritance.
	recorder = f.do(t, request{method: http.MethodGet, path: "/access/check/owner-1?permission=calorie", token: friendToken})
	require.Equal(t, http.StatusOK, recorder.Code)

	// food_list is not implied by reports.
	recorder = f.do(t, request{method: http.MethodGet, path: "/access/check/owner-1?permission=food_list", token: friendToken})
	require.Equal(t, http.StatusForbidden, recorder.Code)

	// Only the owner can mutate the grant; others get a 404, not a 403.
	recorder = f.do(t, request{method: http.MethodPut, path: "/access/" + created.ID, token: friendToken, body: map[string]interface{}{
		"permissions": map[string]bool{"calorie": true},
	}})
	require.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = f.do(t, request{method: http.MethodPut, path: "/access/" + created.ID, token: ownerToken, body: map[string]interface{}{
		"permissions": map[string]bool{"calorie": true},
	}})
	require.Equal(t, http.StatusOK, recorder.Code)

	// reports was replaced; the checkin inheritance path is gone.
	recorder = f.do(t, request{method: http.MethodGet, path: "/access/check/owner-1?permission=checkin", token: friendToken})
	require.Equal(t, http.StatusForbidden, recorder.Code)

	// Revoke, and access disappears.
	recorder = f.do(t, request{method: http.MethodDelete, path: "/access/" + created.ID, token: ownerToken})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = f.do(t, request{method: http.MethodGet, path: "/access/check/owner-1?permission=calorie", token: friendToken})
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestAccessEndpointsRequireAuthentication(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/access"},
		{http.MethodPost, "/access"},
		{http.MethodGet, "/access/accessible-users"},
		{http.MethodPut, "/access/some-id"},
		{http.MethodDelete, "/access/some-id"},
	} {
		recorder := f.do(t, request{method: tc.method, path: tc.path})
		require.Equal(t, http.StatusUnauthorized, recorder.Code, "%s %s", tc.method, tc.path)
	}
}

func TestOIDCSettingsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "user-1", "casey@example.com", "correct horse", users.RoleUser)
	token := f.login(t, "casey@example.com", "correct horse")

	recorder := f.do(t, request{method: http.MethodGet, path: "/admin/oidc-settings", token: token})
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestOIDCSettingsMaskSecretAndRetainItOnResubmit(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin-1", "admin@example.com", "admin pass", users.RoleAdmin)
	token := f.login(t, "admin@example.com", "admin pass")

	save := map[string]interface{}{
		"issuer_url":            "https://idp.example.com",
		"client_id":             "web-app",
		"client_secret":         "plain-secret",
		"auto_register":         true,
		"enable_password_login": true,
		"is_active":             true,
	}
	recorder := f.do(t, request{method: http.MethodPost, path: "/admin/oidc-settings", token: token, body: save})
	require.Equal(t, http.StatusOK, recorder.Code)

	var view struct {
		ClientSecret string `json:"client_secret"`
	}
	decode(t, recorder, &view)
	require.Equal(t, "*****", view.ClientSecret)

	recorder = f.do(t, request{method: http.MethodGet, path: "/admin/oidc-settings", token: token})
	require.Equal(t, http.StatusOK, recorder.Code)
	decode(t, recorder, &view)
	require.Equal(t, "*****", view.ClientSecret)

	// Resubmitting the masked value keeps the stored secret.
	save["client_secret"] = "*****"
	save["client_id"] = "renamed-app"
	recorder = f.do(t, request{method: http.MethodPost, path: "/admin/oidc-settings", token: token, body: save})
	require.Equal(t, http.StatusOK, recorder.Code)

	cfg, err := f.registry.ActiveConfig(context.Background())
	require.NoError(t, err)
	require.Equal(t, "renamed-app", cfg.ClientID)
	require.Equal(t, "plain-secret", cfg.ClientSecret)
}

func TestOIDCSettingsSaveValidation(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin-1", "admin@example.com", "admin pass", users.RoleAdmin)
	adminToken := f.login(t, "admin@example.com", "admin pass")
	recorder := f.do(t, request{method: http.MethodPost, path: "/admin/oidc-settings", token: adminToken, body: map[string]interface{}{
		"is_active": true,
	}})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "user-1", "casey@example.com", "correct horse", users.RoleUser)

	// Log in via the session cookie path.
	recorder := f.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]string{
		"email":    "casey@example.com",
		"password": "correct horse",
	}})
	require.Equal(t, http.StatusOK, recorder.Code)

	var sessionCookie *http.Cookie
	for _, c := range recorder.Result().Cookies() {
		if c.Name == "vitatrack_session" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)

	recorder = f.do(t, request{method: http.MethodGet, path: "/openid/me", cookie: sessionCookie})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = f.do(t, request{method: http.MethodPost, path: "/auth/logout", cookie: sessionCookie})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = f.do(t, request{method: http.MethodGet, path: "/openid/me", cookie: sessionCookie})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}
