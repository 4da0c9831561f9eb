// Package loginflow orchestrates the three-step browser-redirect login
// protocol: initiate, callback, and session materialization.
package loginflow

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vitatrack/auth-server/internal/errors"
	"github.com/vitatrack/auth-server/provider"
	"github.com/vitatrack/auth-server/sessions"
	"github.com/vitatrack/auth-server/users"
)

const flowSecretLength = 32

// Controller drives federated and password login into browser sessions.
type Controller struct {
	factory     *provider.SessionFactory
	registry    *provider.Registry
	sessions    sessions.Repo
	provisioner *users.Provisioner
	users       users.Repo
	nowTime     func() time.Time
}

// ControllerOption modifies a Controller.
type ControllerOption func(*Controller)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

func NewController(
	factory *provider.SessionFactory,
	registry *provider.Registry,
	sessionRepo sessions.Repo,
	provisioner *users.Provisioner,
	userRepo users.Repo,
	options ...ControllerOption,
) (*Controller, error) {
	if factory == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewController] factory is required")
	}
	if registry == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewController] registry is required")
	}
	if sessionRepo == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewController] session repo is required")
	}
	if provisioner == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewController] provisioner is required")
	}
	if userRepo == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewController] user repo is required")
	}

	c := &Controller{
		factory:     factory,
		registry:    registry,
		sessions:    sessionRepo,
		provisioner: provisioner,
		users:       userRepo,
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Initiate begins a login flow for the browser session and returns the
// provider authorization URL. The flow secrets are persisted before the
// URL is exposed, so a client that follows the redirect immediately still
// finds its state. A second Initiate on the same session overwrites the
// prior flow's secrets: last initiate wins.
func (c *Controller) Initiate(ctx context.Context, sess *sessions.Session) (string, error) {
	if err := c.factory.EnsureReady(ctx); err != nil {
		log.Warn().Err(err).Msg("login initiate with provider not ready")
	}
	client := c.factory.Client()
	if client == nil {
		return "", errors.Wrapf(errors.ErrServiceUnavailable, "[Controller.Initiate] no provider client")
	}

	codeVerifier := generateRandomString(flowSecretLength)
	state := generateRandomString(flowSecretLength)
	nonce := generateRandomString(flowSecretLength)

	sess.Flow = &sessions.FlowState{
		CodeVerifier:  codeVerifier,
		ExpectedState: state,
		ExpectedNonce: nonce,
		CreatedAt:     c.nowTime(),
	}
	if err := c.sessions.Upsert(sess.ID, sess); err != nil {
		return "", errors.Wrapf(err, "[Controller.Initiate] persist flow state")
	}

	return client.AuthCodeURL(state, nonce, generateCodeChallenge(codeVerifier)), nil
}

// Callback completes the flow: it validates the returned state against the
// session, exchanges the code with the stored PKCE verifier, verifies the
// ID token (nonce included), and merges userinfo claims over the ID-token
// claims. The stored flow secrets are cleared whatever the outcome, so a
// second callback attempt always fails.
func (c *Controller) Callback(ctx context.Context, sess *sessions.Session, code, state string) (*ClaimsBundle, error) {
	flow := sess.Flow
	defer func() {
		sess.Flow = nil
		if err := c.sessions.Upsert(sess.ID, sess); err != nil {
			log.Error().Err(err).Msg("failed to clear flow state after callback")
		}
	}()

	client := c.factory.Client()
	if client == nil {
		return nil, errors.Wrapf(errors.ErrServiceUnavailable, "[Controller.Callback] no provider client")
	}
	if code == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Controller.Callback] authorization code is missing")
	}
	if flow == nil {
		log.Warn().Msg("login callback with no flow in flight")
		return nil, errors.Wrapf(errors.ErrProtocol, "[Controller.Callback] flow validation failed")
	}
	if state != flow.ExpectedState {
		// Do not reveal which check failed; probing callers get one answer.
		log.Warn().Msg("login callback state mismatch")
		return nil, errors.Wrapf(errors.ErrProtocol, "[Controller.Callback] flow validation failed")
	}

	token, err := client.Exchange(ctx, code, flow.CodeVerifier)
	if err != nil {
		return nil, errors.Wrapf(err, "[Controller.Callback] code exchange")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.Wrapf(errors.ErrProtocol, "[Controller.Callback] no id_token in token response")
	}

	idToken, err := client.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrapf(err, "[Controller.Callback] id token verification")
	}

	claims := map[string]interface{}{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrapf(err, "[Controller.Callback] decode id token claims")
	}
	if nonce, _ := claims["nonce"].(string); nonce != flow.ExpectedNonce {
		log.Warn().Msg("login callback nonce mismatch")
		return nil, errors.Wrapf(errors.ErrProtocol, "[Controller.Callback] flow validation failed")
	}

	// Userinfo is more current than the ID token for profile fields, so
	// its claims win the merge. A userinfo failure is not fatal; the
	// ID-token claims stand alone.
	if client.HasUserinfo() {
		userinfoClaims, err := client.Userinfo(ctx, token)
		if err != nil {
			log.Error().Err(err).Msg("userinfo fetch failed, continuing with id token claims")
		} else {
			for k, v := range userinfoClaims {
				claims[k] = v
			}
		}
	}

	return bundleFromRaw(claims), nil
}

// MaterializeSession maps a completed flow's claims to a session principal.
// A local account is provisioned only when the provider enables
// auto-registration and the claims carry both an email-like identity and a
// stable subject; otherwise, and on provisioning failure, the raw claims
// are carried without a local account id - a degraded but non-fatal
// outcome.
func (c *Controller) MaterializeSession(ctx context.Context, sess *sessions.Session, claims *ClaimsBundle) (*sessions.Principal, error) {
	principal := &sessions.Principal{
		Email:  claims.LoginEmail(),
		Name:   claims.DisplayName(),
		Claims: claims.Raw,
	}

	client := c.factory.Client()
	autoRegister := client != nil && client.AutoRegister()

	if autoRegister && claims.LoginEmail() != "" && claims.Subject != "" {
		account, err := c.provisioner.Resolve(ctx, claims.LoginEmail(), claims.DisplayName(), claims.Subject)
		if err != nil {
			log.Error().Err(err).Msg("account provisioning failed, storing raw claims in session")
		} else {
			principal.UserID = account.ID
			principal.Role = string(account.Role)
		}
	} else {
		log.Warn().Bool("auto_register", autoRegister).
			Msg("skipping account resolution, storing raw claims in session")
	}

	sess.User = principal
	if err := c.sessions.Upsert(sess.ID, sess); err != nil {
		return nil, errors.Wrapf(err, "[Controller.MaterializeSession] persist session")
	}
	return principal, nil
}

// PasswordLogin authenticates the email/password path when the provider
// configuration allows it.
func (c *Controller) PasswordLogin(ctx context.Context, sess *sessions.Session, email, password string) (*sessions.Principal, error) {
	settings, err := c.LoginSettings(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "[Controller.PasswordLogin] load login settings")
	}
	if !settings.PasswordEnabled {
		return nil, errors.Wrapf(errors.ErrPasswordLoginOff, "[Controller.PasswordLogin]")
	}

	account, err := c.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, errors.Wrapf(err, "[Controller.PasswordLogin] GetByEmail")
	}
	if account == nil || !account.CanPasswordLogin() || !users.CheckPasswordHash(password, account.PasswordHash) {
		return nil, errors.Wrapf(errors.ErrInvalidCredentials, "[Controller.PasswordLogin]")
	}

	principal := &sessions.Principal{
		UserID: account.ID,
		Email:  account.Email,
		Name:   account.DisplayName,
		Role:   string(account.Role),
	}
	sess.User = principal
	if err := c.sessions.Upsert(sess.ID, sess); err != nil {
		return nil, errors.Wrapf(err, "[Controller.PasswordLogin] persist session")
	}
	return principal, nil
}

// LoginSettings reports which login modes the active configuration
// enables. With no configuration at all, password login stays available
// as the safe fallback.
type LoginSettings struct {
	OIDCEnabled     bool `json:"oidc_enabled"`
	PasswordEnabled bool `json:"password_enabled"`
}

func (c *Controller) LoginSettings(ctx context.Context) (LoginSettings, error) {
	cfg, err := c.registry.ActiveConfig(ctx)
	if err != nil {
		return LoginSettings{}, errors.Wrapf(err, "[Controller.LoginSettings] ActiveConfig")
	}
	if cfg == nil {
		return LoginSettings{OIDCEnabled: false, PasswordEnabled: true}, nil
	}
	return LoginSettings{
		OIDCEnabled:     cfg.IsActive,
		PasswordEnabled: cfg.EnablePasswordLogin,
	}, nil
}
