package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"github.com/vitatrack/auth-server/internal/errors"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// State is the session factory lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateDiscovering   State = "discovering"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// discoveryMetadata is the subset of the provider's discovery document this
// factory reads. Token validation is pinned to these advertised values, not
// to the configured issuer string.
type discoveryMetadata struct {
	Issuer           string `json:"issuer"`
	JWKSURI          string `json:"jwks_uri"`
	UserinfoEndpoint string `json:"userinfo_endpoint"`
}

// SessionFactory performs provider discovery and holds the live bound
// client. It is process-wide shared state: concurrent EnsureReady calls
// during an in-flight discovery collapse into a single round trip, and
// readers never observe a half-constructed client.
type SessionFactory struct {
	registry    *Registry
	frontendURL string

	mu         sync.RWMutex
	state      State
	client     *Client
	failReason string

	group singleflight.Group
}

func NewSessionFactory(registry *Registry, frontendURL string) (*SessionFactory, error) {
	if registry == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewSessionFactory] registry is required")
	}
	return &SessionFactory{
		registry:    registry,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
		state:       StateUninitialized,
	}, nil
}

// State returns the current lifecycle state.
func (f *SessionFactory) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Client returns the bound client, or nil when the factory is not ready.
// Callers are expected to call EnsureReady first.
func (f *SessionFactory) Client() *Client {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.client
}

// Invalidate drops the bound client so the next EnsureReady rediscovers.
// Called on configuration updates; never polled.
func (f *SessionFactory) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateUninitialized
	f.client = nil
	f.failReason = ""
	log.Info().Msg("identity provider client invalidated, will rediscover on next use")
}

// EnsureReady builds the bound client if it is not already live. A failed
// attempt leaves the factory retryable on the next call.
func (f *SessionFactory) EnsureReady(ctx context.Context) error {
	f.mu.RLock()
	ready := f.state == StateReady
	f.mu.RUnlock()
	if ready {
		return nil
	}

	_, err, _ := f.group.Do("discover", func() (interface{}, error) {
		f.mu.RLock()
		ready := f.state == StateReady
		f.mu.RUnlock()
		if ready {
			return nil, nil
		}
		return nil, f.discover(ctx)
	})
	return err
}

func (f *SessionFactory) discover(ctx context.Context) error {
	f.setState(StateDiscovering, "")

	cfg, err := f.registry.ActiveConfig(ctx)
	if err != nil {
		f.setState(StateFailed, "configuration load failed")
		return errors.Wrapf(err, "[SessionFactory] load active config")
	}
	if cfg == nil || !cfg.IsActive {
		f.setState(StateFailed, "inactive")
		return fmt.Errorf("[SessionFactory] provider configuration missing or inactive: %w", errors.ErrProviderInactive)
	}

	// All outbound provider calls are bounded by the configured timeout.
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	oidcCtx := oidc.ClientContext(ctx, httpClient)

	oidcProvider, err := oidc.NewProvider(oidcCtx, cfg.IssuerURL)
	if err != nil {
		f.setState(StateFailed, "discovery failed")
		return errors.Wrapf(err, "[SessionFactory] provider discovery for %q", cfg.IssuerURL)
	}

	var meta discoveryMetadata
	if err := oidcProvider.Claims(&meta); err != nil {
		f.setState(StateFailed, "discovery metadata unreadable")
		return errors.Wrapf(err, "[SessionFactory] parse discovery metadata")
	}
	if meta.JWKSURI == "" {
		f.setState(StateFailed, "no key set advertised")
		return fmt.Errorf("[SessionFactory] discovery document advertises no jwks_uri: %w", errors.ErrServiceUnavailable)
	}

	// Pin token validation to the issuer and key set the provider itself
	// advertises, not the configured issuer string. The key set is fetched
	// explicitly from the advertised endpoint.
	keySet := oidc.NewRemoteKeySet(oidcCtx, meta.JWKSURI)
	verifierCfg := &oidc.Config{ClientID: cfg.ClientID}
	if cfg.IDTokenSigningAlg != "" {
		verifierCfg.SupportedSigningAlgs = []string{cfg.IDTokenSigningAlg}
	}
	verifier := oidc.NewVerifier(meta.Issuer, keySet, verifierCfg)

	scopes := strings.Fields(cfg.Scope)
	if !containsScope(scopes, oidc.ScopeOpenID) {
		scopes = append([]string{oidc.ScopeOpenID}, scopes...)
	}

	client := &Client{
		provider: oidcProvider,
		verifier: verifier,
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oidcProvider.Endpoint(),
			RedirectURL:  f.redirectURL(cfg),
			Scopes:       scopes,
		},
		userinfoEndpoint:    meta.UserinfoEndpoint,
		httpClient:          httpClient,
		autoRegister:        cfg.AutoRegister,
		enablePasswordLogin: cfg.EnablePasswordLogin,
	}

	f.mu.Lock()
	f.state = StateReady
	f.client = client
	f.failReason = ""
	f.mu.Unlock()

	log.Info().Str("issuer", meta.Issuer).Str("client_id", cfg.ClientID).
		Msg("identity provider client bound")
	return nil
}

// redirectURL prefers the first configured redirect URI and falls back to
// the frontend callback route.
func (f *SessionFactory) redirectURL(cfg *Config) string {
	if len(cfg.RedirectURIs) > 0 && cfg.RedirectURIs[0] != "" {
		return cfg.RedirectURIs[0]
	}
	return f.frontendURL + "/oidc-callback"
}

func (f *SessionFactory) setState(state State, reason string) {
	f.mu.Lock()
	f.state = state
	f.failReason = reason
	if state != StateReady {
		f.client = nil
	}
	f.mu.Unlock()
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
