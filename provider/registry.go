package provider

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vitatrack/auth-server/internal/errors"
	"github.com/vitatrack/auth-server/secrets"
)

const defaultRequestTimeout = 10 * time.Second

// Registry loads and saves the active identity-provider configuration and
// brokers all access to the secret codec.
type Registry struct {
	repo    Repo
	codec   *secrets.Codec
	nowTime func() time.Time
}

// RegistryOption modifies a Registry.
type RegistryOption func(*Registry)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.nowTime = nowFunc
	}
}

func NewRegistry(repo Repo, codec *secrets.Codec, options ...RegistryOption) (*Registry, error) {
	if repo == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewRegistry] repo is required")
	}
	if codec == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewRegistry] codec is required")
	}
	r := &Registry{repo: repo, codec: codec, nowTime: time.Now}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// ActiveConfig returns the most recently created configuration with its
// secret transparently decrypted, or nil if none exists. A secret that
// fails to decrypt is logged and treated as absent: the admin re-enters it
// rather than the login flow crashing.
func (r *Registry) ActiveConfig(ctx context.Context) (*Config, error) {
	rec, err := r.repo.Latest(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "[Registry.ActiveConfig] repo.Latest")
	}
	if rec == nil {
		return nil, nil
	}

	clientSecret := ""
	if !rec.Secret.IsZero() {
		clientSecret, err = r.codec.Decrypt(rec.Secret)
		if err != nil {
			log.Error().Err(err).Str("config_id", rec.ID).
				Msg("failed to decrypt identity provider client secret, treating as absent")
			clientSecret = ""
		}
	}

	return configFromRecord(rec, clientSecret), nil
}

// SaveInput carries an admin configuration update. ClientSecret is
// plaintext here and nowhere else outside the codec boundary.
type SaveInput struct {
	IssuerURL               string
	ClientID                string
	ClientSecret            string
	RedirectURIs            []string
	Scope                   string
	TokenEndpointAuthMethod string
	ResponseTypes           []string
	IDTokenSigningAlg       string
	UserinfoSigningAlg      string
	RequestTimeout          time.Duration
	AutoRegister            bool
	EnablePasswordLogin     bool
	IsActive                bool
}

// Save writes a fresh configuration record. When the caller submits no
// secret, or the masking placeholder, the previously stored sealed secret
// is carried forward unchanged; the ciphertext/nonce/tag triple is always
// written as a unit.
func (r *Registry) Save(ctx context.Context, input SaveInput) (*Config, error) {
	prior, err := r.repo.Latest(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "[Registry.Save] repo.Latest")
	}

	var sealed secrets.SealedSecret
	switch {
	case input.ClientSecret != "" && input.ClientSecret != SecretPlaceholder:
		log.Info().Msg("identity provider client secret is being updated")
		sealed, err = r.codec.Encrypt(input.ClientSecret)
		if err != nil {
			return nil, errors.Wrapf(err, "[Registry.Save] encrypt client secret")
		}
	case prior != nil:
		sealed = prior.Secret
	}

	rec := &Record{
		ID:                      uuid.New().String(),
		IssuerURL:               input.IssuerURL,
		ClientID:                input.ClientID,
		Secret:                  sealed,
		RedirectURIs:            input.RedirectURIs,
		Scope:                   input.Scope,
		TokenEndpointAuthMethod: input.TokenEndpointAuthMethod,
		ResponseTypes:           input.ResponseTypes,
		IDTokenSigningAlg:       input.IDTokenSigningAlg,
		UserinfoSigningAlg:      input.UserinfoSigningAlg,
		RequestTimeout:          input.RequestTimeout,
		AutoRegister:            input.AutoRegister,
		EnablePasswordLogin:     input.EnablePasswordLogin,
		IsActive:                input.IsActive,
		CreatedAt:               r.nowTime(),
	}
	if rec.RequestTimeout <= 0 {
		rec.RequestTimeout = defaultRequestTimeout
	}

	if err := r.repo.Insert(ctx, rec); err != nil {
		return nil, errors.Wrapf(err, "[Registry.Save] repo.Insert")
	}

	return r.ActiveConfig(ctx)
}

func configFromRecord(rec *Record, clientSecret string) *Config {
	cfg := &Config{
		ID:                      rec.ID,
		IssuerURL:               rec.IssuerURL,
		ClientID:                rec.ClientID,
		ClientSecret:            clientSecret,
		RedirectURIs:            append([]string(nil), rec.RedirectURIs...),
		Scope:                   rec.Scope,
		TokenEndpointAuthMethod: rec.TokenEndpointAuthMethod,
		ResponseTypes:           append([]string(nil), rec.ResponseTypes...),
		IDTokenSigningAlg:       rec.IDTokenSigningAlg,
		UserinfoSigningAlg:      rec.UserinfoSigningAlg,
		RequestTimeout:          rec.RequestTimeout,
		AutoRegister:            rec.AutoRegister,
		EnablePasswordLogin:     rec.EnablePasswordLogin,
		IsActive:                rec.IsActive,
		CreatedAt:               rec.CreatedAt,
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return cfg
}
