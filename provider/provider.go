// Package provider manages the single active identity-provider
// configuration and the live OIDC client bound to it.
package provider

import (
	"context"
	"time"

	"github.com/vitatrack/auth-server/secrets"
)

// SecretPlaceholder is what the admin UI shows instead of a stored client
// secret. Submitting it back means "keep the existing secret".
const SecretPlaceholder = "*****"

// Record is the stored form of an identity-provider configuration. The
// client secret only exists here in sealed form; Registry decrypts it on
// the way out.
type Record struct {
	ID                      string
	IssuerURL               string
	ClientID                string
	Secret                  secrets.SealedSecret
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
	CreatedAt               time.Time
}

// Config is the decrypted view handed to the session factory. ClientSecret
// is empty when no secret is stored or the stored one failed to decrypt.
type Config struct {
	ID                      string
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
	CreatedAt               time.Time
}

// Repo persists identity-provider configuration records. At most one
// record is authoritative at a time: the most recently created one.
type Repo interface {
	// Latest returns the most recently created record, or nil if none exists.
	Latest(ctx context.Context) (*Record, error)
	// Insert writes a fresh record. Existing records are never updated in
	// place, so secret history stays auditable.
	Insert(ctx context.Context, rec *Record) error
}
