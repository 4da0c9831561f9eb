package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Security carries the process-wide symmetric key for the secret codec.
// The key is hex-encoded in the environment and must decode to 32 bytes
// (AES-256).
type Security struct {
	EncryptionKeyHex string `env:"ENCRYPTION_KEY,required"`

	key []byte
}

var _ SecurityConfig = Security{}

func newSecurity() (Security, error) {
	var s Security
	if err := env.Parse(&s); err != nil {
		return Security{}, fmt.Errorf("[config newSecurity] env.Parse: %w", err)
	}
	key, err := hex.DecodeString(s.EncryptionKeyHex)
	if err != nil {
		return Security{}, fmt.Errorf("[config newSecurity] ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return Security{}, fmt.Errorf("[config newSecurity] ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	s.key = key
	return s, nil
}

func (s Security) GetEncryptionKey() []byte {
	return s.key
}

// Session configures browser session cookies and signed session tokens.
type Session struct {
	Secret     string        `env:"SESSION_SECRET,required"`
	Expiry     time.Duration `env:"SESSION_EXPIRY" envDefault:"24h"`
	CookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"vitatrack_session"`
}

var _ SessionConfig = Session{}

func newSession() (Session, error) {
	var s Session
	if err := env.Parse(&s); err != nil {
		return Session{}, fmt.Errorf("[config newSession] env.Parse: %w", err)
	}
	return s, nil
}

func (s Session) GetSessionSecret() []byte {
	return []byte(s.Secret)
}

func (s Session) GetSessionExpiry() time.Duration {
	return s.Expiry
}

func (s Session) GetSessionCookieName() string {
	return s.CookieName
}
