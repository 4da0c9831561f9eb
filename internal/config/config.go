package config

import "time"

type Config interface {
	EnvConfig
	SecurityConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetFrontendURL() string
	GetDatabasePath() string
	GetEnv() string
}

type SecurityConfig interface {
	// GetEncryptionKey returns the process-wide symmetric key used by the
	// secret codec. Provided out-of-band via environment/secret manager.
	GetEncryptionKey() []byte
}

type SessionConfig interface {
	GetSessionSecret() []byte
	GetSessionExpiry() time.Duration
	GetSessionCookieName() string
}

type mainConfig struct {
	EnvVars
	Security
	Session
}

func New() (Config, error) {
	envVars, err := newEnvVars()
	if err != nil {
		return nil, err
	}
	security, err := newSecurity()
	if err != nil {
		return nil, err
	}
	session, err := newSession()
	if err != nil {
		return nil, err
	}
	return mainConfig{EnvVars: envVars, Security: security, Session: session}, nil
}
