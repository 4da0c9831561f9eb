package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvVars holds the general process environment. Parsed once at startup.
type EnvVars struct {
	Port        string `env:"PORT" envDefault:"8080"`
	AppName     string `env:"APP_NAME" envDefault:"VitaTrack Auth"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	DBPath      string `env:"DATABASE_PATH" envDefault:"./data/auth.db"`
	Env         string `env:"ENV" envDefault:"DEV"`
}

var _ EnvConfig = EnvVars{}

func newEnvVars() (EnvVars, error) {
	var e EnvVars
	if err := env.Parse(&e); err != nil {
		return EnvVars{}, fmt.Errorf("[config newEnvVars] env.Parse: %w", err)
	}
	return e, nil
}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

// GetBaseURL returns the base URL for the auth server (e.g., "https://auth.example.com").
// Used for redirect URIs and session token issuance.
func (e EnvVars) GetBaseURL() string {
	return e.BaseURL
}

// GetFrontendURL returns the browser-facing application URL. The OIDC
// redirect URI points at the frontend's callback route, which posts the
// code/state pair back to this server.
func (e EnvVars) GetFrontendURL() string {
	return e.FrontendURL
}

func (e EnvVars) GetDatabasePath() string {
	return e.DBPath
}

func (e EnvVars) GetEnv() string {
	return e.Env
}
