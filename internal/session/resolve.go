package session

import (
	"os"

	"github.com/matheus3301/souk/internal/config"
)

const DefaultSessionName = "main"

// EnvSession names the session when no flag is given.
const EnvSession = "SOUK_SESSION"

// Resolve picks the active session: the --session flag, then $SOUK_SESSION,
// then default_session from config.toml, then "main".
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := os.Getenv(EnvSession); env != "" {
		return env
	}
	if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}

// Config loads the effective configuration (file, .env, environment, defaults).
func Config() (*config.Config, error) {
	return config.LoadEffective(ConfigPath(), EnvPath())
}
