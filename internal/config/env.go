package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

// Secrets are opaque credentials read from the environment. They are never
// written to config.yml.
type Secrets struct {
	HypixelAPIKey string `env:"HYPIXEL_API_KEY"`
	AccessToken   string `env:"JAGPROX_ACCESS_TOKEN"`
	ProfileUUID   string `env:"JAGPROX_PROFILE_UUID"`
	ProfileName   string `env:"JAGPROX_PROFILE_NAME"`
}

// LoadSecrets parses Secrets from the process environment.
func LoadSecrets() (Secrets, error) {
	var s Secrets
	if err := env.Parse(&s); err != nil {
		return Secrets{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if s.ProfileUUID != "" {
		if _, err := uuid.Parse(s.ProfileUUID); err != nil {
			return Secrets{}, fmt.Errorf("JAGPROX_PROFILE_UUID: %w", err)
		}
	}
	return s, nil
}

// OnlineMode reports whether upstream logins authenticate with the
// session server.
func (s Secrets) OnlineMode() bool {
	return s.AccessToken != "" && s.ProfileUUID != ""
}
