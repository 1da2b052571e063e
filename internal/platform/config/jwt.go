package config

import (
	"fmt"
	"time"
)

// JWTConfig configures HS256 token issuance and verification.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`

	// TTL is the lifetime of issued access tokens.
	TTL       time.Duration `yaml:"ttl"`
	ClockSkew time.Duration `yaml:"clockSkew"`
}

// MinJWTSecretLength is the shortest HS256 secret accepted in jwt auth mode.
const MinJWTSecretLength = 32

func defaultJWTConfig() JWTConfig {
	return JWTConfig{
		Issuer:    "parent-match-api",
		Audience:  "parent-match-clients",
		TTL:       24 * time.Hour,
		ClockSkew: 30 * time.Second,
	}
}

func (c *JWTConfig) applyEnv(getenv func(string) string) error {
	if v := getenv("JWT_SECRET"); v != "" {
		c.Secret = v
	}
	if v := getenv("JWT_ISSUER"); v != "" {
		c.Issuer = v
	}
	if v := getenv("JWT_AUDIENCE"); v != "" {
		c.Audience = v
	}
	if v := getenv("JWT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JWT_TTL must be a duration (e.g. 24h): %w", err)
		}
		c.TTL = d
	}
	if v := getenv("JWT_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JWT_CLOCK_SKEW must be a duration (e.g. 30s): %w", err)
		}
		c.ClockSkew = d
	}
	return nil
}

// Validate checks the settings needed to sign and verify tokens.
func (c JWTConfig) Validate() error {
	if len(c.Secret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	if c.Issuer == "" || c.Audience == "" {
		return fmt.Errorf("JWT_ISSUER and JWT_AUDIENCE must be non-empty")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	return nil
}
