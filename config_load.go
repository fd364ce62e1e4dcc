package goIdentity

import (
	"bytes"
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// LoadConfigFile reads a YAML file and overlays it on DefaultConfig. Keys
// missing from the file keep their defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.NewDecoder(bytes.NewReader(b)).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigFromEnv overlays environment variables on DefaultConfig. Every
// variable name is prefixed with prefix, e.g. prefix "IDENTITY_" reads
// IDENTITY_JWT_ACCESS_TTL and IDENTITY_SESSION_REVOKE_ON_LOGIN.
func LoadConfigFromEnv(prefix string) (Config, error) {
	cfg := DefaultConfig()
	if err := OverlayEnv(&cfg, prefix); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// OverlayEnv applies environment variables on top of cfg, so a file config
// can still be overridden per deployment.
func OverlayEnv(cfg *Config, prefix string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// resolveKeys loads key material referenced by file paths or the HS256
// secret. Keys already set in code win.
func (c *JWTConfig) resolveKeys() error {
	if len(c.PrivateKey) == 0 && c.Secret != "" {
		c.PrivateKey = []byte(c.Secret)
	}
	if len(c.PrivateKey) == 0 && c.PrivateKeyFile != "" {
		b, err := os.ReadFile(c.PrivateKeyFile)
		if err != nil {
			return fmt.Errorf("read JWT private key: %w", err)
		}
		c.PrivateKey = b
	}
	if len(c.PublicKey) == 0 && c.PublicKeyFile != "" {
		b, err := os.ReadFile(c.PublicKeyFile)
		if err != nil {
			return fmt.Errorf("read JWT public key: %w", err)
		}
		c.PublicKey = b
	}
	return nil
}
