package goIdentity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/code"
	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/refresh"
)

// Config is the complete engine configuration. Start from DefaultConfig and
// overlay a file or the environment with LoadConfigFile and LoadConfigFromEnv.
type Config struct {
	JWT           JWTConfig           `yaml:"jwt" envPrefix:"JWT_"`
	Refresh       refresh.Config      `yaml:"refresh" envPrefix:"REFRESH_"`
	Password      PasswordConfig      `yaml:"password" envPrefix:"PASSWORD_"`
	Verification  VerificationConfig  `yaml:"verification" envPrefix:"VERIFICATION_"`
	PasswordReset PasswordResetConfig `yaml:"password_reset" envPrefix:"PASSWORD_RESET_"`
	Linking       LinkingConfig       `yaml:"linking" envPrefix:"LINKING_"`
	Session       SessionConfig       `yaml:"session" envPrefix:"SESSION_"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Store         StoreConfig         `yaml:"store" envPrefix:"STORE_"`
	Audit         AuditConfig         `yaml:"audit" envPrefix:"AUDIT_"`
	Metrics       MetricsConfig       `yaml:"metrics" envPrefix:"METRICS_"`
}

// JWTConfig controls access-token signing.
//
// Key material never comes from YAML or environment values directly: set
// PrivateKey/PublicKey in code, or point PrivateKeyFile/PublicKeyFile at PEM
// files, or give an HS256 Secret.
type JWTConfig struct {
	AccessTTL     time.Duration `yaml:"access_ttl" env:"ACCESS_TTL"`
	SigningMethod string        `yaml:"signing_method" env:"SIGNING_METHOD"`
	Issuer        string        `yaml:"issuer" env:"ISSUER"`
	Audience      string        `yaml:"audience" env:"AUDIENCE"`
	Leeway        time.Duration `yaml:"leeway" env:"LEEWAY"`
	KeyID         string        `yaml:"key_id" env:"KEY_ID"`

	PrivateKeyFile string `yaml:"private_key_file" env:"PRIVATE_KEY_FILE"`
	PublicKeyFile  string `yaml:"public_key_file" env:"PUBLIC_KEY_FILE"`
	Secret         string `yaml:"-" env:"SECRET"`

	PrivateKey []byte            `yaml:"-" env:"-"`
	PublicKey  []byte            `yaml:"-" env:"-"`
	VerifyKeys map[string][]byte `yaml:"-" env:"-"`
}

// PasswordConfig selects the hasher and the policy for new passwords.
type PasswordConfig struct {
	Algorithm      string          `yaml:"algorithm" env:"ALGORITHM"`
	Argon2         password.Config `yaml:"argon2" envPrefix:"ARGON2_"`
	BcryptCost     int             `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
	MinLength      int             `yaml:"min_length" env:"MIN_LENGTH"`
	MaxLength      int             `yaml:"max_length" env:"MAX_LENGTH"`
	UpgradeOnLogin bool            `yaml:"upgrade_on_login" env:"UPGRADE_ON_LOGIN"`
}

// VerificationConfig controls email and phone verification codes.
type VerificationConfig struct {
	CodeLength  int           `yaml:"code_length" env:"CODE_LENGTH"`
	CodeTTL     time.Duration `yaml:"code_ttl" env:"CODE_TTL"`
	MaxAttempts int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	// RequireVerifiedLogin rejects email and phone logins whose identifier
	// has not been verified.
	RequireVerifiedLogin bool `yaml:"require_verified_login" env:"REQUIRE_VERIFIED_LOGIN"`
	SendOnRegister       bool `yaml:"send_on_register" env:"SEND_ON_REGISTER"`
}

// PasswordResetConfig controls password reset codes.
type PasswordResetConfig struct {
	CodeLength  int           `yaml:"code_length" env:"CODE_LENGTH"`
	CodeTTL     time.Duration `yaml:"code_ttl" env:"CODE_TTL"`
	MaxAttempts int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
}

// LinkingConfig controls federated account linking.
type LinkingConfig struct {
	StateTTL     time.Duration     `yaml:"state_ttl" env:"STATE_TTL"`
	AllowedKinds []credential.Kind `yaml:"allowed_kinds" env:"ALLOWED_KINDS" envSeparator:","`
}

// SessionConfig controls session lineage policy.
type SessionConfig struct {
	// RevokeOnLogin revokes every refresh token of the user before a login
	// issues a new one.
	RevokeOnLogin bool `yaml:"revoke_on_login" env:"REVOKE_ON_LOGIN"`
}

// RateLimitConfig controls the Redis throttles. They are only active when
// the builder is given a Redis client.
type RateLimitConfig struct {
	Enabled          bool          `yaml:"enabled" env:"ENABLED"`
	Prefix           string        `yaml:"prefix" env:"PREFIX"`
	MaxLoginFailures int           `yaml:"max_login_failures" env:"MAX_LOGIN_FAILURES"`
	LoginWindow      time.Duration `yaml:"login_window" env:"LOGIN_WINDOW"`
	MaxCodeRequests  int           `yaml:"max_code_requests" env:"MAX_CODE_REQUESTS"`
	CodeWindow       time.Duration `yaml:"code_window" env:"CODE_WINDOW"`
}

// StoreConfig controls the bundled Redis stores, used when the builder has
// a Redis client but no explicit store.
type StoreConfig struct {
	RedisPrefix string `yaml:"redis_prefix" env:"REDIS_PREFIX"`
	// RedisRetention keeps expired or revoked records around so replays are
	// still recognised as reuse rather than as unknown tokens.
	RedisRetention time.Duration `yaml:"redis_retention" env:"REDIS_RETENTION"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"ENABLED"`
	BufferSize int  `yaml:"buffer_size" env:"BUFFER_SIZE"`
	DropIfFull bool `yaml:"drop_if_full" env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" env:"ENABLED"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms" env:"ENABLE_LATENCY_HISTOGRAMS"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
// Signing keys are empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
		},
		Refresh: refresh.DefaultConfig(),
		Password: PasswordConfig{
			Algorithm:      "argon2id",
			Argon2:         password.DefaultConfig(),
			BcryptCost:     12,
			MinLength:      8,
			MaxLength:      256,
			UpgradeOnLogin: true,
		},
		Verification: VerificationConfig{
			CodeLength:           6,
			CodeTTL:              15 * time.Minute,
			MaxAttempts:          5,
			RequireVerifiedLogin: true,
			SendOnRegister:       true,
		},
		PasswordReset: PasswordResetConfig{
			CodeLength:  8,
			CodeTTL:     15 * time.Minute,
			MaxAttempts: 5,
		},
		Linking: LinkingConfig{
			StateTTL:     10 * time.Minute,
			AllowedKinds: []credential.Kind{credential.KindEmail, credential.KindPhone},
		},
		Session: SessionConfig{
			RevokeOnLogin: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			Prefix:           "gi",
			MaxLoginFailures: 5,
			LoginWindow:      15 * time.Minute,
			MaxCodeRequests:  5,
			CodeWindow:       15 * time.Minute,
		},
		Store: StoreConfig{
			RedisPrefix:    "gi",
			RedisRetention: 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate reports the first configuration problem it finds.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey or VerifyKeys")
		}
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a secret of at least 32 bytes")
		}
	default:
		return fmt.Errorf("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.TokenBytes < refresh.MinTokenBytes {
		return fmt.Errorf("Refresh TokenBytes must be >= %d", refresh.MinTokenBytes)
	}
	if c.Refresh.MaxChainLength <= 0 {
		return errors.New("Refresh MaxChainLength must be > 0")
	}

	// Password
	switch c.Password.Algorithm {
	case "argon2id", "bcrypt":
	default:
		return fmt.Errorf("unsupported password algorithm %q", c.Password.Algorithm)
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Codes
	if err := validateCode("Verification", c.Verification.CodeLength, c.Verification.CodeTTL, c.Verification.MaxAttempts); err != nil {
		return err
	}
	if err := validateCode("PasswordReset", c.PasswordReset.CodeLength, c.PasswordReset.CodeTTL, c.PasswordReset.MaxAttempts); err != nil {
		return err
	}

	// Linking
	if c.Linking.StateTTL <= 0 {
		return errors.New("Linking StateTTL must be > 0")
	}
	for _, k := range c.Linking.AllowedKinds {
		if !k.Verifiable() {
			return fmt.Errorf("Linking AllowedKinds cannot contain %s", k)
		}
	}

	// Rate limits
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginFailures <= 0 || c.RateLimit.LoginWindow <= 0 {
			return errors.New("RateLimit login budget and window must be > 0")
		}
		if c.RateLimit.MaxCodeRequests <= 0 || c.RateLimit.CodeWindow <= 0 {
			return errors.New("RateLimit code budget and window must be > 0")
		}
	}

	// Store
	if c.Store.RedisRetention < 0 {
		return errors.New("Store RedisRetention must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func validateCode(section string, length int, ttl time.Duration, maxAttempts int) error {
	if length < code.MinLength || length > code.MaxLength {
		return fmt.Errorf("%s CodeLength must be between %d and %d", section, code.MinLength, code.MaxLength)
	}
	if ttl <= 0 {
		return fmt.Errorf("%s CodeTTL must be > 0", section)
	}
	if maxAttempts <= 0 {
		return fmt.Errorf("%s MaxAttempts must be > 0", section)
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	out.Linking.AllowedKinds = append([]credential.Kind(nil), cfg.Linking.AllowedKinds...)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
