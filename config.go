package goPasskey

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by goPasskey APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session       SessionConfig
	Login         LoginConfig
	TOTP          TOTPConfig
	Passkey       PasskeyConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goPasskey APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix string
	// Lifetime is the full session lifetime granted at issuance and at
	// every renewal.
	Lifetime time.Duration
	// RenewWithin is the trailing window inside which a validated read
	// extends the session back to a full Lifetime. Zero disables renewal.
	RenewWithin time.Duration
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig defines a public type used by goPasskey APIs.
//
// LoginConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginConfig struct {
	// Timeouts is the escalating lockout sequence applied to consecutive
	// failed logins past Grace. The last entry repeats once the sequence
	// is exhausted.
	Timeouts []time.Duration
	// Grace is the number of failures tolerated before the first lockout.
	Grace int
	// Cutoff is how long failure history survives after the last failure.
	Cutoff time.Duration

	EnableIPThrottle bool
	MaxAttemptsPerIP int
	IPWindow         time.Duration
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig defines a public type used by goPasskey APIs.
//
// TOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfig struct {
	Issuer                  string
	Digits                  int
	Period                  int
	Algorithm               string
	Skew                    int
	EnforceReplayProtection bool
	MaxAttempts             int
	AttemptWindow           time.Duration
}

/*
====================================
PASSKEY CONFIG
====================================
*/

// PasskeyConfig defines a public type used by goPasskey APIs.
//
// PasskeyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasskeyConfig struct {
	// RelyingPartyID is the WebAuthn RP ID, normally the site's registrable
	// domain. Authenticator data is bound to its hash.
	RelyingPartyID string
	// Origin is the exact web origin client data must carry.
	Origin string
	// RelyingPartyName is the human-readable name shown by authenticators.
	RelyingPartyName string
	ChallengeTTL     time.Duration
	MaxAttempts      int
	AttemptWindow    time.Duration
}

// PasswordConfig defines a public type used by goPasskey APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// PasswordResetConfig defines a public type used by goPasskey APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	Enabled                  bool
	ResetTTL                 time.Duration
	MaxAttempts              int
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
	RequestsPerHour          int
}

// AuditConfig defines a public type used by goPasskey APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goPasskey APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Callers adjust the
// deployment-specific fields (relying party, issuer, origin) and pass the
// result to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: "ps",
			Lifetime:    30 * 24 * time.Hour,
			RenewWithin: 15 * 24 * time.Hour,
		},
		Login: LoginConfig{
			Timeouts: []time.Duration{
				1 * time.Second,
				2 * time.Second,
				4 * time.Second,
				8 * time.Second,
				16 * time.Second,
				30 * time.Second,
				60 * time.Second,
				3 * time.Minute,
				5 * time.Minute,
				10 * time.Minute,
			},
			Grace:            2,
			Cutoff:           24 * time.Hour,
			EnableIPThrottle: false,
			MaxAttemptsPerIP: 100,
			IPWindow:         15 * time.Minute,
		},
		TOTP: TOTPConfig{
			Issuer:                  "",
			Digits:                  6,
			Period:                  30,
			Algorithm:               "SHA1",
			Skew:                    1,
			EnforceReplayProtection: true,
			MaxAttempts:             5,
			AttemptWindow:           30 * time.Minute,
		},
		Passkey: PasskeyConfig{
			ChallengeTTL:  5 * time.Minute,
			MaxAttempts:   10,
			AttemptWindow: 15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:                  false,
			ResetTTL:                 2 * time.Hour,
			MaxAttempts:              5,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
			RequestsPerHour:          3,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.Login.Timeouts) > 0 {
		out.Login.Timeouts = make([]time.Duration, len(cfg.Login.Timeouts))
		copy(out.Login.Timeouts, cfg.Login.Timeouts)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}
	if c.Session.RenewWithin < 0 {
		return errors.New("Session RenewWithin must be >= 0")
	}
	if c.Session.RenewWithin >= c.Session.Lifetime {
		return errors.New("Session RenewWithin must be < Lifetime")
	}

	// Login
	if len(c.Login.Timeouts) == 0 {
		return errors.New("Login Timeouts must not be empty")
	}
	for _, d := range c.Login.Timeouts {
		if d <= 0 {
			return errors.New("Login Timeouts entries must be > 0")
		}
	}
	if c.Login.Grace < 0 {
		return errors.New("Login Grace must be >= 0")
	}
	if c.Login.Cutoff <= 0 {
		return errors.New("Login Cutoff must be > 0")
	}
	if c.Login.EnableIPThrottle {
		if c.Login.MaxAttemptsPerIP <= 0 {
			return errors.New("Login MaxAttemptsPerIP must be > 0 when IP throttle is enabled")
		}
		if c.Login.IPWindow <= 0 {
			return errors.New("Login IPWindow must be > 0 when IP throttle is enabled")
		}
	}

	// TOTP
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period < 15 {
		return errors.New("TOTP Period must be >= 15 seconds")
	}
	if c.TOTP.Skew < 0 {
		return errors.New("TOTP Skew must be >= 0")
	}
	if c.TOTP.MaxAttempts <= 0 {
		return errors.New("TOTP MaxAttempts must be > 0")
	}
	if c.TOTP.AttemptWindow <= 0 {
		return errors.New("TOTP AttemptWindow must be > 0")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
		// valid (empty treated as SHA1)
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256, or SHA512")
	}

	// Passkey
	if c.Passkey.RelyingPartyID == "" {
		return errors.New("Passkey RelyingPartyID is required")
	}
	if c.Passkey.Origin == "" {
		return errors.New("Passkey Origin is required")
	}
	if !strings.HasPrefix(c.Passkey.Origin, "https://") && !strings.HasPrefix(c.Passkey.Origin, "http://localhost") {
		return errors.New("Passkey Origin must be https (http://localhost allowed for development)")
	}
	if c.Passkey.ChallengeTTL <= 0 {
		return errors.New("Passkey ChallengeTTL must be > 0")
	}
	if c.Passkey.MaxAttempts <= 0 {
		return errors.New("Passkey MaxAttempts must be > 0")
	}
	if c.Passkey.AttemptWindow <= 0 {
		return errors.New("Passkey AttemptWindow must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Password Reset
	if c.PasswordReset.Enabled {
		if c.PasswordReset.ResetTTL <= 0 {
			return errors.New("PasswordReset ResetTTL must be > 0")
		}
		if c.PasswordReset.MaxAttempts <= 0 {
			return errors.New("PasswordReset MaxAttempts must be > 0")
		}
		if c.PasswordReset.EnableIdentifierThrottle && c.PasswordReset.RequestsPerHour <= 0 {
			return errors.New("PasswordReset RequestsPerHour must be > 0 when identifier throttle is enabled")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
