package goPasskey

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/MrEthical07/goPasskey/internal/audit"
	"github.com/MrEthical07/goPasskey/internal/rate"
	"github.com/MrEthical07/goPasskey/password"
	"github.com/MrEthical07/goPasskey/session"
)

const (
	loginThrottlePrefix  = "pl"
	loginIPBucketPrefix  = "plip"
	totpBucketPrefix     = "pltp"
	passkeyBucketPrefix  = "plpk"
	resetBucketPrefix    = "plrs"
	resetIPBucketPrefix  = "plri"
	decoyPasswordEntropy = 24
)

// Builder defines a public type used by goPasskey APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider    UserProvider
	passkeyProvider PasskeyProvider
	auditSink       AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider describes the withuserprovider operation and its observable behavior.
//
// WithUserProvider may return an error when input validation, dependency calls, or security checks fail.
// WithUserProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithPasskeyProvider describes the withpasskeyprovider operation and its observable behavior.
//
// WithPasskeyProvider may return an error when input validation, dependency calls, or security checks fail.
// WithPasskeyProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithPasskeyProvider(pp PasskeyProvider) *Builder {
	b.passkeyProvider = pp
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if b.passkeyProvider == nil {
		return nil, errors.New("passkey provider required")
	}

	// -------- SESSION STORE --------
	store := session.NewStore(
		b.redis,
		cfg.Session.RedisPrefix,
		cfg.Session.Lifetime,
		cfg.Session.RenewWithin,
	)

	engine := &Engine{
		config:       cloneConfig(cfg),
		sessionStore: store,
	}
	store.OnRenew = func(string) {
		engine.metricInc(MetricSessionRenewed)
	}

	engine.userProvider = b.userProvider
	engine.passkeyProvider = b.passkeyProvider

	// -------- RATE PRIMITIVES --------
	engine.loginThrottle = rate.NewThrottler(
		b.redis,
		loginThrottlePrefix,
		cfg.Login.Timeouts,
		cfg.Login.Grace,
		cfg.Login.Cutoff,
	)
	if cfg.Login.EnableIPThrottle {
		engine.ipLimiter = rate.NewFixedBucket(
			b.redis,
			loginIPBucketPrefix,
			cfg.Login.MaxAttemptsPerIP,
			cfg.Login.IPWindow,
		)
	}
	engine.totpLimiter = rate.NewFixedBucket(
		b.redis,
		totpBucketPrefix,
		cfg.TOTP.MaxAttempts,
		cfg.TOTP.AttemptWindow,
	)
	engine.passkeyLimiter = rate.NewBucket(
		b.redis,
		passkeyBucketPrefix,
		cfg.Passkey.MaxAttempts,
		cfg.Passkey.AttemptWindow/time.Duration(cfg.Passkey.MaxAttempts),
	)

	// -------- CHALLENGE AND RESET STORES --------
	engine.challengeStore = newChallengeStore(b.redis, cfg.Passkey.ChallengeTTL)
	if cfg.PasswordReset.Enabled {
		engine.resetStore = newPasswordResetStore(b.redis)
		engine.resetLimiter = rate.NewFixedBucket(
			b.redis,
			resetBucketPrefix,
			cfg.PasswordReset.RequestsPerHour,
			time.Hour,
		)
		engine.resetIPLimiter = rate.NewFixedBucket(
			b.redis,
			resetIPBucketPrefix,
			cfg.PasswordReset.RequestsPerHour,
			time.Hour,
		)
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.totp = newTOTPManager(cfg.TOTP)

	ph, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	decoy, err := newDecoyHash(ph)
	if err != nil {
		return nil, err
	}
	engine.decoyHash = decoy

	b.built = true

	return engine, nil
}

// newDecoyHash produces a real Argon2 hash of a throwaway password. Login
// verifies against it when the identifier resolves to no account, so miss
// and mismatch cost the same.
func newDecoyHash(ph *password.Hasher) (string, error) {
	raw := make([]byte, decoyPasswordEntropy)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return ph.Hash(base64.RawURLEncoding.EncodeToString(raw))
}
