package sessionguard

import (
	"errors"
	"io"
	"os"

	internalaudit "github.com/gloos/sessionguard/internal/audit"
	"github.com/gloos/sessionguard/internal/complexity"
	"github.com/gloos/sessionguard/internal/fingerprint"
	"github.com/gloos/sessionguard/internal/limiters"
	"github.com/gloos/sessionguard/internal/rate"
	"github.com/gloos/sessionguard/internal/reauth"
	"github.com/gloos/sessionguard/internal/stores"
	"github.com/gloos/sessionguard/session"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by sessionguard APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	auditRepo      AuditRepository
	auditSink      AuditSink
	fallbackWriter io.Writer
	notifier       DeviceNotifier
	alert          AlertFunc

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithAuditRepository injects the persisted audit boundary. When omitted,
// the bundled Redis-backed repository is used.
func (b *Builder) WithAuditRepository(repo AuditRepository) *Builder {
	b.auditRepo = repo
	return b
}

// WithAuditFallback sets the writer that receives JSON-encoded audit entries
// when the repository write fails. Defaults to stderr.
func (b *Builder) WithAuditFallback(w io.Writer) *Builder {
	b.fallbackWriter = w
	return b
}

// WithAuditSink attaches an additional sink that receives every finalized
// audit entry alongside the repository, for example a [ChannelSink] feeding
// an external SIEM pipeline. Emit runs on the dispatcher goroutine and must
// not block indefinitely.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithDeviceNotifier describes the withdevicenotifier operation and its observable behavior.
//
// WithDeviceNotifier does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithDeviceNotifier(fn DeviceNotifier) *Builder {
	b.notifier = fn
	return b
}

// WithAlertFunc describes the withalertfunc operation and its observable behavior.
//
// WithAlertFunc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAlertFunc(fn AlertFunc) *Builder {
	b.alert = fn
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
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

	engine := &Engine{
		config: cfg,
	}

	engine.sessionStore = session.NewStore(b.redis, cfg.Session.RedisPrefix)
	engine.rateLimiter = rate.New(rate.Config{
		MaxAttempts:         cfg.RateLimit.MaxAttempts,
		CooldownWindow:      cfg.RateLimit.CooldownWindow,
		LockoutDuration:     cfg.RateLimit.LockoutDuration,
		BaseDelay:           cfg.RateLimit.BaseDelay,
		DelayMultiplier:     cfg.RateLimit.DelayMultiplier,
		MaxDelay:            cfg.RateLimit.MaxDelay,
		CaptchaThreshold:    cfg.RateLimit.CaptchaThreshold,
		SuspiciousThreshold: cfg.RateLimit.SuspiciousThreshold,
		SuspiciousCooldown:  cfg.RateLimit.SuspiciousCooldown,
	})
	engine.resetLimiter = limiters.NewPasswordResetLimiter(resetScopes(cfg.PasswordReset))
	engine.devices = fingerprint.NewRegistry(b.notifier)
	engine.analyzer = complexity.New(complexity.Config{
		MaxConcurrentSessions: cfg.Validator.MaxConcurrentSessions,
		CacheTTL:              cfg.Complexity.CacheTTL,
		TrackerRetention:      cfg.Complexity.TrackerRetention,
		MaxScores:             cfg.Complexity.MaxScoreHistory,
	})
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.alert = b.alert

	if cfg.Reauth.Enabled {
		manager, err := reauth.NewManager(reauth.Config{
			ProofTTL:      cfg.Reauth.ProofTTL,
			SigningMethod: reauth.SigningMethod(cfg.Reauth.SigningMethod),
			PrivateKey:    cfg.Reauth.PrivateKey,
			PublicKey:     cfg.Reauth.PublicKey,
			Issuer:        cfg.Reauth.Issuer,
		})
		if err != nil {
			return nil, err
		}
		engine.reauth = manager
	}

	engine.auditRepo = b.auditRepo
	if engine.auditRepo == nil {
		engine.auditRepo = stores.NewAuditStore(b.redis, cfg.Audit.RedisPrefix, cfg.Audit.Retention)
	}

	fallback := b.fallbackWriter
	if fallback == nil {
		fallback = os.Stderr
	}
	engine.repoSink = newRepoSink(engine.auditRepo, fallback, engine.metrics)
	var sink internalaudit.Sink = engine.repoSink
	if b.auditSink != nil {
		sink = teeSink{primary: engine.repoSink, extra: b.auditSink}
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	if cfg.Sweep.Enabled {
		engine.startSweeper()
	}

	b.built = true
	return engine, nil
}

// resetScopes expands the flat reset config into per-scope limiter tuning.
// Each scope waits out its own window on denial; only the email and IP
// scopes carry CAPTCHA and suspicious-marker policy.
func resetScopes(cfg PasswordResetConfig) limiters.PasswordResetConfig {
	return limiters.PasswordResetConfig{
		Email: rate.Config{
			MaxAttempts:         cfg.MaxRequestsPerEmail,
			CooldownWindow:      cfg.EmailWindow,
			LockoutDuration:     cfg.EmailWindow,
			BaseDelay:           cfg.BaseDelay,
			DelayMultiplier:     cfg.DelayMultiplier,
			MaxDelay:            cfg.MaxDelay,
			CaptchaThreshold:    cfg.CaptchaThreshold,
			SuspiciousThreshold: cfg.SuspiciousRequestThreshold,
			SuspiciousCooldown:  cfg.SuspiciousActivityCooldown,
		},
		IP: rate.Config{
			MaxAttempts:         cfg.MaxRequestsPerIP,
			CooldownWindow:      cfg.IPWindow,
			LockoutDuration:     cfg.IPWindow,
			BaseDelay:           cfg.BaseDelay,
			DelayMultiplier:     cfg.DelayMultiplier,
			MaxDelay:            cfg.MaxDelay,
			CaptchaThreshold:    cfg.CaptchaThreshold,
			SuspiciousThreshold: cfg.SuspiciousRequestThreshold,
			SuspiciousCooldown:  cfg.SuspiciousActivityCooldown,
		},
		Global: rate.Config{
			MaxAttempts:     cfg.MaxGlobalRequests,
			CooldownWindow:  cfg.GlobalWindow,
			LockoutDuration: cfg.GlobalWindow,
			BaseDelay:       cfg.BaseDelay,
			DelayMultiplier: cfg.DelayMultiplier,
			MaxDelay:        cfg.MaxDelay,
		},
	}
}
