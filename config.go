package sessionguard

import (
	"errors"
	"time"
)

// Config defines a public type used by sessionguard APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session       SessionConfig
	RateLimit     RateLimitConfig
	PasswordReset PasswordResetConfig
	Validator     ValidatorConfig
	Reauth        ReauthConfig
	Audit         AuditConfig
	Complexity    ComplexityConfig
	Metrics       MetricsConfig
	Sweep         SweepConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by sessionguard APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix string
	SessionTTL  time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig defines a public type used by sessionguard APIs.
//
// Parameterizes the per-identifier login limiter: lockout after MaxAttempts,
// exponential progressive delay between attempts, CAPTCHA escalation at
// CaptchaThreshold.
type RateLimitConfig struct {
	MaxAttempts     int
	CooldownWindow  time.Duration
	LockoutDuration time.Duration

	BaseDelay       time.Duration
	DelayMultiplier float64
	MaxDelay        time.Duration

	CaptchaThreshold int

	SuspiciousThreshold int
	SuspiciousCooldown  time.Duration
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig defines a public type used by sessionguard APIs.
//
// Each scope (email, IP, global) runs the same limiter algorithm with its own
// window and ceiling. The suspicious marker denies independently of the
// per-scope counters once tripped.
type PasswordResetConfig struct {
	MaxRequestsPerEmail int
	EmailWindow         time.Duration

	MaxRequestsPerIP int
	IPWindow         time.Duration

	MaxGlobalRequests int
	GlobalWindow      time.Duration

	CaptchaThreshold int

	SuspiciousRequestThreshold int
	SuspiciousActivityCooldown time.Duration

	BaseDelay       time.Duration
	DelayMultiplier float64
	MaxDelay        time.Duration
}

/*
====================================
VALIDATOR CONFIG
====================================
*/

// ValidatorConfig defines a public type used by sessionguard APIs.
//
// ValidatorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ValidatorConfig struct {
	MaxConcurrentSessions int
	ReauthInterval        time.Duration

	// TerminateOverflow makes ValidateSession enforce the
	// TERMINATE_OLDEST_SESSIONS action itself instead of only reporting it.
	TerminateOverflow bool
}

/*
====================================
REAUTH CONFIG
====================================
*/

// ReauthConfig defines a public type used by sessionguard APIs.
//
// ReauthConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ReauthConfig struct {
	Enabled       bool
	ProofTTL      time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by sessionguard APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	RedisPrefix string
	Retention   time.Duration

	// QueryLimit caps QueryLogs result pages when the filter leaves Limit
	// unset.
	QueryLimit int
}

/*
====================================
COMPLEXITY CONFIG
====================================
*/

// ComplexityConfig defines a public type used by sessionguard APIs.
//
// ComplexityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ComplexityConfig struct {
	CacheTTL         time.Duration
	TrackerRetention time.Duration
	MaxScoreHistory  int
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by sessionguard APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SWEEP CONFIG
====================================
*/

// SweepConfig defines a public type used by sessionguard APIs.
//
// One periodic task purges expired rate records, suspicious markers, idle
// complexity trackers, and archives audit entries past retention.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: "sg",
			SessionTTL:  24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts:         5,
			CooldownWindow:      15 * time.Minute,
			LockoutDuration:     15 * time.Minute,
			BaseDelay:           time.Second,
			DelayMultiplier:     2.0,
			MaxDelay:            5 * time.Minute,
			CaptchaThreshold:    3,
			SuspiciousThreshold: 0,
		},
		PasswordReset: PasswordResetConfig{
			MaxRequestsPerEmail:        3,
			EmailWindow:                time.Hour,
			MaxRequestsPerIP:           10,
			IPWindow:                   time.Hour,
			MaxGlobalRequests:          100,
			GlobalWindow:               15 * time.Minute,
			CaptchaThreshold:           3,
			SuspiciousRequestThreshold: 5,
			SuspiciousActivityCooldown: 2 * time.Hour,
			BaseDelay:                  time.Second,
			DelayMultiplier:            2.0,
			MaxDelay:                   5 * time.Minute,
		},
		Validator: ValidatorConfig{
			MaxConcurrentSessions: 5,
			ReauthInterval:        30 * time.Minute,
			TerminateOverflow:     false,
		},
		Reauth: ReauthConfig{
			Enabled:       false,
			ProofTTL:      5 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "sessionguard",
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  1024,
			DropIfFull:  true,
			RedisPrefix: "sga",
			Retention:   90 * 24 * time.Hour,
			QueryLimit:  100,
		},
		Complexity: ComplexityConfig{
			CacheTTL:         5 * time.Minute,
			TrackerRetention: 24 * time.Hour,
			MaxScoreHistory:  100,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Interval: 10 * time.Minute,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg

	if len(cfg.Reauth.PrivateKey) > 0 {
		out.Reauth.PrivateKey = append([]byte(nil), cfg.Reauth.PrivateKey...)
	}
	if len(cfg.Reauth.PublicKey) > 0 {
		out.Reauth.PublicKey = append([]byte(nil), cfg.Reauth.PublicKey...)
	}

	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if c.Session.SessionTTL <= 0 {
		return errors.New("Session.SessionTTL must be positive")
	}

	if c.RateLimit.MaxAttempts <= 0 {
		return errors.New("RateLimit.MaxAttempts must be positive")
	}
	if c.RateLimit.CooldownWindow <= 0 {
		return errors.New("RateLimit.CooldownWindow must be positive")
	}
	if c.RateLimit.LockoutDuration <= 0 {
		return errors.New("RateLimit.LockoutDuration must be positive")
	}
	if c.RateLimit.DelayMultiplier < 1 {
		return errors.New("RateLimit.DelayMultiplier must be >= 1")
	}
	if c.RateLimit.MaxDelay > 0 && c.RateLimit.BaseDelay > c.RateLimit.MaxDelay {
		return errors.New("RateLimit.BaseDelay must not exceed RateLimit.MaxDelay")
	}
	if c.RateLimit.CaptchaThreshold < 0 {
		return errors.New("RateLimit.CaptchaThreshold must not be negative")
	}
	if c.RateLimit.SuspiciousThreshold > 0 && c.RateLimit.SuspiciousCooldown <= 0 {
		return errors.New("RateLimit.SuspiciousCooldown required when SuspiciousThreshold is set")
	}

	if c.PasswordReset.MaxRequestsPerEmail <= 0 {
		return errors.New("PasswordReset.MaxRequestsPerEmail must be positive")
	}
	if c.PasswordReset.MaxRequestsPerIP <= 0 {
		return errors.New("PasswordReset.MaxRequestsPerIP must be positive")
	}
	if c.PasswordReset.MaxGlobalRequests <= 0 {
		return errors.New("PasswordReset.MaxGlobalRequests must be positive")
	}
	if c.PasswordReset.EmailWindow <= 0 || c.PasswordReset.IPWindow <= 0 || c.PasswordReset.GlobalWindow <= 0 {
		return errors.New("PasswordReset windows must be positive")
	}
	if c.PasswordReset.DelayMultiplier < 1 {
		return errors.New("PasswordReset.DelayMultiplier must be >= 1")
	}
	if c.PasswordReset.SuspiciousRequestThreshold > 0 && c.PasswordReset.SuspiciousActivityCooldown <= 0 {
		return errors.New("PasswordReset.SuspiciousActivityCooldown required when SuspiciousRequestThreshold is set")
	}

	if c.Validator.MaxConcurrentSessions < 0 {
		return errors.New("Validator.MaxConcurrentSessions must not be negative")
	}
	if c.Validator.ReauthInterval < 0 {
		return errors.New("Validator.ReauthInterval must not be negative")
	}

	if c.Reauth.Enabled {
		if c.Reauth.ProofTTL <= 0 {
			return errors.New("Reauth.ProofTTL must be positive when reauth proofs are enabled")
		}
		switch c.Reauth.SigningMethod {
		case "ed25519", "hs256":
		default:
			return errors.New("Reauth.SigningMethod must be ed25519 or hs256")
		}
	}

	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit.BufferSize must be positive when audit is enabled")
		}
		if c.Audit.Retention <= 0 {
			return errors.New("Audit.Retention must be positive when audit is enabled")
		}
		if c.Audit.QueryLimit <= 0 {
			return errors.New("Audit.QueryLimit must be positive when audit is enabled")
		}
	}

	if c.Sweep.Enabled && c.Sweep.Interval <= 0 {
		return errors.New("Sweep.Interval must be positive when the sweeper is enabled")
	}

	return nil
}
