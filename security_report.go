package sessionguard

import "time"

// SecurityReport defines a public type used by sessionguard APIs.
//
// SecurityReport instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityReport struct {
	RateLimitingActive    bool
	MaxLoginAttempts      int
	LockoutDuration       time.Duration
	ProgressiveDelays     bool
	CaptchaEscalation     bool
	ResetLimitingActive   bool
	SuspiciousMarkers     bool
	SessionCapsActive     bool
	MaxConcurrentSessions int
	ReauthInterval        time.Duration
	ReauthProofsEnabled   bool
	ReauthSigningMethod   string
	AuditEnabled          bool
	AuditRetention        time.Duration
	SweeperActive         bool
	MetricsEnabled        bool
}

// SecurityReport describes the securityreport operation and its observable behavior.
//
// SecurityReport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	rateLimiting := e.config.RateLimit.MaxAttempts > 0 &&
		e.config.RateLimit.CooldownWindow > 0

	resetLimiting := e.config.PasswordReset.MaxRequestsPerEmail > 0 &&
		e.config.PasswordReset.MaxRequestsPerIP > 0 &&
		e.config.PasswordReset.MaxGlobalRequests > 0

	return SecurityReport{
		RateLimitingActive:    rateLimiting,
		MaxLoginAttempts:      e.config.RateLimit.MaxAttempts,
		LockoutDuration:       e.config.RateLimit.LockoutDuration,
		ProgressiveDelays:     e.config.RateLimit.BaseDelay > 0,
		CaptchaEscalation:     e.config.RateLimit.CaptchaThreshold > 0,
		ResetLimitingActive:   resetLimiting,
		SuspiciousMarkers:     e.config.PasswordReset.SuspiciousRequestThreshold > 0,
		SessionCapsActive:     e.config.Validator.MaxConcurrentSessions > 0,
		MaxConcurrentSessions: e.config.Validator.MaxConcurrentSessions,
		ReauthInterval:        e.config.Validator.ReauthInterval,
		ReauthProofsEnabled:   e.config.Reauth.Enabled,
		ReauthSigningMethod:   e.config.Reauth.SigningMethod,
		AuditEnabled:          e.config.Audit.Enabled,
		AuditRetention:        e.config.Audit.Retention,
		SweeperActive:         e.config.Sweep.Enabled,
		MetricsEnabled:        e.config.Metrics.Enabled,
	}
}
