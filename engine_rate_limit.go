package sessionguard

import (
	"context"
	"strconv"

	internalaudit "github.com/gloos/sessionguard/internal/audit"
)

// CheckRateLimit reports whether the identifier may attempt authentication
// right now. The check consumes no attempt: callers record the outcome
// separately once the attempt completes. Identifiers are scoped per tenant.
func (e *Engine) CheckRateLimit(ctx context.Context, identifier string) RateLimitResult {
	if e == nil || e.rateLimiter == nil {
		return RateLimitResult{Allowed: true}
	}

	decision := e.rateLimiter.Check(scopedKey(ctx, identifier))

	if decision.Allowed {
		e.metricInc(MetricRateLimitAllowed)
	} else {
		e.metricInc(MetricRateLimitDenied)
		if decision.NeedsCaptcha {
			e.metricInc(MetricCaptchaRequired)
		}
		e.LogEvent(ctx, AuditEntry{
			EventType: internalaudit.EventRateLimitTriggered,
			ActorID:   identifier,
			Result:    ResultDenied,
			Reason:    "rate limit exceeded",
			Metadata: map[string]string{
				"wait_ms":       strconv.FormatInt(decision.WaitTime.Milliseconds(), 10),
				"needs_captcha": strconv.FormatBool(decision.NeedsCaptcha),
			},
		})
	}

	return decision
}

// RecordFailedAttempt adds one failed attempt for the identifier. Crossing
// the lockout threshold emits an account_lockout audit event.
func (e *Engine) RecordFailedAttempt(ctx context.Context, identifier string) {
	if e == nil || e.rateLimiter == nil {
		return
	}

	key := scopedKey(ctx, identifier)
	e.rateLimiter.RecordFailure(key)

	attempts := e.rateLimiter.Attempts(key)

	entry := AuditEntry{
		EventType: internalaudit.EventLoginFailure,
		ActorID:   identifier,
		Result:    ResultFailure,
		Metadata:  map[string]string{"attempts": strconv.FormatFloat(attempts, 'f', -1, 64)},
	}

	if attempts >= float64(e.config.RateLimit.MaxAttempts) {
		e.metricInc(MetricLockout)
		entry.EventType = internalaudit.EventAccountLockout
		entry.Reason = "max attempts exceeded"
		entry.Metadata["lockout_duration"] = e.config.RateLimit.LockoutDuration.String()
	}

	e.LogEvent(ctx, entry)
}

// RecordSuccessfulAttempt clears the identifier's failure record entirely.
// Idempotent: repeated calls leave the same empty state. Suspicious markers,
// if any, survive until their own expiry.
func (e *Engine) RecordSuccessfulAttempt(ctx context.Context, identifier, userID string) {
	if e == nil || e.rateLimiter == nil {
		return
	}

	e.rateLimiter.RecordSuccess(scopedKey(ctx, identifier))

	e.LogEvent(ctx, AuditEntry{
		EventType:  internalaudit.EventLoginSuccess,
		ActorID:    identifier,
		AffectedID: userID,
		Result:     ResultSuccess,
	})
}

// ResetRateLimit clears both the failure record and any suspicious marker
// for the identifier. Administrative override, not part of the normal flow.
func (e *Engine) ResetRateLimit(ctx context.Context, identifier string) {
	if e == nil || e.rateLimiter == nil {
		return
	}
	e.rateLimiter.Reset(scopedKey(ctx, identifier))
}

// scopedKey prefixes identifiers with the tenant so one tenant's abuse never
// locks out another tenant's identical identifier.
func scopedKey(ctx context.Context, identifier string) string {
	return tenantIDFromContext(ctx) + ":" + identifier
}

// scopedIP is scopedKey for the caller's IP, except an absent IP stays empty.
// Prefixing the empty IP would collapse every no-IP caller into one shared
// per-tenant bucket and defeat the limiter's empty-IP scope skip.
func scopedIP(ctx context.Context) string {
	ip := clientIPFromContext(ctx)
	if ip == "" {
		return ""
	}
	return scopedKey(ctx, ip)
}
