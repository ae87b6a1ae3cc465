package sessionguard

import (
	"context"
	"strconv"

	internalaudit "github.com/gloos/sessionguard/internal/audit"
)

// CheckResetRequest evaluates the layered reset policy for one email. The
// caller's IP arrives via WithClientIP; the email, IP, and global scopes
// short-circuit in that order, then the suspicious marker denies
// independently of any counter state. Pure read: no scope is mutated.
func (e *Engine) CheckResetRequest(ctx context.Context, email string) ResetCheckResult {
	if e == nil || e.resetLimiter == nil {
		return ResetCheckResult{Allowed: true}
	}

	result := e.resetLimiter.CheckRequest(scopedKey(ctx, email), scopedIP(ctx))

	if ua := userAgentFromContext(ctx); ua != "" {
		if result.Metadata == nil {
			result.Metadata = map[string]string{}
		}
		result.Metadata["user_agent"] = ua
	}

	if result.Allowed {
		e.metricInc(MetricResetAllowed)
		return result
	}

	e.metricInc(MetricResetDenied)

	entry := AuditEntry{
		EventType: internalaudit.EventRateLimitTriggered,
		ActorID:   email,
		Result:    ResultDenied,
		Reason:    result.Reason,
		Metadata: map[string]string{
			"wait_ms":       strconv.FormatInt(result.WaitTime.Milliseconds(), 10),
			"needs_captcha": strconv.FormatBool(result.NeedsCaptcha),
		},
	}
	if result.Reason == ReasonSuspiciousActivity {
		e.metricInc(MetricSuspiciousDenied)
		entry.EventType = internalaudit.EventSuspiciousActivity
	}
	e.LogEvent(ctx, entry)

	return result
}

// RecordResetRequest counts one dispatched reset email against every scope.
// Call only after the reset email was actually sent.
func (e *Engine) RecordResetRequest(ctx context.Context, email string) {
	if e == nil || e.resetLimiter == nil {
		return
	}

	e.resetLimiter.RecordRequest(scopedKey(ctx, email), scopedIP(ctx))

	e.LogEvent(ctx, AuditEntry{
		EventType: internalaudit.EventPasswordResetRequest,
		ActorID:   email,
		Result:    ResultSuccess,
	})
}

// RecordFailedReset counts a reset attempt against an email that does not
// exist. The half-weight penalty is deliberate: invalid-email probing costs
// less than confirmed valid-email abuse, but still accumulates.
func (e *Engine) RecordFailedReset(ctx context.Context, email, reason string) {
	if e == nil || e.resetLimiter == nil {
		return
	}

	e.resetLimiter.RecordFailure(scopedKey(ctx, email), scopedIP(ctx))

	e.LogEvent(ctx, AuditEntry{
		EventType: internalaudit.EventPasswordResetFailure,
		ActorID:   email,
		Result:    ResultFailure,
		Reason:    reason,
	})
}
