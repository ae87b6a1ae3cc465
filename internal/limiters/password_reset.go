package limiters

import (
	"strconv"
	"time"

	"github.com/gloos/sessionguard/internal/rate"
)

// Denial reasons carried to callers. These are stable strings: the UI layer
// branches on them.
const (
	ReasonEmailRateLimit     = "email_rate_limit"
	ReasonIPRateLimit        = "ip_rate_limit"
	ReasonGlobalRateLimit    = "global_rate_limit"
	ReasonSuspiciousActivity = "suspicious_activity"
)

// globalKey is the single identifier of the global scope.
const globalKey = "global"

// PasswordResetConfig parameterizes each scope independently.
type PasswordResetConfig struct {
	Email  rate.Config
	IP     rate.Config
	Global rate.Config
}

// CheckResult is the structured outcome of CheckRequest. Denials are values,
// never errors: Reason names the scope that denied and WaitTime the mandatory
// wait.
type CheckResult struct {
	Allowed      bool
	Reason       string
	WaitTime     time.Duration
	NeedsCaptcha bool
	Metadata     map[string]string
}

// PasswordResetLimiter enforces the layered reset policy: email, IP, and
// global scopes short-circuit in that order, then suspicious markers deny
// independently of any counter state.
type PasswordResetLimiter struct {
	email  *rate.Store
	ip     *rate.Store
	global *rate.Store
}

func NewPasswordResetLimiter(cfg PasswordResetConfig) *PasswordResetLimiter {
	return NewPasswordResetLimiterWithClock(cfg, time.Now)
}

func NewPasswordResetLimiterWithClock(cfg PasswordResetConfig, now func() time.Time) *PasswordResetLimiter {
	return &PasswordResetLimiter{
		email:  rate.NewWithClock(cfg.Email, now),
		ip:     rate.NewWithClock(cfg.IP, now),
		global: rate.NewWithClock(cfg.Global, now),
	}
}

// CheckRequest evaluates a reset request without consuming attempts. Callers
// record separately after dispatching the reset email.
func (l *PasswordResetLimiter) CheckRequest(email, ip string) CheckResult {
	meta := map[string]string{
		"email_attempts":  formatAttempts(l.email.Attempts(email)),
		"ip_attempts":     formatAttempts(l.ip.Attempts(ip)),
		"global_attempts": formatAttempts(l.global.Attempts(globalKey)),
	}

	emailDecision := l.email.Check(email)
	if !emailDecision.Allowed {
		return denied(ReasonEmailRateLimit, emailDecision.WaitTime, meta)
	}

	ipDecision := rate.Decision{Allowed: true}
	if ip != "" {
		ipDecision = l.ip.Check(ip)
		if !ipDecision.Allowed {
			return denied(ReasonIPRateLimit, ipDecision.WaitTime, meta)
		}
	}

	if d := l.global.Check(globalKey); !d.Allowed {
		return denied(ReasonGlobalRateLimit, d.WaitTime, meta)
	}

	if suspicious, wait := l.suspiciousWait(email, ip); suspicious {
		return denied(ReasonSuspiciousActivity, wait, meta)
	}

	return CheckResult{
		Allowed:      true,
		NeedsCaptcha: emailDecision.NeedsCaptcha || ipDecision.NeedsCaptcha,
		Metadata:     meta,
	}
}

// RecordRequest counts a dispatched reset email against every scope.
func (l *PasswordResetLimiter) RecordRequest(email, ip string) {
	l.record(email, ip, 1)
}

// RecordFailure counts a reset request for a nonexistent email at half
// weight. The asymmetry is deliberate: invalid-email probing is penalized
// more slowly than confirmed valid-email abuse, and the fraction must not be
// rounded to integer semantics.
func (l *PasswordResetLimiter) RecordFailure(email, ip string) {
	l.record(email, ip, 0.5)
}

// Suspicious reports whether any scope currently carries a live marker for
// the pair.
func (l *PasswordResetLimiter) Suspicious(email, ip string) bool {
	suspicious, _ := l.suspiciousWait(email, ip)
	return suspicious
}

// Sweep purges expired records and markers across all scopes.
func (l *PasswordResetLimiter) Sweep(now time.Time) int {
	return l.email.Sweep(now) + l.ip.Sweep(now) + l.global.Sweep(now)
}

func (l *PasswordResetLimiter) record(email, ip string, weight float64) {
	l.email.RecordFailureWeight(email, weight)
	if ip != "" {
		l.ip.RecordFailureWeight(ip, weight)
	}
	l.global.RecordFailureWeight(globalKey, weight)
}

func (l *PasswordResetLimiter) suspiciousWait(email, ip string) (bool, time.Duration) {
	if ok, wait := l.email.Suspicious(email); ok {
		return true, wait
	}
	if ip != "" {
		if ok, wait := l.ip.Suspicious(ip); ok {
			return true, wait
		}
	}
	if ok, wait := l.global.Suspicious(globalKey); ok {
		return true, wait
	}
	return false, 0
}

func denied(reason string, wait time.Duration, meta map[string]string) CheckResult {
	meta["denied_scope"] = reason
	return CheckResult{
		Reason:   reason,
		WaitTime: wait,
		Metadata: meta,
	}
}

func formatAttempts(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
