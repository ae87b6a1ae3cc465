package internaldefs

import (
	sessionguard "github.com/gloos/sessionguard"
)

// CounterDef defines a public type used by sessionguard APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by sessionguard APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the security engine.
var CounterDefs = []CounterDef{
	{ID: sessionguard.MetricRateLimitAllowed, Name: "sessionguard_rate_limit_allowed_total", Help: "Rate-limit checks that allowed the attempt."},
	{ID: sessionguard.MetricRateLimitDenied, Name: "sessionguard_rate_limit_denied_total", Help: "Rate-limit checks that denied the attempt."},
	{ID: sessionguard.MetricLockout, Name: "sessionguard_lockout_total", Help: "Identifiers locked out after exceeding max attempts."},
	{ID: sessionguard.MetricCaptchaRequired, Name: "sessionguard_captcha_required_total", Help: "Denials carrying the CAPTCHA escalation signal."},
	{ID: sessionguard.MetricResetAllowed, Name: "sessionguard_reset_allowed_total", Help: "Password reset checks that passed every scope."},
	{ID: sessionguard.MetricResetDenied, Name: "sessionguard_reset_denied_total", Help: "Password reset checks denied by any scope."},
	{ID: sessionguard.MetricSuspiciousDenied, Name: "sessionguard_suspicious_denied_total", Help: "Denials caused by an active suspicious marker."},
	{ID: sessionguard.MetricDeviceNew, Name: "sessionguard_device_new_total", Help: "New devices detected for known identifiers."},
	{ID: sessionguard.MetricDeviceKnown, Name: "sessionguard_device_known_total", Help: "Device checks matching an already registered device."},
	{ID: sessionguard.MetricSessionValid, Name: "sessionguard_session_valid_total", Help: "Session validations with no violations."},
	{ID: sessionguard.MetricSessionInvalid, Name: "sessionguard_session_invalid_total", Help: "Session validations with at least one violation."},
	{ID: sessionguard.MetricSessionTerminated, Name: "sessionguard_session_terminated_total", Help: "Sessions terminated by concurrent-session enforcement."},
	{ID: sessionguard.MetricReauthIssued, Name: "sessionguard_reauth_issued_total", Help: "Issued re-authentication proofs."},
	{ID: sessionguard.MetricReauthConfirmed, Name: "sessionguard_reauth_confirmed_total", Help: "Confirmed re-authentication proofs."},
	{ID: sessionguard.MetricAuditEmitted, Name: "sessionguard_audit_emitted_total", Help: "Audit entries submitted to the dispatcher."},
	{ID: sessionguard.MetricAuditFallback, Name: "sessionguard_audit_fallback_total", Help: "Audit entries written to the local fallback sink."},
	{ID: sessionguard.MetricAuditReviewed, Name: "sessionguard_audit_reviewed_total", Help: "Audit entries closed out by review."},
	{ID: sessionguard.MetricAuditAlert, Name: "sessionguard_audit_alert_total", Help: "HIGH and CRITICAL entries forwarded to the alert callback."},
	{ID: sessionguard.MetricComplexityAnalyzed, Name: "sessionguard_complexity_analyzed_total", Help: "Complexity analyses served, cached or rebuilt."},
}

// HistogramDefs is an exported constant or variable used by the security engine.
var HistogramDefs = []HistogramDef{
	{ID: sessionguard.MetricValidateLatency, Name: "sessionguard_validate_latency_seconds", Help: "ValidateSession latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the security engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the security engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
