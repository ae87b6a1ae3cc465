package sessionguard

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/gloos/sessionguard/internal/audit"
	"github.com/gloos/sessionguard/internal/complexity"
	"github.com/gloos/sessionguard/internal/fingerprint"
	"github.com/gloos/sessionguard/internal/limiters"
	"github.com/gloos/sessionguard/internal/rate"
	"github.com/gloos/sessionguard/session"
)

// RiskLevel defines a public type used by sessionguard APIs.
//
// RiskLevel values form an explicit ordinal scale; compare with MaxRisk, not
// string comparison.
type RiskLevel = internalaudit.RiskLevel

const (
	// RiskLow is an exported constant or variable used by the security engine.
	RiskLow = internalaudit.RiskLow
	// RiskMedium is an exported constant or variable used by the security engine.
	RiskMedium = internalaudit.RiskMedium
	// RiskHigh is an exported constant or variable used by the security engine.
	RiskHigh = internalaudit.RiskHigh
	// RiskCritical is an exported constant or variable used by the security engine.
	RiskCritical = internalaudit.RiskCritical
)

// MaxRisk returns the higher of two risk levels on the ordinal scale.
func MaxRisk(a, b RiskLevel) RiskLevel {
	return internalaudit.MaxRisk(a, b)
}

// ViolationKind defines a public type used by sessionguard APIs.
//
// ViolationKind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ViolationKind string

const (
	// ViolationNoActiveSession is an exported constant or variable used by the security engine.
	ViolationNoActiveSession ViolationKind = "NO_ACTIVE_SESSION"
	// ViolationInvalidUser is an exported constant or variable used by the security engine.
	ViolationInvalidUser ViolationKind = "INVALID_USER"
	// ViolationSessionExpired is an exported constant or variable used by the security engine.
	ViolationSessionExpired ViolationKind = "SESSION_EXPIRED"
	// ViolationConcurrentSessionLimit is an exported constant or variable used by the security engine.
	ViolationConcurrentSessionLimit ViolationKind = "CONCURRENT_SESSION_LIMIT"
	// ViolationDeviceFingerprintChange is an exported constant or variable used by the security engine.
	ViolationDeviceFingerprintChange ViolationKind = "DEVICE_FINGERPRINT_CHANGE"
	// ViolationReauthRequired is an exported constant or variable used by the security engine.
	ViolationReauthRequired ViolationKind = "REAUTH_REQUIRED"
)

// ActionKind defines a public type used by sessionguard APIs.
//
// ActionKind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ActionKind string

const (
	// ActionRequireLogin is an exported constant or variable used by the security engine.
	ActionRequireLogin ActionKind = "REQUIRE_LOGIN"
	// ActionRefreshToken is an exported constant or variable used by the security engine.
	ActionRefreshToken ActionKind = "REFRESH_TOKEN"
	// ActionTerminateOldestSessions is an exported constant or variable used by the security engine.
	ActionTerminateOldestSessions ActionKind = "TERMINATE_OLDEST_SESSIONS"
	// ActionRequireDeviceVerification is an exported constant or variable used by the security engine.
	ActionRequireDeviceVerification ActionKind = "REQUIRE_DEVICE_VERIFICATION"
	// ActionRequireReauth is an exported constant or variable used by the security engine.
	ActionRequireReauth ActionKind = "REQUIRE_REAUTH"
)

// SessionVerdict defines a public type used by sessionguard APIs.
//
// A verdict is a point-in-time read: it is recomputed on every validation
// call and never persisted as a source of truth. RiskLevel is the ordinal
// max over all triggered escalations and never decreases within one call.
type SessionVerdict struct {
	SessionID     string
	UserID        string
	Valid         bool
	Violations    []ViolationKind
	RiskLevel     RiskLevel
	Actions       []ActionKind
	SecurityScore int
	CheckedAt     time.Time
}

// RateLimitResult defines a public type used by sessionguard APIs.
//
// A denial is a result value, not an error: WaitTime carries the mandatory
// wait and NeedsCaptcha the escalation signal.
type RateLimitResult = rate.Decision

// ResetCheckResult defines a public type used by sessionguard APIs.
//
// Reason names the scope that denied: one of ReasonEmailRateLimit,
// ReasonIPRateLimit, ReasonGlobalRateLimit, ReasonSuspiciousActivity.
type ResetCheckResult = limiters.CheckResult

const (
	// ReasonEmailRateLimit is an exported constant or variable used by the security engine.
	ReasonEmailRateLimit = limiters.ReasonEmailRateLimit
	// ReasonIPRateLimit is an exported constant or variable used by the security engine.
	ReasonIPRateLimit = limiters.ReasonIPRateLimit
	// ReasonGlobalRateLimit is an exported constant or variable used by the security engine.
	ReasonGlobalRateLimit = limiters.ReasonGlobalRateLimit
	// ReasonSuspiciousActivity is an exported constant or variable used by the security engine.
	ReasonSuspiciousActivity = limiters.ReasonSuspiciousActivity
)

// DeviceAttributes defines a public type used by sessionguard APIs.
type DeviceAttributes = fingerprint.Attributes

// DeviceFingerprint defines a public type used by sessionguard APIs.
type DeviceFingerprint = fingerprint.Fingerprint

// DeviceNotifier receives new-device notifications. Invoked on its own
// goroutine; it must not assume any ordering relative to the triggering call.
type DeviceNotifier = fingerprint.Notifier

// AuditEntry defines a public type used by sessionguard APIs.
type AuditEntry = internalaudit.Entry

// AuditFilter defines a public type used by sessionguard APIs.
type AuditFilter = internalaudit.Filter

// AuditResult defines a public type used by sessionguard APIs.
type AuditResult = internalaudit.Result

const (
	// ResultSuccess is an exported constant or variable used by the security engine.
	ResultSuccess = internalaudit.ResultSuccess
	// ResultFailure is an exported constant or variable used by the security engine.
	ResultFailure = internalaudit.ResultFailure
	// ResultError is an exported constant or variable used by the security engine.
	ResultError = internalaudit.ResultError
	// ResultDenied is an exported constant or variable used by the security engine.
	ResultDenied = internalaudit.ResultDenied
)

// Canonical event type names accepted by LogEvent. Custom strings are legal;
// they classify into the default (low) event class.
const (
	EventLoginSuccess         = internalaudit.EventLoginSuccess
	EventLoginFailure         = internalaudit.EventLoginFailure
	EventLoginRateLimited     = internalaudit.EventLoginRateLimited
	EventPasswordResetRequest = internalaudit.EventPasswordResetRequest
	EventPasswordResetFailure = internalaudit.EventPasswordResetFailure
	EventRateLimitTriggered   = internalaudit.EventRateLimitTriggered
	EventSuspiciousActivity   = internalaudit.EventSuspiciousActivity
	EventSessionValidated     = internalaudit.EventSessionValidated
	EventSessionExpired       = internalaudit.EventSessionExpired
	EventSessionTerminated    = internalaudit.EventSessionTerminated
	EventDeviceChange         = internalaudit.EventDeviceChange
	EventDeviceVerified       = internalaudit.EventDeviceVerified
	EventReauthRequired       = internalaudit.EventReauthRequired
	EventReauthConfirmed      = internalaudit.EventReauthConfirmed
	EventRoleAssigned         = internalaudit.EventRoleAssigned
	EventRoleRevoked          = internalaudit.EventRoleRevoked
	EventAccountLockout       = internalaudit.EventAccountLockout
	EventPermissionDenied     = internalaudit.EventPermissionDenied
	EventAuditReviewed        = internalaudit.EventAuditReviewed
	EventAuditFallbackEngaged = internalaudit.EventAuditFallbackEngaged
	EventComplexityReport     = internalaudit.EventComplexityReport
)

// AuditSink defines a public type used by sessionguard APIs.
//
// Sinks receive finalized entries from the async dispatcher; Emit must not
// block indefinitely.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all entries.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes one JSON-encoded entry per
// line to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// AuditRepository is the persisted boundary for the append-only audit trail.
// The engine treats the concrete store as an external collaborator; the
// bundled Redis-backed implementation satisfies this contract and is wired
// automatically when no repository is injected.
type AuditRepository interface {
	Insert(ctx context.Context, entry AuditEntry) error
	Get(ctx context.Context, id string) (AuditEntry, error)
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
	UpdateReview(ctx context.Context, id, reviewedBy, notes string, at time.Time) (AuditEntry, error)
	ArchiveBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// AlertFunc receives HIGH and CRITICAL audit entries. Invoked on its own
// goroutine, never on the caller's critical path.
type AlertFunc func(entry AuditEntry)

// ComplexityAnalysis defines a public type used by sessionguard APIs.
type ComplexityAnalysis = complexity.Analysis

// Session defines a public type used by sessionguard APIs.
type Session = session.Session

// AuditHealth defines a public type used by sessionguard APIs.
//
// Degraded latches true after the first repository write failure so sustained
// fallback use is visible to operators rather than silently absorbed.
type AuditHealth struct {
	Degraded       bool
	Dropped        uint64
	FallbackWrites uint64
}
