package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// RiskLevel is the ordinal danger classification of an audit entry or
// session verdict. Zero means "not yet classified"; comparisons between
// classified levels use the ordinal value directly.
type RiskLevel uint8

const (
	RiskUnspecified RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

// String describes the level in the canonical wire spelling.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return "UNSPECIFIED"
	}
}

// MaxRisk returns the higher of two levels. Used by the session validator,
// where risk is monotonic non-decreasing within one validation call.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b > a {
		return b
	}
	return a
}

// Result is the outcome of the audited action.
type Result string

const (
	ResultSuccess Result = "SUCCESS"
	ResultFailure Result = "FAILURE"
	ResultError   Result = "ERROR"
	ResultDenied  Result = "DENIED"
)

// Canonical event type names. Classification weights in classify.go key off
// these strings, so external callers logging custom types fall into the
// default (low) class.
const (
	EventLoginSuccess          = "login_success"
	EventLoginFailure          = "login_failure"
	EventLoginRateLimited      = "login_rate_limited"
	EventPasswordResetRequest  = "password_reset_request"
	EventPasswordResetFailure  = "password_reset_failure"
	EventRateLimitTriggered    = "rate_limit_triggered"
	EventSuspiciousActivity    = "suspicious_activity"
	EventSessionValidated      = "session_validated"
	EventSessionExpired        = "session_expired"
	EventSessionTerminated     = "session_terminated"
	EventDeviceChange          = "device_change"
	EventDeviceVerified        = "device_verified"
	EventReauthRequired        = "reauth_required"
	EventReauthConfirmed       = "reauth_confirmed"
	EventRoleAssigned          = "role_assigned"
	EventRoleRevoked           = "role_revoked"
	EventAccountLockout        = "account_lockout"
	EventPermissionDenied      = "permission_denied"
	EventAuditReviewed         = "audit_reviewed"
	EventAuditFallbackEngaged  = "audit_fallback_engaged"
	EventComplexityReport      = "complexity_report"
)

// Entry is the canonical append-only audit record.
//
// Core fields (EventType through Metadata) are immutable once logged. Derived
// fields (RiskLevel, ConfidenceScore, RequiresReview) are set exactly once by
// [Finalize]. Review fields are mutable only through the repository's review
// update; last write wins. Entries are never deleted, only archived.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`

	ActorID    string `json:"actor_id,omitempty"`
	AffectedID string `json:"affected_id,omitempty"`
	TenantID   string `json:"tenant_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`

	IP                string `json:"ip_address,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
	RequestPath       string `json:"request_path,omitempty"`

	Result Result `json:"result"`
	Reason string `json:"reason,omitempty"`

	RoleFrom string `json:"role_from,omitempty"`
	RoleTo   string `json:"role_to,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	RiskLevel       RiskLevel `json:"risk_level"`
	ConfidenceScore float64   `json:"confidence_score"`
	RequiresReview  bool      `json:"requires_review"`

	ReviewedBy  string    `json:"reviewed_by,omitempty"`
	ReviewedAt  time.Time `json:"reviewed_at,omitzero"`
	ReviewNotes string    `json:"review_notes,omitempty"`

	Archived bool `json:"archived,omitempty"`
}

// Filter selects entries from a repository query. Zero fields match
// everything; From/To bound the timestamp inclusively.
type Filter struct {
	ActorID        string
	EventType      string
	Result         Result
	RiskLevel      RiskLevel
	From           time.Time
	To             time.Time
	RequiresReview *bool
	IncludeArchived bool

	Limit  int
	Offset int
}

// Sink receives finalized audit entries.
type Sink interface {
	Emit(ctx context.Context, entry Entry)
}

// NoOpSink drops audit entries.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Entry) {}

// ChannelSink writes audit entries into a buffered channel.
type ChannelSink struct {
	entries chan Entry
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		entries: make(chan Entry, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, entry Entry) {
	select {
	case s.entries <- entry:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Entries() <-chan Entry {
	return s.entries
}

// JSONWriterSink writes one JSON object per line. It is the local fallback
// target when the backing repository rejects a write: an audit entry is never
// silently dropped.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, entry Entry) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
