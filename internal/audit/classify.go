package audit

// Event classes for risk scoring. Role changes, lockouts, and suspicious
// activity carry the highest base weight; credential failures and device
// anomalies sit in the middle; everything else defaults to 1.
var highRiskEvents = map[string]struct{}{
	EventRoleAssigned:       {},
	EventRoleRevoked:        {},
	EventSuspiciousActivity: {},
	EventAccountLockout:     {},
}

var mediumRiskEvents = map[string]struct{}{
	EventLoginFailure:         {},
	EventLoginRateLimited:     {},
	EventPasswordResetRequest: {},
	EventPasswordResetFailure: {},
	EventRateLimitTriggered:   {},
	EventDeviceChange:         {},
	EventSessionTerminated:    {},
	EventPermissionDenied:     {},
}

var elevatedRoles = map[string]struct{}{
	"admin":       {},
	"super_admin": {},
}

const (
	riskScoreCritical = 6
	riskScoreHigh     = 4
	riskScoreMedium   = 2
)

// Classify computes the risk level of an entry from its event class, result,
// and role elevation. The mapping is deterministic: identical entries always
// classify identically.
func Classify(e Entry) RiskLevel {
	score := eventClassWeight(e.EventType)

	switch e.Result {
	case ResultFailure, ResultError:
		score += 2
	case ResultDenied:
		score++
	}

	if _, ok := elevatedRoles[e.RoleTo]; ok {
		score += 2
	}

	switch {
	case score >= riskScoreCritical:
		return RiskCritical
	case score >= riskScoreHigh:
		return RiskHigh
	case score >= riskScoreMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

func eventClassWeight(eventType string) int {
	if _, ok := highRiskEvents[eventType]; ok {
		return 3
	}
	if _, ok := mediumRiskEvents[eventType]; ok {
		return 2
	}
	return 1
}

// Confidence scores how much context the entry carries: a 0.5 base plus 0.1
// per present field among actor, IP, session, fingerprint, request path, and
// non-empty metadata, capped at 1.0.
func Confidence(e Entry) float64 {
	score := 0.5

	if e.ActorID != "" {
		score += 0.1
	}
	if e.IP != "" {
		score += 0.1
	}
	if e.SessionID != "" {
		score += 0.1
	}
	if e.DeviceFingerprint != "" {
		score += 0.1
	}
	if e.RequestPath != "" {
		score += 0.1
	}
	if len(e.Metadata) > 0 {
		score += 0.1
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// NeedsReview flags entries for human triage: any HIGH/CRITICAL entry, any
// role change, and any failed or errored action.
func NeedsReview(e Entry, risk RiskLevel) bool {
	if risk >= RiskHigh {
		return true
	}
	if e.EventType == EventRoleAssigned || e.EventType == EventRoleRevoked {
		return true
	}
	return e.Result == ResultFailure || e.Result == ResultError
}

// Finalize fills the derived fields exactly once. A caller-supplied risk
// level is respected; confidence and requires-review are always recomputed so
// the classification invariants hold for every logged entry.
func Finalize(e *Entry) {
	if e == nil {
		return
	}
	if e.RiskLevel == RiskUnspecified {
		e.RiskLevel = Classify(*e)
	}
	e.ConfidenceScore = Confidence(*e)
	e.RequiresReview = NeedsReview(*e, e.RiskLevel)
}
