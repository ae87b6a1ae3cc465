package sessionguard

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	internalaudit "github.com/gloos/sessionguard/internal/audit"
	"github.com/gloos/sessionguard/internal/complexity"
	"github.com/gloos/sessionguard/internal/reauth"
)

// ValidateSession computes the security verdict for one session. Checks run
// in a fixed order; a missing session or user mismatch is terminal and
// short-circuits the rest. Risk only escalates within a call, never drops.
// Backend failures fail closed: the caller gets ErrSessionBackendUnavailable,
// not a permissive verdict.
func (e *Engine) ValidateSession(ctx context.Context, sessionID, userID string) (SessionVerdict, error) {
	if e == nil || e.sessionStore == nil {
		return SessionVerdict{}, ErrEngineNotReady
	}

	start := time.Now()
	now := start.UTC()
	tenantID := tenantIDFromContext(ctx)

	verdict := SessionVerdict{
		SessionID: sessionID,
		UserID:    userID,
		Valid:     true,
		RiskLevel: RiskLow,
		CheckedAt: now,
	}

	if sessionID == "" || userID == "" {
		kind := ViolationNoActiveSession
		if sessionID != "" {
			kind = ViolationInvalidUser
		}
		return e.finishVerdict(ctx, e.terminalVerdict(verdict, kind), nil, start), nil
	}

	sess, err := e.sessionStore.Get(ctx, tenantID, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return e.finishVerdict(ctx, e.terminalVerdict(verdict, ViolationNoActiveSession), nil, start), nil
		}
		return SessionVerdict{}, ErrSessionBackendUnavailable
	}

	if sess.UserID != userID {
		return e.finishVerdict(ctx, e.terminalVerdict(verdict, ViolationInvalidUser), nil, start), nil
	}

	if sess.Expired(now) {
		verdict.Violations = append(verdict.Violations, ViolationSessionExpired)
		verdict.Actions = append(verdict.Actions, ActionRefreshToken)
	}

	concurrent := 0
	if e.config.Validator.MaxConcurrentSessions > 0 {
		concurrent, err = e.sessionStore.ActiveSessionCount(ctx, tenantID, userID)
		if err != nil {
			return SessionVerdict{}, ErrSessionBackendUnavailable
		}
		if concurrent > e.config.Validator.MaxConcurrentSessions {
			verdict.Violations = append(verdict.Violations, ViolationConcurrentSessionLimit)
			verdict.Actions = append(verdict.Actions, ActionTerminateOldestSessions)
			verdict.RiskLevel = MaxRisk(verdict.RiskLevel, RiskHigh)

			if e.config.Validator.TerminateOverflow {
				if _, err := e.TerminateOldestSessions(ctx, userID, e.config.Validator.MaxConcurrentSessions); err != nil {
					return SessionVerdict{}, err
				}
			}
		}
	}

	fpHash := sess.FingerprintHash
	if attrs, ok := deviceAttributesFromContext(ctx); ok || userAgentFromContext(ctx) != "" {
		if attrs.UserAgent == "" {
			attrs.UserAgent = userAgentFromContext(ctx)
		}
		isNew, fp := e.devices.CheckChange(scopedKey(ctx, userID), attrs)
		fpHash = fp.Hash
		if isNew || (sess.FingerprintHash != "" && fp.Hash != sess.FingerprintHash) {
			verdict.Violations = append(verdict.Violations, ViolationDeviceFingerprintChange)
			verdict.Actions = append(verdict.Actions, ActionRequireDeviceVerification)
			verdict.RiskLevel = MaxRisk(verdict.RiskLevel, RiskMedium)
		}
	}

	if e.config.Validator.ReauthInterval > 0 {
		last := sess.LastReauthAt
		if last == 0 {
			last = sess.CreatedAt
		}
		if now.Unix()-last > int64(e.config.Validator.ReauthInterval/time.Second) {
			verdict.Violations = append(verdict.Violations, ViolationReauthRequired)
			verdict.Actions = append(verdict.Actions, ActionRequireReauth)
			verdict.RiskLevel = MaxRisk(verdict.RiskLevel, RiskMedium)
		}
	}

	verdict.Valid = len(verdict.Violations) == 0

	sample := &complexity.Sample{
		SessionID:          sessionID,
		IP:                 clientIPFromContext(ctx),
		FingerprintHash:    fpHash,
		ConcurrentSessions: concurrent,
		Timestamp:          now,
	}

	return e.finishVerdict(ctx, verdict, sample, start), nil
}

// terminalVerdict applies the short-circuit shape for missing-session and
// invalid-user outcomes.
func (e *Engine) terminalVerdict(verdict SessionVerdict, kind ViolationKind) SessionVerdict {
	verdict.Valid = false
	verdict.Violations = []ViolationKind{kind}
	verdict.Actions = []ActionKind{ActionRequireLogin}
	verdict.RiskLevel = MaxRisk(verdict.RiskLevel, RiskHigh)
	return verdict
}

// finishVerdict computes the score, emits the single per-call audit entry,
// feeds the complexity analyzer, and records metrics.
func (e *Engine) finishVerdict(ctx context.Context, verdict SessionVerdict, sample *complexity.Sample, start time.Time) SessionVerdict {
	verdict.SecurityScore = securityScore(len(verdict.Violations), verdict.RiskLevel)

	entry := AuditEntry{
		EventType: internalaudit.EventSessionValidated,
		ActorID:   verdict.UserID,
		SessionID: verdict.SessionID,
		Result:    ResultSuccess,
		RiskLevel: verdict.RiskLevel,
		Metadata: map[string]string{
			"security_score": strconv.Itoa(verdict.SecurityScore),
		},
	}
	if !verdict.Valid {
		entry.EventType = internalaudit.EventSuspiciousActivity
		entry.Result = ResultDenied
		entry.Metadata["violations"] = joinViolations(verdict.Violations)
	}
	e.LogEvent(ctx, entry)

	if sample != nil && e.analyzer != nil {
		s := *sample
		s.SecurityScore = verdict.SecurityScore
		e.analyzer.Observe(scopedKey(ctx, verdict.UserID), s)
	}

	if verdict.Valid {
		e.metricInc(MetricSessionValid)
	} else {
		e.metricInc(MetricSessionInvalid)
	}
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	return verdict
}

// TerminateOldestSessions deletes the user's oldest sessions until at most
// keep remain, newest first preserved. Each termination is audited.
func (e *Engine) TerminateOldestSessions(ctx context.Context, userID string, keep int) ([]string, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	terminated, err := e.sessionStore.TerminateOldest(ctx, tenantIDFromContext(ctx), userID, keep)
	if err != nil {
		return nil, ErrSessionBackendUnavailable
	}

	for _, sid := range terminated {
		e.metricInc(MetricSessionTerminated)
		e.LogEvent(ctx, AuditEntry{
			EventType: internalaudit.EventSessionTerminated,
			ActorID:   userID,
			SessionID: sid,
			Result:    ResultSuccess,
			Reason:    "concurrent session limit",
		})
	}

	return terminated, nil
}

// IssueReauthProof signs a short-lived proof bound to the (user, session)
// pair. Call it only after the upstream provider has re-authenticated the
// user.
func (e *Engine) IssueReauthProof(ctx context.Context, userID, sessionID string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if e.reauth == nil {
		return "", ErrReauthDisabled
	}

	proof, err := e.reauth.Issue(userID, sessionID)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricReauthIssued)
	return proof, nil
}

// ConfirmReauthentication verifies a proof and stamps the session's re-auth
// time, clearing the REAUTH_REQUIRED violation on subsequent validations.
// A proof issued for a different session never clears this one.
func (e *Engine) ConfirmReauthentication(ctx context.Context, proof string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if e.reauth == nil {
		return ErrReauthDisabled
	}

	claims, err := e.reauth.Verify(proof)
	if err != nil {
		if errors.Is(err, reauth.ErrProofInvalid) {
			return ErrReauthProofInvalid
		}
		return err
	}

	tenantID := tenantIDFromContext(ctx)
	if err := e.sessionStore.RecordReauth(ctx, tenantID, claims.SID, time.Now().UTC()); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return ErrSessionBackendUnavailable
	}

	e.metricInc(MetricReauthConfirmed)
	e.LogEvent(ctx, AuditEntry{
		EventType: internalaudit.EventReauthConfirmed,
		ActorID:   claims.UID,
		SessionID: claims.SID,
		Result:    ResultSuccess,
	})

	return nil
}

func securityScore(violations int, risk RiskLevel) int {
	score := 100 - 10*violations - riskPenalty(risk)
	if score < 0 {
		score = 0
	}
	return score
}

func riskPenalty(risk RiskLevel) int {
	switch risk {
	case RiskCritical:
		return 50
	case RiskHigh:
		return 30
	case RiskMedium:
		return 15
	case RiskLow:
		return 5
	default:
		return 0
	}
}

func joinViolations(violations []ViolationKind) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, string(v))
	}
	return strings.Join(parts, ",")
}
