package sessionguard

import (
	"context"
	"strconv"

	internalaudit "github.com/gloos/sessionguard/internal/audit"
)

// AnalyzeSessionComplexity builds the dependency/vulnerability report for
// one user from the validation samples observed so far. Results are cached
// per identifier with a short TTL; a fresh validation invalidates the cache.
// Reports carrying HIGH or CRITICAL findings land on the audit trail.
func (e *Engine) AnalyzeSessionComplexity(ctx context.Context, userID string) ComplexityAnalysis {
	if e == nil || e.analyzer == nil {
		return ComplexityAnalysis{}
	}

	e.metricInc(MetricComplexityAnalyzed)
	analysis := e.analyzer.Analyze(scopedKey(ctx, userID))

	if risk := maxFindingSeverity(analysis); risk >= RiskHigh {
		e.LogEvent(ctx, AuditEntry{
			EventType: internalaudit.EventComplexityReport,
			ActorID:   userID,
			Result:    ResultSuccess,
			RiskLevel: risk,
			Metadata: map[string]string{
				"complexity_score": strconv.Itoa(analysis.Score),
				"vulnerabilities":  strconv.Itoa(len(analysis.Vulnerabilities)),
			},
		})
	}

	return analysis
}

func maxFindingSeverity(analysis ComplexityAnalysis) RiskLevel {
	var risk RiskLevel
	for _, v := range analysis.Vulnerabilities {
		risk = MaxRisk(risk, v.Severity)
	}
	return risk
}
