package complexity

import (
	"sort"
	"sync"
	"time"

	"github.com/gloos/sessionguard/internal/audit"
)

// Graph node names. Sources are observed signals; targets are the downstream
// controls they influence.
const (
	NodeFingerprintStability = "device_fingerprint_stability"
	NodeIPStability          = "ip_stability"
	NodeConcurrentSessions   = "concurrent_session_count"
	NodeSecurityScore        = "security_score"

	NodeSessionValidation  = "session_validation"
	NodeAccessControl      = "access_control"
	NodeResourceAllocation = "resource_allocation"
)

// Vulnerability type names.
const (
	VulnSessionHijacking    = "session_hijacking"
	VulnWeakSecurityPosture = "weak_security_posture"
	VulnDistributedAccess   = "distributed_access"
	VulnSessionSprawl       = "excessive_concurrent_sessions"
)

// Edge is one dependency between a signal source and a control, with a
// strength in (0,1] and a heuristic risk level.
type Edge struct {
	Source   string          `json:"source"`
	Target   string          `json:"target"`
	Strength float64         `json:"strength"`
	Risk     audit.RiskLevel `json:"risk_level"`
}

// Path is an ordered node chain whose edges all carry HIGH or CRITICAL risk.
type Path struct {
	Nodes []string        `json:"nodes"`
	Risk  audit.RiskLevel `json:"risk_level"`
}

// Vulnerability is a derived finding with a remediation hint.
type Vulnerability struct {
	Type             string          `json:"type"`
	Severity         audit.RiskLevel `json:"severity"`
	Recommendation   string          `json:"recommendation"`
	AffectedSessions int             `json:"affected_sessions"`
}

// Analysis is the full report for one identifier.
type Analysis struct {
	Identifier      string          `json:"identifier"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Edges           []Edge          `json:"edges"`
	CriticalPaths   []Path          `json:"critical_paths"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Score           int             `json:"complexity_score"`
}

// Sample is one validation observation fed into the analyzer.
type Sample struct {
	SessionID          string
	IP                 string
	FingerprintHash    string
	ConcurrentSessions int
	SecurityScore      int
	Timestamp          time.Time
}

// Config tunes the heuristics.
type Config struct {
	// MaxConcurrentSessions mirrors the validator's limit so the
	// resource edge knows when the count is hot.
	MaxConcurrentSessions int

	// CacheTTL bounds how stale a cached Analysis may be.
	CacheTTL time.Duration

	// TrackerRetention bounds how long idle identifier trackers are kept.
	TrackerRetention time.Duration

	// MaxScores caps the per-identifier score history.
	MaxScores int
}

type tracker struct {
	ips          map[string]struct{}
	fingerprints map[string]struct{}
	concurrent   int
	scores       []int
	lastSeen     time.Time
}

type cached struct {
	analysis Analysis
	expires  time.Time
}

// Analyzer aggregates validation samples per identifier and produces cached
// dependency/vulnerability reports on demand.
type Analyzer struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	trackers map[string]*tracker
	cache    map[string]cached
}

func New(cfg Config) *Analyzer {
	return NewWithClock(cfg, time.Now)
}

func NewWithClock(cfg Config, now func() time.Time) *Analyzer {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TrackerRetention <= 0 {
		cfg.TrackerRetention = 24 * time.Hour
	}
	if cfg.MaxScores <= 0 {
		cfg.MaxScores = 100
	}
	if now == nil {
		now = time.Now
	}
	return &Analyzer{
		cfg:      cfg,
		now:      now,
		trackers: make(map[string]*tracker),
		cache:    make(map[string]cached),
	}
}

// Observe records one validation sample for the identifier.
func (a *Analyzer) Observe(identifier string, s Sample) {
	if identifier == "" {
		return
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = a.now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.trackers[identifier]
	if !ok {
		t = &tracker{
			ips:          make(map[string]struct{}),
			fingerprints: make(map[string]struct{}),
		}
		a.trackers[identifier] = t
	}

	if s.IP != "" {
		t.ips[s.IP] = struct{}{}
	}
	if s.FingerprintHash != "" {
		t.fingerprints[s.FingerprintHash] = struct{}{}
	}
	if s.ConcurrentSessions > 0 {
		t.concurrent = s.ConcurrentSessions
	}
	t.scores = append(t.scores, s.SecurityScore)
	if len(t.scores) > a.cfg.MaxScores {
		t.scores = t.scores[len(t.scores)-a.cfg.MaxScores:]
	}
	t.lastSeen = s.Timestamp

	// Observations invalidate the cached report.
	delete(a.cache, identifier)
}

// Analyze builds (or returns the cached) report for the identifier.
func (a *Analyzer) Analyze(identifier string) Analysis {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.cache[identifier]; ok && now.Before(c.expires) {
		return c.analysis
	}

	t := a.trackers[identifier]
	analysis := a.build(identifier, t, now)
	a.cache[identifier] = cached{analysis: analysis, expires: now.Add(a.cfg.CacheTTL)}
	return analysis
}

// Sweep drops idle trackers and expired cache entries.
func (a *Analyzer) Sweep(now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for id, t := range a.trackers {
		if now.Sub(t.lastSeen) > a.cfg.TrackerRetention {
			delete(a.trackers, id)
			removed++
		}
	}
	for id, c := range a.cache {
		if !now.Before(c.expires) {
			delete(a.cache, id)
		}
	}
	return removed
}

func (a *Analyzer) build(identifier string, t *tracker, now time.Time) Analysis {
	analysis := Analysis{
		Identifier:  identifier,
		GeneratedAt: now,
	}
	if t == nil {
		return analysis
	}

	ipCount := len(t.ips)
	fpCount := len(t.fingerprints)
	avg := averageScore(t.scores)
	minScore := minimumScore(t.scores)

	analysis.Edges = []Edge{
		{
			Source:   NodeFingerprintStability,
			Target:   NodeSessionValidation,
			Strength: inverseStrength(fpCount),
			Risk:     countRisk(fpCount, 2),
		},
		{
			Source:   NodeIPStability,
			Target:   NodeAccessControl,
			Strength: inverseStrength(ipCount),
			Risk:     countRisk(ipCount, 3),
		},
		{
			Source:   NodeConcurrentSessions,
			Target:   NodeResourceAllocation,
			Strength: inverseStrength(t.concurrent),
			Risk:     concurrentRisk(t.concurrent, a.cfg.MaxConcurrentSessions),
		},
		{
			Source:   NodeSecurityScore,
			Target:   NodeSessionValidation,
			Strength: scoreStrength(avg),
			Risk:     scoreRisk(avg),
		},
	}

	hotEdges := 0
	for _, e := range analysis.Edges {
		if e.Risk >= audit.RiskHigh {
			hotEdges++
			analysis.CriticalPaths = append(analysis.CriticalPaths, Path{
				Nodes: []string{e.Source, e.Target},
				Risk:  e.Risk,
			})
		}
	}
	sort.Slice(analysis.CriticalPaths, func(i, j int) bool {
		return analysis.CriticalPaths[i].Nodes[0] < analysis.CriticalPaths[j].Nodes[0]
	})

	if fpCount > 2 {
		analysis.Vulnerabilities = append(analysis.Vulnerabilities, Vulnerability{
			Type:             VulnSessionHijacking,
			Severity:         audit.RiskHigh,
			Recommendation:   "require device verification and invalidate unrecognized sessions",
			AffectedSessions: t.concurrent,
		})
	}
	if len(t.scores) > 0 && minScore < 50 {
		analysis.Vulnerabilities = append(analysis.Vulnerabilities, Vulnerability{
			Type:             VulnWeakSecurityPosture,
			Severity:         audit.RiskCritical,
			Recommendation:   "force re-authentication and review recent audit entries",
			AffectedSessions: t.concurrent,
		})
	}
	if ipCount > 3 {
		analysis.Vulnerabilities = append(analysis.Vulnerabilities, Vulnerability{
			Type:             VulnDistributedAccess,
			Severity:         audit.RiskMedium,
			Recommendation:   "confirm travel or shared-account use; consider IP pinning",
			AffectedSessions: t.concurrent,
		})
	}
	if a.cfg.MaxConcurrentSessions > 0 && t.concurrent > a.cfg.MaxConcurrentSessions {
		analysis.Vulnerabilities = append(analysis.Vulnerabilities, Vulnerability{
			Type:             VulnSessionSprawl,
			Severity:         audit.RiskMedium,
			Recommendation:   "terminate oldest sessions beyond the configured cap",
			AffectedSessions: t.concurrent,
		})
	}

	criticalVulns := 0
	for _, v := range analysis.Vulnerabilities {
		if v.Severity == audit.RiskCritical {
			criticalVulns++
		}
	}

	score := 10*len(analysis.Edges) +
		20*hotEdges +
		15*len(analysis.Vulnerabilities) +
		30*criticalVulns
	if t.concurrent > 5 {
		score += 5
	} else {
		score += t.concurrent
	}
	if deficit := 70 - avg; deficit > 0 {
		score += deficit / 10
	}
	if score > 100 {
		score = 100
	}
	analysis.Score = score

	return analysis
}

func inverseStrength(count int) float64 {
	if count <= 1 {
		return 1
	}
	return 1 / float64(count)
}

func countRisk(count, highAbove int) audit.RiskLevel {
	switch {
	case count > highAbove:
		return audit.RiskHigh
	case count > 1:
		return audit.RiskMedium
	default:
		return audit.RiskLow
	}
}

func concurrentRisk(count, max int) audit.RiskLevel {
	if max <= 0 {
		return audit.RiskLow
	}
	switch {
	case count > max:
		return audit.RiskHigh
	case count == max:
		return audit.RiskMedium
	default:
		return audit.RiskLow
	}
}

func scoreStrength(avg int) float64 {
	if avg <= 0 {
		return 1
	}
	return float64(avg) / 100
}

func scoreRisk(avg int) audit.RiskLevel {
	switch {
	case avg < 50:
		return audit.RiskCritical
	case avg < 70:
		return audit.RiskHigh
	case avg < 90:
		return audit.RiskMedium
	default:
		return audit.RiskLow
	}
}

func averageScore(scores []int) int {
	if len(scores) == 0 {
		return 100
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return sum / len(scores)
}

func minimumScore(scores []int) int {
	if len(scores) == 0 {
		return 100
	}
	min := scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
	}
	return min
}
