package sessionguard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

// memAuditRepo is an in-memory AuditRepository for engine tests. It preserves
// insertion order and can be switched into a failing mode to exercise the
// fallback path.
type memAuditRepo struct {
	mu      sync.Mutex
	entries map[string]AuditEntry
	order   []string
	failing bool
}

func newMemAuditRepo() *memAuditRepo {
	return &memAuditRepo{entries: make(map[string]AuditEntry)}
}

func (r *memAuditRepo) fail(failing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing = failing
}

func (r *memAuditRepo) Insert(_ context.Context, entry AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errors.New("repository write refused")
	}
	if _, ok := r.entries[entry.ID]; !ok {
		r.order = append(r.order, entry.ID)
	}
	r.entries[entry.ID] = entry
	return nil
}

func (r *memAuditRepo) Get(_ context.Context, id string) (AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return AuditEntry{}, ErrAuditEntryNotFound
	}
	return entry, nil
}

func (r *memAuditRepo) Query(_ context.Context, filter AuditFilter) ([]AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []AuditEntry
	for _, id := range r.order {
		e := r.entries[id]
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.Result != "" && e.Result != filter.Result {
			continue
		}
		if !filter.IncludeArchived && e.Archived {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *memAuditRepo) UpdateReview(_ context.Context, id, reviewedBy, notes string, at time.Time) (AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return AuditEntry{}, ErrAuditEntryNotFound
	}
	entry.ReviewedBy = reviewedBy
	entry.ReviewedAt = at
	entry.ReviewNotes = notes
	entry.RequiresReview = false
	r.entries[id] = entry
	return entry, nil
}

func (r *memAuditRepo) ArchiveBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return 0, errors.New("repository archive refused")
	}

	archived := 0
	for id, e := range r.entries {
		if !e.Archived && e.Timestamp.Before(cutoff) {
			e.Archived = true
			r.entries[id] = e
			archived++
		}
	}
	return archived, nil
}

func (r *memAuditRepo) byEvent(eventType string) []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []AuditEntry
	for _, id := range r.order {
		if r.entries[id].EventType == eventType {
			out = append(out, r.entries[id])
		}
	}
	return out
}

type engineOption func(*Builder)

func withConfigTweak(fn func(*Config)) engineOption {
	return func(b *Builder) {
		cfg := defaultConfig()
		fn(&cfg)
		b.WithConfig(cfg)
	}
}

// newTestEngine builds an engine against miniredis with an in-memory audit
// repository and the background sweeper off.
func newTestEngine(t *testing.T, opts ...engineOption) (*Engine, *memAuditRepo) {
	t.Helper()

	_, client := newTestRedis(t)
	repo := newMemAuditRepo()

	builder := New().
		WithRedis(client).
		WithAuditRepository(repo).
		WithMetricsEnabled(true)
	builder.config.Sweep.Enabled = false
	for _, opt := range opts {
		opt(builder)
	}
	builder.config.Sweep.Enabled = false
	builder.WithMetricsEnabled(true)

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, repo
}

func TestBuildRequiresRedis(t *testing.T) {
	_, err := New().Build()
	if err == nil || !strings.Contains(err.Error(), "redis client required") {
		t.Fatalf("Build without redis = %v", err)
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	_, client := newTestRedis(t)

	builder := New().WithRedis(client).WithAuditRepository(newMemAuditRepo())
	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := builder.Build(); err == nil {
		t.Fatal("second Build on the same builder must fail")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	_, client := newTestRedis(t)

	cfg := defaultConfig()
	cfg.RateLimit.MaxAttempts = 0

	_, err := New().WithConfig(cfg).WithRedis(client).Build()
	if err == nil || !strings.Contains(err.Error(), "MaxAttempts") {
		t.Fatalf("Build with invalid config = %v", err)
	}
}

func TestBuildRejectsBadReauthKeys(t *testing.T) {
	_, client := newTestRedis(t)

	cfg := defaultConfig()
	cfg.Reauth.Enabled = true
	cfg.Reauth.PrivateKey = []byte("too short")
	cfg.Reauth.PublicKey = []byte("too short")

	if _, err := New().WithConfig(cfg).WithRedis(client).Build(); err == nil {
		t.Fatal("Build accepted undersized ed25519 keys")
	}
}

func TestConfigValidateTable(t *testing.T) {
	cases := []struct {
		name  string
		tweak func(*Config)
	}{
		{"zero session ttl", func(c *Config) { c.Session.SessionTTL = 0 }},
		{"zero max attempts", func(c *Config) { c.RateLimit.MaxAttempts = 0 }},
		{"sub-unit delay multiplier", func(c *Config) { c.RateLimit.DelayMultiplier = 0.5 }},
		{"base delay above max", func(c *Config) { c.RateLimit.BaseDelay = 10 * time.Minute }},
		{"zero reset email cap", func(c *Config) { c.PasswordReset.MaxRequestsPerEmail = 0 }},
		{"zero reset window", func(c *Config) { c.PasswordReset.GlobalWindow = 0 }},
		{"suspicious threshold without cooldown", func(c *Config) {
			c.PasswordReset.SuspiciousActivityCooldown = 0
		}},
		{"negative session cap", func(c *Config) { c.Validator.MaxConcurrentSessions = -1 }},
		{"reauth with unknown method", func(c *Config) {
			c.Reauth.Enabled = true
			c.Reauth.SigningMethod = "none"
		}},
		{"audit without retention", func(c *Config) { c.Audit.Retention = 0 }},
		{"sweeper without interval", func(c *Config) { c.Sweep.Interval = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.tweak(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
		})
	}

	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestCloneConfigCopiesKeyMaterial(t *testing.T) {
	cfg := defaultConfig()
	cfg.Reauth.PrivateKey = []byte{1, 2, 3}
	cfg.Reauth.PublicKey = []byte{4, 5, 6}

	clone := cloneConfig(cfg)
	clone.Reauth.PrivateKey[0] = 99
	clone.Reauth.PublicKey[0] = 99

	if cfg.Reauth.PrivateKey[0] != 1 || cfg.Reauth.PublicKey[0] != 4 {
		t.Fatal("cloneConfig shares key slices with the source")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.Close()
	engine.Close()
}

func TestNilEngineIsSafe(t *testing.T) {
	var e *Engine
	ctx := context.Background()

	if got := e.CheckRateLimit(ctx, "x"); !got.Allowed {
		t.Fatal("nil engine must allow")
	}
	e.RecordFailedAttempt(ctx, "x")
	e.RecordSuccessfulAttempt(ctx, "x", "u")
	if got := e.CheckResetRequest(ctx, "x"); !got.Allowed {
		t.Fatal("nil engine must allow resets")
	}
	if _, err := e.ValidateSession(ctx, "s", "u"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("nil ValidateSession = %v, want ErrEngineNotReady", err)
	}
	e.LogEvent(ctx, AuditEntry{EventType: EventLoginSuccess})
	if _, err := e.QueryLogs(ctx, AuditFilter{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("nil QueryLogs = %v, want ErrEngineNotReady", err)
	}
	e.Close()
}

func TestFailingRetentionSweepMarksDegraded(t *testing.T) {
	engine, repo := newTestEngine(t)

	engine.sweep(time.Now())
	if engine.AuditHealth().Degraded {
		t.Fatal("healthy sweep must not mark the trail degraded")
	}

	repo.fail(true)
	engine.sweep(time.Now())
	if !engine.AuditHealth().Degraded {
		t.Fatal("failing retention sweep must mark the trail degraded")
	}
}

func TestSecurityReportReflectsConfig(t *testing.T) {
	engine, _ := newTestEngine(t, withConfigTweak(func(c *Config) {
		c.RateLimit.MaxAttempts = 7
		c.Validator.MaxConcurrentSessions = 3
	}))

	report := engine.SecurityReport()
	if !report.RateLimitingActive || report.MaxLoginAttempts != 7 {
		t.Fatalf("rate limit section wrong: %+v", report)
	}
	if report.MaxConcurrentSessions != 3 {
		t.Fatalf("session cap = %d, want 3", report.MaxConcurrentSessions)
	}
	if !report.AuditEnabled {
		t.Fatal("audit must be reported enabled")
	}
	if report.ReauthProofsEnabled {
		t.Fatal("reauth proofs are disabled by default")
	}
}
