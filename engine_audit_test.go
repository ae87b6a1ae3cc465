package sessionguard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLogEventFillsAndFinalizes(t *testing.T) {
	engine, repo := newTestEngine(t)

	ctx := WithClientIP(WithTenantID(context.Background(), "tenant-a"), "203.0.113.1")
	engine.LogEvent(ctx, AuditEntry{
		EventType: EventRoleAssigned,
		ActorID:   "admin-1",
		RoleTo:    "admin",
	})
	engine.Close()

	entries := repo.byEvent(EventRoleAssigned)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	got := entries[0]

	if got.ID == "" {
		t.Fatal("ID not assigned")
	}
	if got.Timestamp.IsZero() {
		t.Fatal("Timestamp not assigned")
	}
	if got.TenantID != "tenant-a" || got.IP != "203.0.113.1" {
		t.Fatalf("context fields not filled: %+v", got)
	}
	if got.Result != ResultSuccess {
		t.Fatalf("default result = %s", got.Result)
	}
	if got.RiskLevel != RiskHigh || !got.RequiresReview {
		t.Fatalf("classification missing: risk=%v review=%v", got.RiskLevel, got.RequiresReview)
	}
	if got.ConfidenceScore <= 0 || got.ConfidenceScore > 1 {
		t.Fatalf("confidence = %v", got.ConfidenceScore)
	}
}

func TestRepositoryFailureEngagesFallback(t *testing.T) {
	_, client := newTestRedis(t)
	repo := newMemAuditRepo()
	repo.fail(true)

	var fallback bytes.Buffer
	builder := New().
		WithRedis(client).
		WithAuditRepository(repo).
		WithAuditFallback(&fallback).
		WithMetricsEnabled(true)
	builder.config.Sweep.Enabled = false

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	engine.LogEvent(context.Background(), AuditEntry{
		EventType: EventLoginFailure,
		ActorID:   "u-1",
		Result:    ResultFailure,
	})
	engine.Close()

	health := engine.AuditHealth()
	if !health.Degraded {
		t.Fatal("health not degraded after repository failure")
	}
	if health.FallbackWrites != 1 {
		t.Fatalf("fallback writes = %d, want 1", health.FallbackWrites)
	}

	// The fallback trail opens with the engagement marker, then the entry,
	// one JSON line each.
	lines := strings.Split(strings.TrimSpace(fallback.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("fallback lines = %d, want 2", len(lines))
	}
	var marker AuditEntry
	if err := json.Unmarshal([]byte(lines[0]), &marker); err != nil {
		t.Fatalf("marker line is not JSON: %v", err)
	}
	if marker.EventType != EventAuditFallbackEngaged || marker.Result != ResultError {
		t.Fatalf("marker entry = %+v", marker)
	}
	var got AuditEntry
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("fallback line is not JSON: %v", err)
	}
	if got.EventType != EventLoginFailure || got.ActorID != "u-1" {
		t.Fatalf("fallback entry = %+v", got)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricAuditFallback] != 1 {
		t.Fatalf("fallback metric = %d, want 1", snap.Counters[MetricAuditFallback])
	}
}

func TestFallbackMarkerEmittedOnce(t *testing.T) {
	_, client := newTestRedis(t)
	repo := newMemAuditRepo()
	repo.fail(true)

	var fallback bytes.Buffer
	builder := New().
		WithRedis(client).
		WithAuditRepository(repo).
		WithAuditFallback(&fallback).
		WithMetricsEnabled(true)
	builder.config.Sweep.Enabled = false

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	engine.LogEvent(ctx, AuditEntry{EventType: EventLoginFailure, ActorID: "u-1", Result: ResultFailure})
	engine.LogEvent(ctx, AuditEntry{EventType: EventLoginFailure, ActorID: "u-2", Result: ResultFailure})
	engine.Close()

	if got := engine.AuditHealth().FallbackWrites; got != 2 {
		t.Fatalf("fallback writes = %d, want 2", got)
	}

	lines := strings.Split(strings.TrimSpace(fallback.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("fallback lines = %d, want 3", len(lines))
	}
	markers := 0
	for _, line := range lines {
		var entry AuditEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("fallback line is not JSON: %v", err)
		}
		if entry.EventType == EventAuditFallbackEngaged {
			markers++
		}
	}
	if markers != 1 {
		t.Fatalf("engagement markers = %d, want 1", markers)
	}
}

func TestAuditSinkReceivesDispatchedEntries(t *testing.T) {
	_, client := newTestRedis(t)
	repo := newMemAuditRepo()
	sink := NewChannelSink(8)

	builder := New().
		WithRedis(client).
		WithAuditRepository(repo).
		WithAuditSink(sink)
	builder.config.Sweep.Enabled = false

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	engine.LogEvent(context.Background(), AuditEntry{EventType: EventLoginSuccess, ActorID: "u-1"})
	engine.Close()

	select {
	case entry := <-sink.Entries():
		if entry.EventType != EventLoginSuccess || entry.ActorID != "u-1" {
			t.Fatalf("sink entry = %+v", entry)
		}
	default:
		t.Fatal("attached sink received nothing")
	}

	// The repository still receives every entry: the attached sink is a tee,
	// not a replacement.
	if got := repo.byEvent(EventLoginSuccess); len(got) != 1 {
		t.Fatalf("repository entries = %d, want 1", len(got))
	}
}

func TestQueryLogsAppliesDefaultLimit(t *testing.T) {
	engine, _ := newTestEngine(t, withConfigTweak(func(c *Config) {
		c.Audit.QueryLimit = 5
	}))
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		engine.LogEvent(ctx, AuditEntry{EventType: EventLoginSuccess, ActorID: "u-1"})
	}
	engine.Close()

	got, err := engine.QueryLogs(ctx, AuditFilter{})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("default page = %d entries, want 5", len(got))
	}

	all, err := engine.QueryLogs(ctx, AuditFilter{Limit: 100})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if len(all) != 8 {
		t.Fatalf("explicit limit page = %d entries, want 8", len(all))
	}
}

func TestMarkAsReviewedClosesOutEntry(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	engine.LogEvent(ctx, AuditEntry{
		ID:        "flagged-1",
		EventType: EventSuspiciousActivity,
		ActorID:   "u-1",
		Result:    ResultDenied,
	})
	// Drain the dispatcher so the entry is queryable.
	engine.audit.Close()

	before, err := engine.auditRepo.Get(ctx, "flagged-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !before.RequiresReview {
		t.Fatal("suspicious denial must require review")
	}

	reviewed, err := engine.MarkAsReviewed(ctx, "flagged-1", "analyst-1", "confirmed benign")
	if err != nil {
		t.Fatalf("MarkAsReviewed: %v", err)
	}
	if reviewed.ReviewedBy != "analyst-1" || reviewed.RequiresReview {
		t.Fatalf("review not applied: %+v", reviewed)
	}
	if reviewed.ReviewNotes != "confirmed benign" {
		t.Fatalf("notes = %q", reviewed.ReviewNotes)
	}

	// The review itself lands on the trail; Close has already run on the
	// dispatcher, so check the synchronous metric instead.
	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricAuditReviewed] != 1 {
		t.Fatalf("reviewed metric = %d, want 1", snap.Counters[MetricAuditReviewed])
	}
}

func TestMarkAsReviewedValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.MarkAsReviewed(ctx, "any", "", "notes"); !errors.Is(err, ErrInvalidReviewer) {
		t.Fatalf("empty reviewer = %v, want ErrInvalidReviewer", err)
	}
	if _, err := engine.MarkAsReviewed(ctx, "missing", "analyst-1", ""); !errors.Is(err, ErrAuditEntryNotFound) {
		t.Fatalf("unknown entry = %v, want ErrAuditEntryNotFound", err)
	}
}

func TestHighRiskEntriesTriggerAlerts(t *testing.T) {
	_, client := newTestRedis(t)
	repo := newMemAuditRepo()

	var (
		mu      sync.Mutex
		alerted []AuditEntry
	)
	done := make(chan struct{}, 4)

	builder := New().
		WithRedis(client).
		WithAuditRepository(repo).
		WithAlertFunc(func(entry AuditEntry) {
			mu.Lock()
			alerted = append(alerted, entry)
			mu.Unlock()
			done <- struct{}{}
		}).
		WithMetricsEnabled(true)
	builder.config.Sweep.Enabled = false

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	// LOW risk: no alert.
	engine.LogEvent(ctx, AuditEntry{EventType: EventLoginSuccess, ActorID: "u-1"})
	// HIGH risk: alert fires.
	engine.LogEvent(ctx, AuditEntry{EventType: EventRoleAssigned, ActorID: "u-1", RoleTo: "admin"})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("alert never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(alerted) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerted))
	}
	if alerted[0].EventType != EventRoleAssigned {
		t.Fatalf("alerted on %s", alerted[0].EventType)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricAuditAlert] != 1 {
		t.Fatalf("alert metric = %d, want 1", snap.Counters[MetricAuditAlert])
	}
}

func TestAuditDisabledIsInert(t *testing.T) {
	engine, repo := newTestEngine(t, withConfigTweak(func(c *Config) {
		c.Audit.Enabled = false
	}))

	engine.LogEvent(context.Background(), AuditEntry{EventType: EventLoginSuccess, ActorID: "u-1"})
	engine.Close()

	if len(repo.byEvent(EventLoginSuccess)) != 0 {
		t.Fatal("disabled audit still persisted an entry")
	}
}
