package sessionguard

import (
	"context"
	"fmt"
	"testing"
)

func resetTestContext(ip string) context.Context {
	ctx := WithClientIP(context.Background(), ip)
	return WithUserAgent(ctx, "Mozilla/5.0 (X11; Linux x86_64)")
}

func noDelayReset(c *Config) {
	c.PasswordReset.BaseDelay = 0
}

func TestCheckResetRequestAllowsFreshEmail(t *testing.T) {
	engine, _ := newTestEngine(t, withConfigTweak(noDelayReset))

	got := engine.CheckResetRequest(resetTestContext("203.0.113.1"), "alice@example.com")
	if !got.Allowed || got.Reason != "" {
		t.Fatalf("fresh email = %+v", got)
	}
	if got.Metadata["user_agent"] == "" {
		t.Fatal("user agent missing from metadata")
	}
}

func TestEmailScopeDeniesAtEngineLevel(t *testing.T) {
	engine, repo := newTestEngine(t, withConfigTweak(noDelayReset))
	ctx := resetTestContext("203.0.113.1")

	for i := 0; i < 3; i++ {
		engine.RecordResetRequest(ctx, "alice@example.com")
	}

	got := engine.CheckResetRequest(ctx, "alice@example.com")
	if got.Allowed {
		t.Fatal("fourth request within the window must deny")
	}
	if got.Reason != ReasonEmailRateLimit {
		t.Fatalf("reason = %q, want %q", got.Reason, ReasonEmailRateLimit)
	}

	// A different email from the same IP is still fine: 3 requests are far
	// below the per-IP ceiling.
	if got := engine.CheckResetRequest(ctx, "bob@example.com"); !got.Allowed {
		t.Fatalf("unrelated email denied: %+v", got)
	}

	engine.Close()
	if got := repo.byEvent(EventPasswordResetRequest); len(got) != 3 {
		t.Fatalf("password_reset_request entries = %d, want 3", len(got))
	}
	if got := repo.byEvent(EventRateLimitTriggered); len(got) != 1 {
		t.Fatalf("rate_limit_triggered entries = %d, want 1", len(got))
	}
}

func TestIPScopeDeniesAcrossEmails(t *testing.T) {
	engine, _ := newTestEngine(t, withConfigTweak(func(c *Config) {
		noDelayReset(c)
		// Keep the email scope out of the way.
		c.PasswordReset.MaxRequestsPerEmail = 100
		c.PasswordReset.SuspiciousRequestThreshold = 0
		c.PasswordReset.SuspiciousActivityCooldown = 0
	}))
	ctx := resetTestContext("203.0.113.1")

	for i := 0; i < 10; i++ {
		engine.RecordResetRequest(ctx, "victim@example.com")
	}

	got := engine.CheckResetRequest(ctx, "someone-else@example.com")
	if got.Allowed {
		t.Fatal("IP over its ceiling must deny any email")
	}
	if got.Reason != ReasonIPRateLimit {
		t.Fatalf("reason = %q, want %q", got.Reason, ReasonIPRateLimit)
	}

	// A different IP is unaffected.
	other := resetTestContext("203.0.113.99")
	if got := engine.CheckResetRequest(other, "someone-else@example.com"); !got.Allowed {
		t.Fatalf("different IP denied: %+v", got)
	}
}

func TestMissingClientIPSkipsIPScope(t *testing.T) {
	engine, _ := newTestEngine(t, withConfigTweak(func(c *Config) {
		noDelayReset(c)
		c.PasswordReset.SuspiciousRequestThreshold = 0
		c.PasswordReset.SuspiciousActivityCooldown = 0
	}))
	// No WithClientIP: requests without a known IP must not pool into a
	// shared per-tenant IP bucket.
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		engine.RecordResetRequest(ctx, fmt.Sprintf("user%d@example.com", i))
	}

	if got := engine.CheckResetRequest(ctx, "fresh@example.com"); !got.Allowed {
		t.Fatalf("fresh email denied without an IP: %+v", got)
	}

	// A caller that does carry an IP still hits the IP ceiling.
	withIP := resetTestContext("203.0.113.1")
	for i := 0; i < 10; i++ {
		engine.RecordResetRequest(withIP, fmt.Sprintf("other%d@example.com", i))
	}
	got := engine.CheckResetRequest(withIP, "fresh@example.com")
	if got.Allowed || got.Reason != ReasonIPRateLimit {
		t.Fatalf("IP-carrying caller = %+v, want %q denial", got, ReasonIPRateLimit)
	}
}

func TestSuspiciousMarkerAuditsAndDenies(t *testing.T) {
	engine, repo := newTestEngine(t, withConfigTweak(func(c *Config) {
		noDelayReset(c)
		// Raise the hard scope caps so only the marker can deny.
		c.PasswordReset.MaxRequestsPerEmail = 100
		c.PasswordReset.MaxRequestsPerIP = 100
	}))
	ctx := resetTestContext("203.0.113.1")

	// Default suspicious threshold is 5 requests.
	for i := 0; i < 5; i++ {
		engine.RecordResetRequest(ctx, "alice@example.com")
	}

	got := engine.CheckResetRequest(ctx, "alice@example.com")
	if got.Allowed {
		t.Fatal("tripped marker must deny")
	}
	if got.Reason != ReasonSuspiciousActivity {
		t.Fatalf("reason = %q, want %q", got.Reason, ReasonSuspiciousActivity)
	}

	engine.Close()
	entries := repo.byEvent(EventSuspiciousActivity)
	if len(entries) != 1 {
		t.Fatalf("suspicious_activity entries = %d, want 1", len(entries))
	}
	if entries[0].Result != ResultDenied {
		t.Fatalf("result = %s, want DENIED", entries[0].Result)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricSuspiciousDenied] != 1 {
		t.Fatalf("suspicious denials = %d, want 1", snap.Counters[MetricSuspiciousDenied])
	}
}

func TestFailedResetCountsAtHalfWeight(t *testing.T) {
	engine, repo := newTestEngine(t, withConfigTweak(func(c *Config) {
		noDelayReset(c)
		c.PasswordReset.SuspiciousRequestThreshold = 0
		c.PasswordReset.SuspiciousActivityCooldown = 0
	}))
	ctx := resetTestContext("203.0.113.1")

	// Five probes at half weight total 2.5 attempts, still under the email
	// ceiling of 3.
	for i := 0; i < 5; i++ {
		engine.RecordFailedReset(ctx, "unknown@example.com", "email not registered")
	}
	if got := engine.CheckResetRequest(ctx, "unknown@example.com"); !got.Allowed {
		t.Fatalf("2.5 attempts denied: %+v", got)
	}

	// One more crosses 3.
	engine.RecordFailedReset(ctx, "unknown@example.com", "email not registered")
	if got := engine.CheckResetRequest(ctx, "unknown@example.com"); got.Allowed {
		t.Fatal("3.0 attempts allowed")
	}

	engine.Close()
	failures := repo.byEvent(EventPasswordResetFailure)
	if len(failures) != 6 {
		t.Fatalf("password_reset_failure entries = %d, want 6", len(failures))
	}
	if failures[0].Reason != "email not registered" {
		t.Fatalf("reason = %q", failures[0].Reason)
	}
}

func TestTenantsDoNotShareResetState(t *testing.T) {
	engine, _ := newTestEngine(t, withConfigTweak(noDelayReset))

	ctxA := WithTenantID(resetTestContext("203.0.113.1"), "tenant-a")
	ctxB := WithTenantID(resetTestContext("203.0.113.1"), "tenant-b")

	for i := 0; i < 3; i++ {
		engine.RecordResetRequest(ctxA, "alice@example.com")
	}

	if got := engine.CheckResetRequest(ctxA, "alice@example.com"); got.Allowed {
		t.Fatal("tenant-a email must be denied")
	}
	if got := engine.CheckResetRequest(ctxB, "alice@example.com"); !got.Allowed {
		t.Fatal("tenant-b email must be unaffected")
	}
}

func TestCheckResetRequestIsPure(t *testing.T) {
	engine, _ := newTestEngine(t, withConfigTweak(noDelayReset))
	ctx := resetTestContext("203.0.113.1")

	for i := 0; i < 50; i++ {
		if got := engine.CheckResetRequest(ctx, "alice@example.com"); !got.Allowed {
			t.Fatalf("check #%d consumed quota: %+v", i+1, got)
		}
	}
}
