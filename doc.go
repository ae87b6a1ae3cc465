// Package sessionguard provides a session-security and abuse-prevention
// engine: multi-scope rate limiting with progressive delays and CAPTCHA
// escalation, device-fingerprint anomaly detection, session risk scoring
// with concurrent-session and re-authentication policy, and an append-only
// audit trail with automatic risk classification and review workflow.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// sessionguard is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (SessionVerdict, ResetCheckResult, AuditEntry,
// etc.). All internal coordination — limiter state, fingerprint registry,
// audit classification and dispatch, complexity heuristics — lives under
// internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or limiter record shapes in its
//     public API.
//   - Block an authentication or reset flow on telemetry persistence: audit
//     writes are asynchronous and recover locally on repository failure.
//   - Throw on policy denials. Rate limits, CAPTCHA escalation, and invalid
//     verdicts are structured result values; errors are reserved for backend
//     unavailability and configuration mistakes.
//
// # Performance contract
//
// CheckRateLimit, CheckResetRequest, and CheckDeviceChange are in-memory and
// must not perform I/O. ValidateSession is allowed the session-store
// round-trips it needs (lookup plus concurrent-session count) and nothing
// else; its audit entry rides the async dispatcher.
package sessionguard
