// Package rate implements the core in-memory rate limit primitive: per-identifier
// attempt counters with progressive delay, lockout, CAPTCHA escalation, and
// suspicious-activity markers.
//
// # Concurrency model
//
// All state lives in mutex-guarded maps keyed by identifier. Check-then-record
// sequences are atomic per call; callers that need check+record atomicity across
// both operations hold no lock here — Check never consumes attempts, so a racing
// Check cannot bypass a lockout recorded in between.
//
// Expiry is lazy: Check treats stale records and expired markers as absent, and a
// periodic Sweep reclaims the memory. No timers are scheduled per record.
//
// # What this package must NOT do
//
//   - Perform I/O of any kind.
//   - Import sessionguard or any sibling internal package.
package rate
