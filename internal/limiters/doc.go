// Package limiters layers the core rate primitive into the password-reset
// policy: independent email, IP, and global scopes evaluated in strict order,
// plus suspicious-activity markers that deny regardless of counter state.
//
// # What this package must NOT do
//
//   - Emit audit events or metrics (the Engine owns telemetry).
//   - Import sessionguard; only internal/rate is a permitted dependency.
package limiters
