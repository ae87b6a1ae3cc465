// Package complexity derives operational risk analytics from session
// validation history: a dependency graph between observed signal sources
// (fingerprint stability, IP stability, concurrent sessions, security score)
// and the controls they feed, with critical paths, derived vulnerabilities,
// and a capped 0-100 complexity score.
//
// Results are point-in-time aggregates cached per identifier with a short
// TTL; this package is advisory and never sits on the live decision path.
package complexity
