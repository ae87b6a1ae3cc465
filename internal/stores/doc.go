// Package stores contains Redis-backed persistence adapters behind the
// engine's repository contracts. Currently: the append-only audit log
// repository (insert, filtered query, review update, retention archiving).
//
// # What this package must NOT do
//
//   - Classify or score entries (internal/audit owns scoring).
//   - Drop an entry that was handed to it without reporting the failure.
package stores
