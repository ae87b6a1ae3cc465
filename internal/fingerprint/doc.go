// Package fingerprint derives deterministic device fingerprints from client
// attributes and tracks known devices per identifier for new-device detection.
//
// The hash is a 32-bit rolling hash over the JSON serialization of the
// attributes, matching what fingerprinting clients compute in the browser, so
// hashes agree across the wire.
//
// # What this package must NOT do
//
//   - Block callers on notification delivery.
//   - Import sessionguard or any sibling internal package.
package fingerprint
