// Package audit implements the append-only audit record model, automatic risk
// classification, and async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Entry] — structured audit record with derived risk/confidence/review fields.
//   - [Finalize] — deterministic scoring over an Entry (risk level, confidence,
//     requires-review), applied once at creation.
//   - [Sink] — interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher] — buffered async relay with drop-if-full / block-if-full semantics.
//
// # Architecture boundaries
//
// This package owns the record shape, scoring, buffering, and sink delivery. It does
// NOT decide which events to emit — that responsibility belongs to the Engine — and
// it does not persist anything; persistence lives behind the repository contract.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import sessionguard or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
