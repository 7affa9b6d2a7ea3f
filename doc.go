// Package procvar persists process variables; A process variable is a named,
// typed value attached to some scope of a long-running process (a process
// instance, a task, an execution) and durable across the restarts of the
// program operating on it.
//
// Values cross the persistence boundary through variable types: small codecs
// that each own one kind of value and translate it to and from a binary
// payload. A TypeRegistry selects the codec for a value when it is written and
// resolves the codec recorded alongside the payload when it is read back.
// Structured values fall through to SerializableType, an opaque catch-all that
// frames each payload with the registered label of its Go type.
//
// Decoded structured values are live references. Callers may mutate them in
// place without writing them back explicitly: work happens inside a UnitOfWork
// (see Run), and when it closes every value handed out under it is re-encoded
// and compared against the payload it was handed out with. Holders whose
// payloads diverged are flushed to the store automatically.
package procvar
