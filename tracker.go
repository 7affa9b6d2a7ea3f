package procvar

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"time"
)

// A DeserializedObject is the verification listener guarding one hand-out of a
// serializable value. It captures the payload the value had when it left the
// codec; when the unit of work closes, the live value is re-encoded and
// compared against that snapshot. A mismatch means the caller mutated the
// value in place, and the holder is flushed with the new payload.
//
// The same holder may be guarded by several DeserializedObjects within one
// unit of work, one per hand-out, each comparing against its own snapshot.
// Listeners fire in registration order, so the flush reflecting the latest
// snapshot wins.
type DeserializedObject struct {
	codec    *SerializableType
	value    any
	bytes    []byte
	instance *VariableInstance

	fired bool
}

// Closing re-encodes the guarded value and flushes the holder when the value
// no longer matches the snapshot captured at hand-out time. It does nothing on
// subsequent invocations.
//
// The comparison is two-staged. Identical bytes always mean an unchanged
// value. Differing bytes do not prove a mutation on their own, because gob
// writes map keys in unspecified order; the snapshot is then decoded and
// compared structurally against the live value, so unchanged map-bearing
// values are never flushed spuriously.
func (d *DeserializedObject) Closing(ctx context.Context, uow *UnitOfWork) error {
	if d.fired {
		return nil
	}
	d.fired = true

	start := time.Now()
	current, err := d.codec.encode(d.value)
	if err != nil {
		return fmt.Errorf("verify variable %q: %w", d.instance.Name(), err)
	}
	dirty := !bytes.Equal(current, d.bytes)
	if dirty {
		// Confirm structurally before flushing. An undecodable snapshot
		// counts as dirty: the freshly encoded payload is authoritative.
		if snapshot, err := d.codec.decodeEnvelope(d.bytes); err == nil && equalValues(snapshot, d.value) {
			dirty = false
		}
	}
	measureVerification(ctx, d.instance.Name(), dirty, time.Since(start))
	if !dirty {
		return nil
	}

	d.instance.SetBytes(current)
	if err := uow.MarkUpdated(ctx, d.instance); err != nil {
		return fmt.Errorf("flush variable %q: %w", d.instance.Name(), err)
	}
	return nil
}

// equalValues compares two decoded values structurally, indirecting pointers
// first: the codec hands out *T while callers may have stored a plain T.
func equalValues(a, b any) bool {
	return reflect.DeepEqual(indirectValue(a), indirectValue(b))
}

func indirectValue(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv.Interface()
}
