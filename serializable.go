package procvar

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"reflect"
	"slices"

	"github.com/danielorbach/go-component"
)

// SerializableTypeName is the type name under which the opaque binary codec
// persists its payloads.
const SerializableTypeName = "serializable"

// SerializableType is the catch-all codec for structured values: anything
// whose type was registered with an object registry (see Register and
// RegisterLabel) can be persisted as an opaque binary payload.
//
// Payloads are self-describing. Each one opens with the registered label of
// the value's type, so the reading process can materialise the correct Go type
// without any out-of-band agreement beyond a shared registry. Values decode as
// pointers: callers receive a *T they may mutate in place, and with
// TrackObjects enabled such mutations are detected and flushed when the
// surrounding unit of work closes.
//
// A SerializableType is configured once during setup and must not be modified
// while in use.
type SerializableType struct {
	// TrackObjects arms mutation detection for values handed out by this codec.
	// Whenever a value is read from or written into a *VariableInstance inside a
	// unit of work, a verification listener is registered on that unit of work;
	// when the unit of work closes, the value is re-encoded and compared against
	// the payload captured at hand-out time, and the holder is flushed on a
	// mismatch.
	TrackObjects bool

	// Resolver translates between payload labels and Go types. When nil, the
	// process-wide object registry populated by Register and RegisterLabel is
	// used.
	Resolver TypeResolver

	// Recoverable names variables whose payloads may legitimately fail to
	// decode, typically because they were written by a process that registers
	// types this one does not. Reading such a variable yields nil instead of a
	// DeserializationError; the incident is logged and counted, never silent.
	Recoverable []string
}

func (t *SerializableType) TypeName() string { return SerializableTypeName }

// IsAbleToStore reports whether the value's type carries a registered label.
// Only labelled types are acceptable, because the label is the first thing
// written into every payload.
func (t *SerializableType) IsAbleToStore(value any) bool {
	if value == nil {
		return false
	}
	_, ok := t.resolver().LabelOf(indirectType(reflect.TypeOf(value)))
	return ok
}

// SetValue encodes the value into the holder's payload and caches the live
// value on the holder. On encoding failure the holder is left untouched.
func (t *SerializableType) SetValue(ctx context.Context, value any, fields ValueFields) error {
	b, err := t.encode(value)
	if err != nil {
		return &SerializationError{Variable: fields.Name(), Err: err}
	}
	fields.SetBytes(b)
	fields.SetCachedValue(value)
	t.track(ctx, fields, value, b)
	return nil
}

// GetValue returns the holder's value, decoding the payload only when no
// cached value exists yet. Repeated reads of the same holder return the same
// live reference, so callers observing each other's mutations is expected
// behaviour rather than a caching artefact.
func (t *SerializableType) GetValue(ctx context.Context, fields ValueFields) (any, error) {
	if cached := fields.CachedValue(); cached != nil {
		return cached, nil
	}
	b := fields.Bytes()
	if b == nil {
		return nil, nil
	}
	value, err := t.decodeEnvelope(b)
	if err != nil {
		if slices.Contains(t.Recoverable, fields.Name()) {
			// The payload was written by a process that knows types this one
			// does not. Degrade to an absent value instead of poisoning every
			// read of the surrounding scope.
			component.Logger(ctx).Error("cannot deserialize recoverable variable",
				"variable", fields.Name(),
				"error", err,
			)
			measureRecoveredDecode(ctx, fields.Name())
			return nil, nil
		}
		return nil, &DeserializationError{Variable: fields.Name(), Err: err}
	}
	fields.SetCachedValue(value)
	t.track(ctx, fields, value, b)
	return value, nil
}

// encode produces the framed payload for a value: the registered label of the
// value's type, length-prefixed, followed by the gob encoding of the value
// itself.
//
// Pointers are flattened before encoding, so encoding a *T and encoding the T
// it points at produce identical bytes. This matters for mutation detection,
// where payloads captured at different moments are compared byte for byte.
func (t *SerializableType) encode(value any) ([]byte, error) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot encode nil %s", rv.Type())
		}
		rv = rv.Elem()
	}

	label, ok := t.resolver().LabelOf(rv.Type())
	if !ok {
		return nil, fmt.Errorf("no label registered for %s", rv.Type())
	}

	var buf bytes.Buffer
	buf.Write(binary.AppendUvarint(nil, uint64(len(label))))
	buf.WriteString(label)
	// A fresh encoder per payload keeps payloads self-contained: gob emits
	// type descriptors into the first message of a stream, and sharing a
	// stream across payloads would make each one depend on its predecessors.
	if err := gob.NewEncoder(&buf).EncodeValue(rv); err != nil {
		return nil, fmt.Errorf("encode %s: %w", rv.Type(), err)
	}
	return buf.Bytes(), nil
}

// decodeEnvelope materialises a framed payload into a fresh value. The
// returned value is always a pointer to the labelled type.
func (t *SerializableType) decodeEnvelope(b []byte) (any, error) {
	r := bytes.NewReader(b)
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("read label length: %w", err)
	}
	if n > uint64(r.Len()) {
		return nil, fmt.Errorf("read label: %w", io.ErrUnexpectedEOF)
	}
	label := make([]byte, n)
	if _, err := io.ReadFull(r, label); err != nil {
		return nil, fmt.Errorf("read label: %w", err)
	}

	rt, ok := t.resolver().TypeOf(string(label))
	if !ok {
		return nil, fmt.Errorf("no type registered for label %q", label)
	}

	rv := reflect.New(rt)
	if err := gob.NewDecoder(r).DecodeValue(rv.Elem()); err != nil {
		return nil, fmt.Errorf("decode %s: %w", rt, err)
	}
	return rv.Interface(), nil
}

// track arms mutation detection for a value that was just handed out or
// stored. Only persistent variable instances participate; transient holders
// and reads outside any unit of work are skipped.
func (t *SerializableType) track(ctx context.Context, fields ValueFields, value any, payload []byte) {
	if !t.TrackObjects {
		return
	}
	instance, ok := fields.(*VariableInstance)
	if !ok {
		return
	}
	uow := FromContext(ctx)
	if uow == nil {
		return
	}
	uow.RegisterCloseListener(&DeserializedObject{
		codec:    t,
		value:    value,
		bytes:    payload,
		instance: instance,
	})
}

func (t *SerializableType) resolver() TypeResolver {
	if t.Resolver != nil {
		return t.Resolver
	}
	return DefaultResolver()
}
