package procvar

import (
	"context"
	"encoding/binary"
	"fmt"
)

// VariableType is the capability set a codec must provide to own variable
// values: produce bytes from a value, produce a value from bytes, test whether
// a value is acceptable, and report a stable type name.
//
// Implementations are registered with a TypeRegistry, which selects the codec
// for a value at write time and resolves the codec for a persisted type name
// at read time.
type VariableType interface {
	// TypeName returns the stable name persisted alongside this type's
	// payloads. It must never change once payloads exist, as it is the only
	// way to find the codec that can decode them.
	TypeName() string

	// IsAbleToStore reports whether this type can encode the given value.
	// Callers never pass a nil value: "nothing to store" is handled separately
	// from acceptability.
	IsAbleToStore(value any) bool

	// SetValue encodes the value and synchronously updates both the cached
	// value and the persisted bytes of the given holder. On failure the
	// holder is left untouched.
	SetValue(ctx context.Context, value any, fields ValueFields) error

	// GetValue returns the holder's value, materialising it from bytes when no
	// cached value exists yet.
	GetValue(ctx context.Context, fields ValueFields) (any, error)
}

// TypeNameNull is the type name recorded for variables holding no value.
const TypeNameNull = "null"

// NullType stores nothing. It is selected for variables whose value was
// cleared; reading such a variable yields nil without consulting any payload.
type NullType struct{}

func (NullType) TypeName() string { return TypeNameNull }

func (NullType) IsAbleToStore(value any) bool { return value == nil }

func (NullType) SetValue(_ context.Context, _ any, fields ValueFields) error {
	fields.SetBytes(nil)
	fields.SetCachedValue(nil)
	return nil
}

func (NullType) GetValue(context.Context, ValueFields) (any, error) {
	return nil, nil
}

// StringType persists string values as their raw UTF-8 bytes.
type StringType struct{}

func (StringType) TypeName() string { return "string" }

func (StringType) IsAbleToStore(value any) bool {
	_, ok := value.(string)
	return ok
}

func (StringType) SetValue(_ context.Context, value any, fields ValueFields) error {
	s, ok := value.(string)
	if !ok {
		return &SerializationError{Variable: fields.Name(), Err: fmt.Errorf("not a string: %T", value)}
	}
	fields.SetBytes([]byte(s))
	fields.SetCachedValue(s)
	return nil
}

func (StringType) GetValue(_ context.Context, fields ValueFields) (any, error) {
	b := fields.Bytes()
	if b == nil {
		return nil, nil
	}
	return string(b), nil
}

// Int64Type persists int64 values as 8 fixed big-endian bytes.
type Int64Type struct{}

func (Int64Type) TypeName() string { return "int64" }

func (Int64Type) IsAbleToStore(value any) bool {
	_, ok := value.(int64)
	return ok
}

func (Int64Type) SetValue(_ context.Context, value any, fields ValueFields) error {
	n, ok := value.(int64)
	if !ok {
		return &SerializationError{Variable: fields.Name(), Err: fmt.Errorf("not an int64: %T", value)}
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	fields.SetBytes(b)
	fields.SetCachedValue(n)
	return nil
}

func (Int64Type) GetValue(_ context.Context, fields ValueFields) (any, error) {
	b := fields.Bytes()
	if b == nil {
		return nil, nil
	}
	if len(b) != 8 {
		return nil, &DeserializationError{
			Variable: fields.Name(),
			Err:      fmt.Errorf("payload is %d bytes instead of 8", len(b)),
		}
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}
