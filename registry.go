package procvar

import (
	"context"
	"fmt"
)

// A TypeRegistry holds an ordered list of variable types and implements the
// two selection protocols of the variable service:
//
//   - Write-time selection picks the first registered type (in registration
//     order) whose IsAbleToStore accepts the value being stored. Order is
//     significant: more specific types are expected to precede the opaque
//     catch-all serializable type.
//
//   - Read-time selection matches the persisted type name exactly. A missing
//     match is an UnknownTypeError; there is no silent fallback, because a
//     payload is only meaningful to the codec that produced it.
//
// A TypeRegistry is populated once during setup and must not be modified while
// in use. The zero value is an empty registry ready for registration.
type TypeRegistry struct {
	types  []VariableType
	byName map[string]VariableType
}

// NewTypeRegistry returns a registry holding the given types, selected in the
// given order.
func NewTypeRegistry(types ...VariableType) *TypeRegistry {
	r := &TypeRegistry{}
	for _, t := range types {
		r.Register(t)
	}
	return r
}

// DefaultRegistry returns the standard codec line-up: null, string and int64
// values are stored natively, and everything else falls through to the given
// serializable catch-all, which therefore comes last.
func DefaultRegistry(serializable *SerializableType) *TypeRegistry {
	return NewTypeRegistry(NullType{}, StringType{}, Int64Type{}, serializable)
}

// Register appends the given type to the registry's selection order.
//
// It panics on a duplicate type name: two codecs persisting under the same
// name would make read-time selection ambiguous, which is a programming error
// on the same level as registering duplicate labels for object types.
func (r *TypeRegistry) Register(t VariableType) {
	name := t.TypeName()
	if _, dup := r.byName[name]; dup {
		panic(fmt.Sprintf("procvar: registering duplicate variable type %q", name))
	}
	if r.byName == nil {
		r.byName = make(map[string]VariableType)
	}
	r.byName[name] = t
	r.types = append(r.types, t)
}

// ForValue returns the first registered type that accepts the given value.
// The value must not be nil.
func (r *TypeRegistry) ForValue(value any) (VariableType, bool) {
	for _, t := range r.types {
		if t.IsAbleToStore(value) {
			return t, true
		}
	}
	return nil, false
}

// ForName returns the type registered under exactly the given type name.
func (r *TypeRegistry) ForName(typeName string) (VariableType, bool) {
	t, ok := r.byName[typeName]
	return t, ok
}

// SetVariable stores the given value into the holder: it selects the owning
// codec, delegates the encoding, and stamps the codec's type name onto the
// holder so the same codec is re-selected on every read.
//
// A nil value is not an acceptability question; it clears the holder through
// the null type. Storing nil into a registry without a null type is an error.
func (r *TypeRegistry) SetVariable(ctx context.Context, fields ValueFields, value any) error {
	var t VariableType
	var ok bool
	if value == nil {
		// Nothing to store. Never consult IsAbleToStore with nil.
		t, ok = r.ForName(TypeNameNull)
		if !ok {
			return fmt.Errorf("clear variable %q: no %q type registered", fields.Name(), TypeNameNull)
		}
	} else {
		t, ok = r.ForValue(value)
		if !ok {
			return fmt.Errorf("store variable %q: no variable type accepts %T", fields.Name(), value)
		}
	}
	if err := t.SetValue(ctx, value, fields); err != nil {
		return err
	}
	fields.SetTypeName(t.TypeName())
	return nil
}

// GetVariable reads the holder's value by resolving the codec recorded in the
// holder's type name and delegating the decoding to it.
//
// A holder that was never written (empty type name, nil bytes) yields nil.
func (r *TypeRegistry) GetVariable(ctx context.Context, fields ValueFields) (any, error) {
	typeName := fields.TypeName()
	if typeName == "" && fields.Bytes() == nil {
		return nil, nil
	}
	t, ok := r.ForName(typeName)
	if !ok {
		return nil, &UnknownTypeError{Variable: fields.Name(), TypeName: typeName}
	}
	return t.GetValue(ctx, fields)
}
