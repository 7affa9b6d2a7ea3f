package procvar

import (
	"errors"
	"fmt"
)

// ErrVariableNotFound is returned by VariableStore implementations when the
// requested scope and name combination has no persisted variable.
var ErrVariableNotFound = errors.New("variable not found")

// A SerializationError occurs when a value accepted by a variable type cannot
// be encoded into its binary payload, usually because a member of the value's
// object graph has no binary representation.
//
// Encoding is all-or-nothing: when a SerializationError is returned, the
// holder's existing bytes are left untouched.
type SerializationError struct {
	Variable string // name of the variable whose value failed to encode
	Err      error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize value of variable %q: %v", e.Variable, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// A DeserializationError occurs when a persisted payload cannot be decoded
// back into a live value, either because the bytes are corrupt or because the
// recorded type label cannot be resolved to a Go type in this process.
type DeserializationError struct {
	Variable string // name of the variable whose payload failed to decode
	Err      error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialize variable %q: %v", e.Variable, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// An UnknownTypeError occurs when a variable was persisted with a type name
// that has no registered variable type on the reading side. There is no
// default codec to fall back to: the persisted payload is only meaningful to
// the codec that produced it.
type UnknownTypeError struct {
	Variable string // name of the variable being read
	TypeName string // persisted type name with no registered codec
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("variable %q persisted with unknown type %q", e.Variable, e.TypeName)
}
