package procvar

import "github.com/google/uuid"

// ValueFields is the addressable container for one named variable. It couples
// the variable's durable representation (a type name and a binary payload)
// with a transient cached value that is never persisted.
//
// At most one variable type is bound to a ValueFields at a time; the type name
// travels alongside the bytes so the correct codec is re-selected on every
// read.
type ValueFields interface {
	// Name returns the variable's stable identifier within its owning scope.
	Name() string

	// TypeName names the variable type that produced the current bytes.
	TypeName() string
	SetTypeName(name string)

	// Bytes is the persisted binary payload. A nil payload means the variable
	// holds no value.
	Bytes() []byte
	SetBytes(b []byte)

	// CachedValue is the in-memory materialisation of the bytes, if any. It is
	// a live reference shared with caller code and must never be persisted
	// directly.
	CachedValue() any
	SetCachedValue(v any)
}

// A VariableInstance is the persistent entity behind a process variable. It is
// the only ValueFields implementation whose decoded values are verified
// against their persisted bytes when a unit of work closes; any other
// implementation is silently skipped by the tracking machinery.
//
// A VariableInstance belongs to exactly one scope (e.g. a process instance or
// a task). The scope identifier is opaque to this package; stores use it to
// partition variables.
type VariableInstance struct {
	id       string
	scopeID  string
	name     string
	typeName string
	bytes    []byte
	cached   any
}

// NewVariableInstance returns an empty variable instance owned by the given
// scope. A fresh unique identifier is assigned to it.
func NewVariableInstance(scopeID, name string) *VariableInstance {
	return &VariableInstance{
		id:      uuid.NewString(),
		scopeID: scopeID,
		name:    name,
	}
}

// RestoreVariableInstance reconstructs a variable instance from its persisted
// fields. Stores call this when loading; the cached value starts out empty and
// is materialised lazily by the variable type on the first read.
func RestoreVariableInstance(id, scopeID, name, typeName string, bytes []byte) *VariableInstance {
	return &VariableInstance{
		id:       id,
		scopeID:  scopeID,
		name:     name,
		typeName: typeName,
		bytes:    bytes,
	}
}

// ID returns the instance's unique identifier. It is stable across loads of
// the same persisted variable.
func (v *VariableInstance) ID() string { return v.id }

// ScopeID identifies the entity owning this variable. It is opaque to this
// package.
func (v *VariableInstance) ScopeID() string { return v.scopeID }

func (v *VariableInstance) Name() string             { return v.name }
func (v *VariableInstance) TypeName() string         { return v.typeName }
func (v *VariableInstance) SetTypeName(name string)  { v.typeName = name }
func (v *VariableInstance) Bytes() []byte            { return v.bytes }
func (v *VariableInstance) SetBytes(b []byte)        { v.bytes = b }
func (v *VariableInstance) CachedValue() any         { return v.cached }
func (v *VariableInstance) SetCachedValue(value any) { v.cached = value }
