package procvar

import (
	"fmt"
	"reflect"
	"sync"
)

// A TypeResolver locates Go types for the labels recorded inside serialized
// payloads, and vice versa. It is the injectable seam between the serializable
// codec and whatever registration mechanism the host process uses: payloads
// written by types unknown to the default registry can still be decoded by
// supplying a resolver that knows where to find them.
type TypeResolver interface {
	// TypeOf returns the Go type registered for the given label.
	TypeOf(label string) (rt reflect.Type, ok bool)
	// LabelOf returns the label registered for the given Go type.
	LabelOf(rt reflect.Type) (label string, ok bool)
}

// globalObjectRegistry is global for the entire process. The type system put
// forth by this package asserts any Go type maps to exactly one payload label;
// to support (read & write) that Go type as a serialized variable value.
var globalObjectRegistry objectRegistry

type objectRegistry struct {
	mLabelToType sync.Map // map[string]reflect.Type
	mTypeToLabel sync.Map // map[reflect.Type]string
}

// Register may cause panics, when used from different packages on structs
// with the same name; Prefer RegisterLabel instead.
//
// Pointer values are registered as their element type: the serializable codec
// always persists the pointed-to value and hands back a pointer on decode.
func Register(value any) {
	rt := indirectType(reflect.TypeOf(value))
	// Use localised name within package (the type's name within its package) as
	// the label. This may cause duplicates if used improperly.
	globalObjectRegistry.RegisterLabel(rt.Name(), rt)
}

// RegisterLabel is the explicit form of Register. Prefer it to overcome
// duplicate label conflicts between types with the same name within different
// packages.
func RegisterLabel(value any, label string) {
	globalObjectRegistry.RegisterLabel(label, indirectType(reflect.TypeOf(value)))
}

func (r *objectRegistry) RegisterLabel(label string, rt reflect.Type) {
	// Store the label and type provided by the user
	if t, dup := r.mLabelToType.LoadOrStore(label, rt); dup && t != rt {
		panic(fmt.Sprintf("procvar: registering duplicate types for %q: %s != %s", label, t, rt))
	}
	// but the flattened type in the type table, since that's what decode needs.
	if l, dup := r.mTypeToLabel.LoadOrStore(rt, label); dup && l != label {
		r.mLabelToType.Delete(label) // Important to rollback.
		panic(fmt.Sprintf("procvar: registering duplicate labels for %s: %q != %q", rt, l, label))
	}
}

// KnownLabels returns a list of all labels registered with the process-wide
// object registry (i.e. all labels that can appear inside serialized variable
// payloads).
func KnownLabels() []string {
	var labels []string
	globalObjectRegistry.mLabelToType.Range(func(label, _ any) bool {
		labels = append(labels, label.(string))
		return true
	})
	return labels
}

// DefaultResolver returns the process-wide object registry populated by
// Register and RegisterLabel. It is the resolution path used by the
// serializable codec when no explicit resolver is injected.
func DefaultResolver() TypeResolver {
	return &globalObjectRegistry
}

func (r *objectRegistry) TypeOf(label string) (rt reflect.Type, ok bool) {
	v, ok := r.mLabelToType.Load(label)
	if !ok {
		return nil, false
	}
	return v.(reflect.Type), true
}

func (r *objectRegistry) LabelOf(rt reflect.Type) (label string, ok bool) {
	v, ok := r.mTypeToLabel.Load(rt)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// indirectType strips any levels of pointer indirection off the given type.
func indirectType(rt reflect.Type) reflect.Type {
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt
}
