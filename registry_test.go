package procvar

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// A greedyType accepts every non-nil value and records nothing useful. It
// exists to probe the registry's selection order.
type greedyType struct{ name string }

func (t greedyType) TypeName() string            { return t.name }
func (t greedyType) IsAbleToStore(value any) bool { return true }

func (t greedyType) SetValue(_ context.Context, _ any, fields ValueFields) error {
	fields.SetBytes([]byte(t.name))
	return nil
}

func (t greedyType) GetValue(_ context.Context, fields ValueFields) (any, error) {
	return string(fields.Bytes()), nil
}

func TestRegistrySelectionOrder(t *testing.T) {
	ctx := context.Background()
	// Both codecs accept everything, so registration order must decide.
	registry := NewTypeRegistry(greedyType{name: "first"}, greedyType{name: "second"})

	instance := NewVariableInstance("order-1", "status")
	if err := registry.SetVariable(ctx, instance, "anything"); err != nil {
		t.Fatalf("SetVariable failed: %v", err)
	}
	if instance.TypeName() != "first" {
		t.Errorf("TypeName = %q, want %q", instance.TypeName(), "first")
	}
}

func TestRegistryDuplicateTypeName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("registering a duplicate type name did not panic")
		}
	}()
	NewTypeRegistry(greedyType{name: "dup"}, greedyType{name: "dup"})
}

func TestRegistryRoundtrip(t *testing.T) {
	ctx := context.Background()
	registry := DefaultRegistry(&SerializableType{})

	for _, tt := range []struct {
		name  string
		value any
		typed string
	}{
		{name: "status", value: "pending", typed: "string"},
		{name: "attempts", value: int64(3), typed: "int64"},
		{name: "origin", value: &point{X: 1, Y: 2}, typed: SerializableTypeName},
	} {
		t.Run(tt.name, func(t *testing.T) {
			instance := NewVariableInstance("order-1", tt.name)
			if err := registry.SetVariable(ctx, instance, tt.value); err != nil {
				t.Fatalf("SetVariable failed: %v", err)
			}
			if instance.TypeName() != tt.typed {
				t.Errorf("TypeName = %q, want %q", instance.TypeName(), tt.typed)
			}

			restored := RestoreVariableInstance(instance.ID(), "order-1", tt.name, instance.TypeName(), instance.Bytes())
			got, err := registry.GetVariable(ctx, restored)
			if err != nil {
				t.Fatalf("GetVariable failed: %v", err)
			}
			if diff := cmp.Diff(tt.value, got); diff != "" {
				t.Errorf("roundtrip mismatch (-want +got):\n%v", diff)
			}
		})
	}
}

func TestRegistryNilValue(t *testing.T) {
	ctx := context.Background()
	registry := DefaultRegistry(&SerializableType{})

	instance := NewVariableInstance("order-1", "status")
	if err := registry.SetVariable(ctx, instance, "pending"); err != nil {
		t.Fatalf("SetVariable failed: %v", err)
	}

	// Storing nil clears the variable through the null type.
	if err := registry.SetVariable(ctx, instance, nil); err != nil {
		t.Fatalf("SetVariable(nil) failed: %v", err)
	}
	if instance.TypeName() != TypeNameNull {
		t.Errorf("TypeName = %q, want %q", instance.TypeName(), TypeNameNull)
	}
	if instance.Bytes() != nil {
		t.Errorf("Bytes = %v, want nil", instance.Bytes())
	}
	got, err := registry.GetVariable(ctx, instance)
	if err != nil {
		t.Fatalf("GetVariable failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetVariable = %v, want nil", got)
	}

	// A registry without a null type cannot store nil.
	strings := NewTypeRegistry(StringType{})
	if err := strings.SetVariable(ctx, NewVariableInstance("order-1", "x"), nil); err == nil {
		t.Error("SetVariable(nil) on a registry without a null type succeeded")
	}
}

func TestRegistryUnacceptableValue(t *testing.T) {
	ctx := context.Background()
	registry := NewTypeRegistry(NullType{}, StringType{})

	err := registry.SetVariable(ctx, NewVariableInstance("order-1", "attempts"), int64(3))
	if err == nil {
		t.Error("SetVariable with no accepting type succeeded")
	}
}

func TestRegistryUnknownTypeName(t *testing.T) {
	ctx := context.Background()
	registry := DefaultRegistry(&SerializableType{})

	restored := RestoreVariableInstance("id-1", "order-1", "legacy", "jpa-entity", []byte("..."))
	_, err := registry.GetVariable(ctx, restored)
	var uerr *UnknownTypeError
	if !errors.As(err, &uerr) {
		t.Fatalf("GetVariable returned %v, want an UnknownTypeError", err)
	}
	if uerr.TypeName != "jpa-entity" {
		t.Errorf("UnknownTypeError.TypeName = %q, want %q", uerr.TypeName, "jpa-entity")
	}
}

func TestRegistryUntouchedVariable(t *testing.T) {
	ctx := context.Background()
	registry := DefaultRegistry(&SerializableType{})

	got, err := registry.GetVariable(ctx, NewVariableInstance("order-1", "fresh"))
	if err != nil {
		t.Fatalf("GetVariable failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetVariable of an untouched variable = %v, want nil", got)
	}
}
