package procvar

import (
	"context"
	"errors"
	"testing"
)

func TestInt64TypeRejectsCorruptPayload(t *testing.T) {
	instance := RestoreVariableInstance("id-1", "order-1", "attempts", "int64", []byte{1, 2, 3})
	_, err := Int64Type{}.GetValue(context.Background(), instance)
	var derr *DeserializationError
	if !errors.As(err, &derr) {
		t.Fatalf("GetValue returned %v, want a DeserializationError", err)
	}
}

func TestInt64TypeNegativeRoundtrip(t *testing.T) {
	ctx := context.Background()
	instance := NewVariableInstance("order-1", "delta")
	if err := (Int64Type{}).SetValue(ctx, int64(-42), instance); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	got, err := Int64Type{}.GetValue(ctx, RestoreVariableInstance(instance.ID(), "order-1", "delta", "int64", instance.Bytes()))
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if got != int64(-42) {
		t.Errorf("GetValue = %v, want -42", got)
	}
}

func TestStringTypeDistinguishesEmptyFromAbsent(t *testing.T) {
	ctx := context.Background()

	instance := NewVariableInstance("order-1", "note")
	if err := (StringType{}).SetValue(ctx, "", instance); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	got, err := StringType{}.GetValue(ctx, instance)
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if got != "" {
		t.Errorf("GetValue = %v, want empty string", got)
	}

	absent := NewVariableInstance("order-1", "untouched")
	got, err = StringType{}.GetValue(ctx, absent)
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetValue of an absent payload = %v, want nil", got)
	}
}

func TestNullTypeClearsHolder(t *testing.T) {
	ctx := context.Background()

	instance := NewVariableInstance("order-1", "status")
	if err := (StringType{}).SetValue(ctx, "pending", instance); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if err := (NullType{}).SetValue(ctx, nil, instance); err != nil {
		t.Fatalf("SetValue(nil) failed: %v", err)
	}
	if instance.Bytes() != nil || instance.CachedValue() != nil {
		t.Errorf("null SetValue left bytes=%v cached=%v, want both nil", instance.Bytes(), instance.CachedValue())
	}
}
