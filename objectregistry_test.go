package procvar

import (
	"reflect"
	"slices"
	"testing"
)

func TestRegisterResolvesBothDirections(t *testing.T) {
	type Parcel struct{ Weight int }
	Register(Parcel{})

	resolver := DefaultResolver()
	rt, ok := resolver.TypeOf("Parcel")
	if !ok {
		t.Fatal("TypeOf(Parcel) not found after Register")
	}
	if rt != reflect.TypeOf(Parcel{}) {
		t.Errorf("TypeOf(Parcel) = %v, want %v", rt, reflect.TypeOf(Parcel{}))
	}
	label, ok := resolver.LabelOf(reflect.TypeOf(Parcel{}))
	if !ok {
		t.Fatal("LabelOf(Parcel) not found after Register")
	}
	if label != "Parcel" {
		t.Errorf("LabelOf(Parcel) = %q, want %q", label, "Parcel")
	}

	if !slices.Contains(KnownLabels(), "Parcel") {
		t.Error("KnownLabels() does not contain Parcel")
	}
}

// Pointer values register as their element type, because the codec persists
// the pointed-to value and hands back a pointer on decode.
func TestRegisterIndirectsPointers(t *testing.T) {
	type Waybill struct{ Number string }
	Register(&Waybill{})

	if _, ok := DefaultResolver().TypeOf("Waybill"); !ok {
		t.Error("TypeOf(Waybill) not found after registering a pointer")
	}
	if _, ok := DefaultResolver().LabelOf(reflect.TypeOf(Waybill{})); !ok {
		t.Error("LabelOf(Waybill) not found after registering a pointer")
	}
}

func TestRegisterDuplicateLabel(t *testing.T) {
	type Manifest struct{ A int }
	type Inventory struct{ B int }
	RegisterLabel(Manifest{}, "procvar_test.conflict")

	defer func() {
		if recover() == nil {
			t.Fatal("registering a second type under the same label did not panic")
		}
		// The original registration must survive the conflicting attempt.
		rt, ok := DefaultResolver().TypeOf("procvar_test.conflict")
		if !ok || rt != reflect.TypeOf(Manifest{}) {
			t.Errorf("TypeOf after conflict = %v, %v; want %v, true", rt, ok, reflect.TypeOf(Manifest{}))
		}
	}()
	RegisterLabel(Inventory{}, "procvar_test.conflict")
}

func TestRegisterDuplicateType(t *testing.T) {
	type Ledger struct{ A int }
	RegisterLabel(Ledger{}, "procvar_test.ledger")

	defer func() {
		if recover() == nil {
			t.Fatal("registering the same type under a second label did not panic")
		}
		// The rollback must not leave the second label dangling.
		if _, ok := DefaultResolver().TypeOf("procvar_test.ledger2"); ok {
			t.Error("TypeOf(procvar_test.ledger2) found after rollback")
		}
	}()
	RegisterLabel(Ledger{}, "procvar_test.ledger2")
}

// Registering the same pairing twice is idempotent, not a conflict.
func TestRegisterIdempotent(t *testing.T) {
	type Receipt struct{ A int }
	RegisterLabel(Receipt{}, "procvar_test.receipt")
	RegisterLabel(Receipt{}, "procvar_test.receipt")
}
