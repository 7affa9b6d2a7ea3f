package procvar_test

import (
	"context"
	"fmt"

	"github.com/go-procvar/go-procvar"
	"github.com/go-procvar/go-procvar/leveldbstore"
)

// First, we define a structured value type: Shipment. Values of this type will
// be persisted as opaque serializable payloads.

// Any named struct with exported fields will do.
type Shipment struct {
	Carrier  string
	Attempts int
}

// Remember the value types must be registered before they can be persisted as
// serializable variables.
func init() {
	// It doesn't matter where you register the types, as long as it's before
	// you use them. Registering an explicit label protects the persisted
	// payloads against renaming the Go type later.
	procvar.RegisterLabel(Shipment{}, "example.Shipment")
}

// This example walks through the full life of a structured variable: writing
// it, mutating the decoded value in place, and letting the close of the unit
// of work flush the mutation to the store.
func Example() {
	ctx := context.Background()

	// Variables live in a store. The in-memory flavour keeps this example
	// self-contained; production code opens a durable one.
	store, err := leveldbstore.OpenMemory()
	if err != nil {
		panic(err)
	}
	defer store.Close()

	// The registry selects a codec per value. TrackObjects arms mutation
	// detection for serializable values.
	registry := procvar.DefaultRegistry(&procvar.SerializableType{TrackObjects: true})

	// All variable work happens inside a unit of work.
	err = procvar.Run(ctx, store, func(ctx context.Context) error {
		shipment := procvar.NewVariableInstance("order-1", "shipment")
		if err := registry.SetVariable(ctx, shipment, &Shipment{Carrier: "acme"}); err != nil {
			return err
		}
		if err := store.Put(ctx, shipment); err != nil {
			return err
		}

		// Mutating the decoded value requires no explicit write-back: the
		// mutation is detected and flushed when the unit of work closes.
		value, err := registry.GetVariable(ctx, shipment)
		if err != nil {
			return err
		}
		value.(*Shipment).Attempts++
		return nil
	})
	if err != nil {
		panic(err)
	}

	// A later unit of work (or another process) observes the flushed mutation.
	loaded, err := store.Get(ctx, "order-1", "shipment")
	if err != nil {
		panic(err)
	}
	value, err := registry.GetVariable(ctx, loaded)
	if err != nil {
		panic(err)
	}
	fmt.Printf("%+v\n", value)
	// Output: &{Carrier:acme Attempts:1}
}
