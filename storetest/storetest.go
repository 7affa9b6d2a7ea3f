/*
Package storetest provides a suite of tests designed to assess variable stores
(e.g. leveldb, neo4j).

The tests operate on the specific store via the [procvar.VariableStore]
interface to check functional correctness and compliance with the behaviours
defined by that interface.

Call storetest.Run in its own test to invoke the test-suite:

	func TestStore(t *testing.T) {
		store, err := leveldbstore.OpenMemory() // Create a new underlying store.
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()
		// Call storetest.Run, passing the store under test.
		storetest.Run(t, store)
	}

The test cases in this suite focus on the basic store operations:

  - Persisting, overwriting, deleting and listing variables per scope.
  - Flushing in-place mutations of decoded values when a unit of work closes.

So, specific stores are encouraged to perform additional tests which are
specific to the underlying database.
*/
package storetest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"testing"

	"github.com/go-procvar/go-procvar"
)

func init() {
	procvar.RegisterLabel(Checkpoint{}, "storetest.Checkpoint")
}

// A Checkpoint is the structured value used throughout the suite to exercise
// the serializable codec against the store under test.
type Checkpoint struct {
	Step  string
	Tries int64
}

// The suite persists variables under two scopes to check that stores keep
// scopes isolated from one another.
const (
	scopeOrders   = "order-7421"
	scopePayments = "payment-108"
)

// registry is the codec line-up exercised against every store, with mutation
// tracking armed so the unit-of-work cases observe flushes.
var registry = procvar.DefaultRegistry(&procvar.SerializableType{TrackObjects: true})

type testCase struct {
	// Subtest name.
	name string
	// A path leading to the test-case's file and line in the source code.
	location string
	// An op executes a single operation against the tested store. Most ops
	// leave verification to the case's checks; ops exercising error returns
	// verify those inline.
	op func(ctx context.Context, store procvar.VariableStore) error
	// A list of checks to run on the store state after the op succeeded. These
	// checks take into account the order and the successful execution of
	// previous test-cases.
	checks []check
}

var cases = []testCase{
	{
		name:     "get-missing-variable",
		location: locateSource(),
		op: func(ctx context.Context, store procvar.VariableStore) error {
			_, err := store.Get(ctx, scopeOrders, "status")
			if !errors.Is(err, procvar.ErrVariableNotFound) {
				return fmt.Errorf("Get returned %v, want ErrVariableNotFound", err)
			}
			return nil
		},
		checks: []check{
			names(scopeOrders),
		},
	},
	{
		name:     "delete-missing-variable",
		location: locateSource(),
		op: func(ctx context.Context, store procvar.VariableStore) error {
			if err := store.Delete(ctx, scopeOrders, "status"); !errors.Is(err, procvar.ErrVariableNotFound) {
				return fmt.Errorf("Delete returned %v, want ErrVariableNotFound", err)
			}
			return nil
		},
		checks: []check{
			names(scopeOrders),
		},
	},
	{
		name:     "put-string-variable",
		location: locateSource(),
		op: func(ctx context.Context, store procvar.VariableStore) error {
			return put(ctx, store, scopeOrders, "status", "pending")
		},
		checks: []check{
			value(scopeOrders, "status", "pending"),
			names(scopeOrders, "status"),
		},
	},
	{
		name:     "overwrite-variable",
		location: locateSource(),
		op: func(ctx context.Context, store procvar.VariableStore) error {
			return put(ctx, store, scopeOrders, "status", "shipped")
		},
		checks: []check{
			value(scopeOrders, "status", "shipped"),
			names(scopeOrders, "status"),
		},
	},
	{
		name:     "change-variable-type",
		location: locateSource(),
		op: func(ctx context.Context, store procvar.VariableStore) error {
			// Overwriting with a value of another kind rebinds the variable to
			// the codec owning that kind.
			return put(ctx, store, scopeOrders, "status", int64(404))
		},
		checks: []check{
			value(scopeOrders, "status", int64(404)),
			names(scopeOrders, "status"),
		},
	},
	{
		name:     "scopes-are-isolated",
		location: locateSource(),
		op: func(ctx context.Context, store procvar.VariableStore) error {
			return put(ctx, store, scopePayments, "status", "authorised")
		},
		checks: []check{
			value(scopeOrders, "status", int64(404)),
			value(scopePayments, "status", "authorised"),
			names(scopeOrders, "status"),
			names(scopePayments, "status"),
		},
	},
	{
		name:     "names-are-sorted",
		location: locateSource(),
		op: func(ctx context.Context, store procvar.VariableStore) error {
			if err := put(ctx, store, scopeOrders, "checkpoint", &Checkpoint{Step: "ship"}); err != nil {
				return err
			}
			return put(ctx, store, scopeOrders, "assignee", "kermit")
		},
		checks: []check{
			names(scopeOrders, "assignee", "checkpoint", "status"),
			value(scopeOrders, "checkpoint", &Checkpoint{Step: "ship"}),
		},
	},
	{
		name:     "flush-mutated-value",
		location: locateSource(),
		op: func(ctx context.Context, store procvar.VariableStore) error {
			// Reading a structured value inside a unit of work and mutating it
			// in place must flush the mutation to the store when the unit of
			// work closes, without any explicit write-back.
			return procvar.Run(ctx, store, func(ctx context.Context) error {
				instance, err := store.Get(ctx, scopeOrders, "checkpoint")
				if err != nil {
					return err
				}
				v, err := registry.GetVariable(ctx, instance)
				if err != nil {
					return err
				}
				v.(*Checkpoint).Tries++
				return nil
			})
		},
		checks: []check{
			value(scopeOrders, "checkpoint", &Checkpoint{Step: "ship", Tries: 1}),
		},
	},
	{
		name:     "unmutated-value-is-not-flushed",
		location: locateSource(),
		op: func(ctx context.Context, store procvar.VariableStore) error {
			// A read without a mutation must close cleanly and leave the
			// persisted payload untouched.
			return procvar.Run(ctx, store, func(ctx context.Context) error {
				instance, err := store.Get(ctx, scopeOrders, "checkpoint")
				if err != nil {
					return err
				}
				_, err = registry.GetVariable(ctx, instance)
				return err
			})
		},
		checks: []check{
			value(scopeOrders, "checkpoint", &Checkpoint{Step: "ship", Tries: 1}),
		},
	},
	{
		name:     "delete-variable",
		location: locateSource(),
		op: func(ctx context.Context, store procvar.VariableStore) error {
			return store.Delete(ctx, scopeOrders, "status")
		},
		checks: []check{
			missing(scopeOrders, "status"),
			names(scopeOrders, "assignee", "checkpoint"),
			value(scopePayments, "status", "authorised"),
		},
	},
}

// Run executes a sequence of test cases on a variable store. It verifies that
// the store correctly persists, overwrites, deletes and lists variables, and
// that it receives the flushes performed by close-time verification.
//
// We deliberately avoid receiving a contextual argument for each test to
// ensure that the test suite runs under neutral conditions without any
// external influences or timeouts. This approach is consistent across test
// cases because the intention is to test the correctness of operations, not
// their performance or context-dependent behaviours.
//
// The testing process requires all cases to execute in a strict sequence
// because the state of the store at the end of one test is the starting point
// for the next. This sequential execution is crucial in evaluating whether the
// state progresses correctly over a series of operations, akin to the
// real-world use of a store over time.
func Run(t *testing.T, store procvar.VariableStore) {
	t.Helper()

	// We deliberately use the background context because this test-suite does
	// not check performance. Also, store implementations should not depend on
	// specific context values. When this assumption changes, this test-suite
	// will have changes accordingly as well.
	ctx := context.Background()

	// All test-cases run in-order, on the same store, because each case's
	// checks depend on the previous operations. Otherwise, we would not be able
	// to check the continuity of the store across time.
	//
	// That is, a test case cannot run if the previous case had failed.
	for _, c := range cases {
		// We encourage developers to read the source code directly, especially
		// when failures are not clear enough. We'd put a lot of effort into
		// making this suite readable and understandable.
		t.Logf("Read the source for test-case %v at %v", c.name, c.location)
		if err := c.op(ctx, store); err != nil {
			t.Fatalf("op(%v) failed: %v", c.name, err)
		}
		for _, check := range c.checks {
			if problem := check(ctx, store); problem != "" {
				t.Errorf("Check store after %v: %v", c.name, problem)
			}
		}
	}
}

// put encodes the value through the suite's registry into a fresh variable
// instance and persists it, mirroring how a variable service writes variables.
func put(ctx context.Context, store procvar.VariableStore, scopeID, name string, value any) error {
	instance := procvar.NewVariableInstance(scopeID, name)
	if err := registry.SetVariable(ctx, instance, value); err != nil {
		return err
	}
	return store.Put(ctx, instance)
}

// Call this function to set the location of every test-case in the source
// file. The returned string is used to guide developers of variable stores to
// the appropriate test-case.
func locateSource() (path string) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		panic("runtime.Caller failed")
	}
	return fmt.Sprintf("%v:%v", file, line)
}
