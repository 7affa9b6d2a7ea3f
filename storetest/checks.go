package storetest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/go-procvar/go-procvar"
)

// A check is any function that returns unexpected problems with the state of
// the store under test.
type check func(ctx context.Context, store procvar.VariableStore) (problem string)

// Checks that the variable decodes to exactly the expected value.
//
// The variable is loaded fresh from the store and decoded through the suite's
// registry, so the check observes what a restarted process would observe
// rather than any cached value.
func value(scopeID, name string, want any) check {
	return func(ctx context.Context, store procvar.VariableStore) string {
		instance, err := store.Get(ctx, scopeID, name)
		if err != nil {
			return fmt.Sprintf("Get(%v, %v) failed: %v", scopeID, name, err)
		}
		got, err := registry.GetVariable(ctx, instance)
		if err != nil {
			return fmt.Sprintf("decode %v of scope %v: %v", name, scopeID, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			return fmt.Sprintf("value of %v mismatch (-want +got):\n%v", name, diff)
		}
		return ""
	}
}

// Checks that the variable is absent from the store.
func missing(scopeID, name string) check {
	return func(ctx context.Context, store procvar.VariableStore) string {
		_, err := store.Get(ctx, scopeID, name)
		if !errors.Is(err, procvar.ErrVariableNotFound) {
			return fmt.Sprintf("Get(%v, %v) = %v, want ErrVariableNotFound", scopeID, name, err)
		}
		return ""
	}
}

// Checks that the scope holds exactly the expected variable names, sorted
// lexicographically.
func names(scopeID string, want ...string) check {
	return func(ctx context.Context, store procvar.VariableStore) string {
		got, err := store.Names(ctx, scopeID)
		if err != nil {
			return fmt.Sprintf("Names(%v) failed: %v", scopeID, err)
		}
		// Stores may return either nil or an empty slice for an empty scope.
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			return fmt.Sprintf("Names(%v) mismatch (-want +got):\n%v", scopeID, diff)
		}
		return ""
	}
}
