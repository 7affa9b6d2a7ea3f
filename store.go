package procvar

import "context"

// A VariableStore durably persists variable instances, partitioned by scope.
// Implementations are provided for Neo4j and LevelDB; all of them must pass
// the conformance suite in the storetest package.
//
// Stores also act as the Updater of units of work, receiving instances whose
// payload changed during verification.
type VariableStore interface {
	Updater

	// Put persists the instance, overwriting any previous variable with the
	// same scope and name.
	Put(ctx context.Context, instance *VariableInstance) error

	// Get loads the variable with the given scope and name, or
	// ErrVariableNotFound when none is persisted.
	Get(ctx context.Context, scopeID, name string) (*VariableInstance, error)

	// Delete removes the variable with the given scope and name, or returns
	// ErrVariableNotFound when none is persisted.
	Delete(ctx context.Context, scopeID, name string) error

	// Names lists the names of all variables within the scope, sorted
	// lexicographically. An unknown scope yields an empty list.
	Names(ctx context.Context, scopeID string) ([]string, error)
}
