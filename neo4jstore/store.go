// Package neo4jstore persists variables in a Neo4j graph database, one node
// per variable. It suits deployments where variables are queried alongside
// other process data already living in the graph.
package neo4jstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/danielorbach/go-component"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-procvar/go-procvar"
)

// Store is a procvar.VariableStore backed by a Neo4j database. Every variable
// is a node labelled Variable, keyed by its scope and name properties; see
// BootstrapDatabase for the constraint enforcing that key.
//
// A Store is safe for concurrent use: every operation opens its own session
// and runs inside a managed transaction.
type Store struct {
	driver   neo4j.DriverWithContext // Connection to the neo4j server/cluster.
	database string                  // Target database name holding the variable nodes.
}

// NewStore returns a store persisting variables into the given database.
func NewStore(driver neo4j.DriverWithContext, database string) *Store {
	return &Store{driver: driver, database: database}
}

// Put persists the instance, overwriting any previous variable with the same
// scope and name. The MERGE keys on scope and name only, so overwriting keeps
// the node (and its creation timestamp) while replacing the payload.
func (s *Store) Put(ctx context.Context, instance *procvar.VariableInstance) (err error) {
	ctx, span := tracer.Start(ctx, "Put", trace.WithAttributes(
		attribute.String("neo4j.database", s.database),
	))
	defer span.End()

	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer s.closeSession(ctx, session, "write")

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (v:Variable {scope: $scope, name: $name})
			ON CREATE SET v._created_at = datetime()
			SET v.id = $id, v.type = $type, v.bytes = $bytes, v._last_modified = datetime()
			RETURN count(v) AS nodes
		`
		result, err := tx.Run(ctx, query, map[string]any{
			"scope": instance.ScopeID(),
			"name":  instance.Name(),
			"id":    instance.ID(),
			"type":  instance.TypeName(),
			"bytes": instance.Bytes(),
		})
		if err != nil {
			return nil, fmt.Errorf("run cypher: %w", err)
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("query single result: %w", err)
		}
		nodes, err := getRecordProperty[int64](record, "nodes")
		if err != nil {
			return nil, fmt.Errorf("get nodes: %w", err)
		}
		// One variable is represented by one node. If the MERGE touches more
		// than a single node, the node-key constraint is missing or broken and
		// we cannot continue to operate on the database.
		if nodes != 1 {
			panicWithCorruptedStore(ctx, fmt.Sprintf("put modified %v nodes instead of 1", nodes))
		}
		return nil, nil
	})
	return s.checkExecuteError(ctx, err)
}

// Get loads the variable with the given scope and name, or
// procvar.ErrVariableNotFound when none is persisted.
func (s *Store) Get(ctx context.Context, scopeID, name string) (instance *procvar.VariableInstance, err error) {
	ctx, span := tracer.Start(ctx, "Get", trace.WithAttributes(
		attribute.String("neo4j.database", s.database),
	))
	defer span.End()

	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer s.closeSession(ctx, session, "read")

	loaded, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (v:Variable {scope: $scope, name: $name})
			RETURN v.id AS id, v.type AS type, v.bytes AS bytes
		`
		result, err := tx.Run(ctx, query, map[string]any{
			"scope": scopeID,
			"name":  name,
		})
		if err != nil {
			return nil, fmt.Errorf("run cypher: %w", err)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("collect results: %w", err)
		}
		if len(records) == 0 {
			return nil, procvar.ErrVariableNotFound
		}
		// The node-key constraint guarantees at most one node per scope and
		// name; more than one means the constraint is missing or broken.
		if len(records) > 1 {
			panicWithCorruptedStore(ctx, fmt.Sprintf("get matched %v nodes instead of 0/1", len(records)))
		}
		record := records[0]

		id, err := getRecordProperty[string](record, "id")
		if err != nil {
			return nil, fmt.Errorf("get id: %w", err)
		}
		typeName, err := getRecordProperty[string](record, "type")
		if err != nil {
			return nil, fmt.Errorf("get type: %w", err)
		}
		// The bytes property is absent for variables holding no value.
		bytes, err := getRecordProperty[[]byte](record, "bytes")
		if err != nil && !errors.Is(err, errPropertyNotSet) {
			return nil, fmt.Errorf("get bytes: %w", err)
		}
		return procvar.RestoreVariableInstance(id, scopeID, name, typeName, bytes), nil
	})
	if err != nil {
		return nil, fmt.Errorf("get variable %q of scope %q: %w", name, scopeID, s.checkExecuteError(ctx, err))
	}
	return loaded.(*procvar.VariableInstance), nil
}

// Delete removes the variable with the given scope and name, or returns
// procvar.ErrVariableNotFound when none is persisted.
func (s *Store) Delete(ctx context.Context, scopeID, name string) (err error) {
	ctx, span := tracer.Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("neo4j.database", s.database),
	))
	defer span.End()

	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer s.closeSession(ctx, session, "write")

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (v:Variable {scope: $scope, name: $name})
			DETACH DELETE v
			RETURN count(v) AS nodes
		`
		result, err := tx.Run(ctx, query, map[string]any{
			"scope": scopeID,
			"name":  name,
		})
		if err != nil {
			return nil, fmt.Errorf("run cypher: %w", err)
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("query single result: %w", err)
		}
		nodes, err := getRecordProperty[int64](record, "nodes")
		if err != nil {
			return nil, fmt.Errorf("get nodes: %w", err)
		}
		if nodes == 0 {
			return nil, procvar.ErrVariableNotFound
		}
		if nodes != 1 {
			panicWithCorruptedStore(ctx, fmt.Sprintf("delete removed %v nodes instead of 0/1", nodes))
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("delete variable %q of scope %q: %w", name, scopeID, s.checkExecuteError(ctx, err))
	}
	return nil
}

// Names lists the names of all variables within the scope, sorted
// lexicographically. An unknown scope yields an empty list.
func (s *Store) Names(ctx context.Context, scopeID string) (names []string, err error) {
	ctx, span := tracer.Start(ctx, "Names", trace.WithAttributes(
		attribute.String("neo4j.database", s.database),
	))
	defer span.End()

	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer s.closeSession(ctx, session, "read")

	listed, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (v:Variable {scope: $scope})
			RETURN v.name AS name
			ORDER BY name
		`
		result, err := tx.Run(ctx, query, map[string]any{
			"scope": scopeID,
		})
		if err != nil {
			return nil, fmt.Errorf("run cypher: %w", err)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("collect results: %w", err)
		}
		names := make([]string, len(records))
		for i, record := range records {
			name, err := getRecordProperty[string](record, "name")
			if err != nil {
				return nil, fmt.Errorf("get name: %w", err)
			}
			names[i] = name
		}
		return names, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list variables of scope %q: %w", scopeID, s.checkExecuteError(ctx, err))
	}
	return listed.([]string), nil
}

// MarkUpdated flushes the instance's changed payload onto its existing node.
// Flushing a variable that was never put is an ErrVariableNotFound.
func (s *Store) MarkUpdated(ctx context.Context, instance *procvar.VariableInstance) (err error) {
	ctx, span := tracer.Start(ctx, "MarkUpdated", trace.WithAttributes(
		attribute.String("neo4j.database", s.database),
	))
	defer span.End()

	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer s.closeSession(ctx, session, "write")

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (v:Variable {scope: $scope, name: $name})
			SET v.type = $type, v.bytes = $bytes, v._last_modified = datetime()
			RETURN count(v) AS nodes
		`
		result, err := tx.Run(ctx, query, map[string]any{
			"scope": instance.ScopeID(),
			"name":  instance.Name(),
			"type":  instance.TypeName(),
			"bytes": instance.Bytes(),
		})
		if err != nil {
			return nil, fmt.Errorf("run cypher: %w", err)
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("query single result: %w", err)
		}
		nodes, err := getRecordProperty[int64](record, "nodes")
		if err != nil {
			return nil, fmt.Errorf("get nodes: %w", err)
		}
		if nodes == 0 {
			return nil, procvar.ErrVariableNotFound
		}
		if nodes != 1 {
			panicWithCorruptedStore(ctx, fmt.Sprintf("flush modified %v nodes instead of 0/1", nodes))
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("flush variable %q of scope %q: %w", instance.Name(), instance.ScopeID(), s.checkExecuteError(ctx, err))
	}
	return nil
}

// We open a new session for every operation to ensure transactional isolation
// and to prevent any state carryover between different query executions. This
// practice enhances robustness because any session-specific errors or
// resources are contained and do not affect subsequent operations.
func (s *Store) newSession(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   mode,
	})
}

func (s *Store) closeSession(ctx context.Context, session neo4j.SessionWithContext, mode string) {
	if err := session.Close(ctx); err != nil {
		component.Logger(ctx).Error("Failed to close session", "error", err, "mode", mode)
	}
}

// checkExecuteError separates developer mistakes from operational failures. A
// developer changing a Cypher query without adjusting the surrounding code is
// indicated by errPropertyNotFound or unexpectedPropertyTypeError, which cause
// a panic rather than an error return.
func (s *Store) checkExecuteError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, errPropertyNotFound) || errors.As(err, &unexpectedPropertyTypeError{}) {
		component.Logger(ctx).Error("A Cypher query was modified without care", "error", err)
		panic(fmt.Errorf("seek developer attention: neo4j cypher query: %w", err))
	}
	return err
}

// We modify the underlying neo4j database in a way that prompts us when it
// violates our basic constraints.
//
// When we suspect the database has lost its integrity, we may no longer
// operate on it. In which case, we must immediately stop all operations. This
// is achieved with a panic preceded by telemetry signals (traces and logs) to
// bring the situation to our immediate attention.
func panicWithCorruptedStore(ctx context.Context, reason string) {
	component.Logger(ctx).ErrorContext(ctx, "Encountered corrupted neo4j database that violates the one-node-per-variable axiom", "error", reason)
	trace.SpanFromContext(ctx).SetStatus(codes.Error, reason)
	panic(fmt.Errorf("neo4j database violates variable store axioms: %v", reason))
}

// A errPropertyNotFound occurs when a queried record lacks an expected column.
//
// When encountering this error, it most likely occurs when changing a Cypher
// query without modifying the surrounding code properly. Expect a panic
// eventually.
var errPropertyNotFound = errors.New("property not found")

// A errPropertyNotSet occurs when a queried column exists but the node carries
// no such property. Callers reading optional properties treat it as absence.
var errPropertyNotSet = errors.New("property not set")

// An unexpectedPropertyTypeError occurs when a property has a runtime type
// that is different from the expected type. The error message contains the
// effective type of the property at runtime.
//
// When encountering this error, it most likely occurs when changing a Cypher
// query without modifying dependent code properly. Expect a panic eventually.
type unexpectedPropertyTypeError struct {
	Type reflect.Type // Effective type encountered at runtime.
}

func (e unexpectedPropertyTypeError) Error() string {
	return "unexpected property type: " + e.Type.String()
}

// The property types our Cypher queries return.
type recordProperty interface {
	int64 | string | []byte
}

func getRecordProperty[T recordProperty](record *neo4j.Record, key string) (value T, err error) {
	prop, exists := record.Get(key)
	if !exists {
		return value, errPropertyNotFound
	}
	// A null column means the matched node carries no such property.
	if prop == nil {
		return value, errPropertyNotSet
	}
	v, ok := prop.(T)
	if !ok {
		return value, unexpectedPropertyTypeError{Type: reflect.TypeOf(prop)}
	}
	return v, nil
}
