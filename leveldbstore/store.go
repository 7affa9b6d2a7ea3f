// Package leveldbstore persists variables in an embedded LevelDB database. It
// suits single-process deployments and tests; deployments shared by several
// processes should use a server-backed store such as neo4jstore.
//
// Variables are keyed by scope and name, with the scope as the key prefix, so
// listing a scope is a single prefix scan and names come back already sorted.
package leveldbstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/go-procvar/go-procvar"
)

// A Store is a procvar.VariableStore backed by one LevelDB database. It is
// safe for concurrent use.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) the LevelDB database at the given path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens a store over in-memory storage. Contents are lost when the
// store is closed; it exists for tests and ephemeral deployments.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory leveldb: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database. The store must not be used
// afterwards.
func (s *Store) Close() error {
	return s.db.Close()
}

// record is the durable form of one variable. The scope and name live in the
// key, so the record carries only the remaining fields.
type record struct {
	ID       string
	TypeName string
	Bytes    []byte
}

// variableKey builds the key for one variable. A zero byte separates the scope
// from the name; neither may contain one.
func variableKey(scopeID, name string) []byte {
	k := make([]byte, 0, len(scopeID)+1+len(name))
	k = append(k, scopeID...)
	k = append(k, 0)
	k = append(k, name...)
	return k
}

// scopePrefix builds the key prefix shared by all variables of one scope.
func scopePrefix(scopeID string) []byte {
	k := make([]byte, 0, len(scopeID)+1)
	k = append(k, scopeID...)
	k = append(k, 0)
	return k
}

func (s *Store) Put(_ context.Context, instance *procvar.VariableInstance) error {
	var buf bytes.Buffer
	rec := record{
		ID:       instance.ID(),
		TypeName: instance.TypeName(),
		Bytes:    instance.Bytes(),
	}
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("encode variable %q: %w", instance.Name(), err)
	}
	key := variableKey(instance.ScopeID(), instance.Name())
	if err := s.db.Put(key, buf.Bytes(), nil); err != nil {
		return fmt.Errorf("put variable %q: %w", instance.Name(), err)
	}
	return nil
}

func (s *Store) Get(_ context.Context, scopeID, name string) (*procvar.VariableInstance, error) {
	b, err := s.db.Get(variableKey(scopeID, name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("get variable %q of scope %q: %w", name, scopeID, procvar.ErrVariableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get variable %q of scope %q: %w", name, scopeID, err)
	}
	var rec record
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode variable %q of scope %q: %w", name, scopeID, err)
	}
	return procvar.RestoreVariableInstance(rec.ID, scopeID, name, rec.TypeName, rec.Bytes), nil
}

func (s *Store) Delete(_ context.Context, scopeID, name string) error {
	key := variableKey(scopeID, name)
	// LevelDB deletes are blind, so presence is checked first to honour the
	// not-found contract.
	ok, err := s.db.Has(key, nil)
	if err != nil {
		return fmt.Errorf("delete variable %q of scope %q: %w", name, scopeID, err)
	}
	if !ok {
		return fmt.Errorf("delete variable %q of scope %q: %w", name, scopeID, procvar.ErrVariableNotFound)
	}
	if err := s.db.Delete(key, nil); err != nil {
		return fmt.Errorf("delete variable %q of scope %q: %w", name, scopeID, err)
	}
	return nil
}

func (s *Store) Names(_ context.Context, scopeID string) ([]string, error) {
	prefix := scopePrefix(scopeID)
	// Keys are ordered bytewise and the scope prefix is fixed, so names come
	// out of the scan already sorted.
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	var names []string
	for iter.Next() {
		names = append(names, string(iter.Key()[len(prefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("list variables of scope %q: %w", scopeID, err)
	}
	return names, nil
}

// MarkUpdated persists the instance's changed payload. LevelDB writes are full
// overwrites, so flushing is the same operation as putting.
func (s *Store) MarkUpdated(ctx context.Context, instance *procvar.VariableInstance) error {
	return s.Put(ctx, instance)
}
