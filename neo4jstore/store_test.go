package neo4jstore

import (
	"context"
	"testing"

	"github.com/go-procvar/go-procvar/internal/dbtest"
	"github.com/go-procvar/go-procvar/storetest"
)

func TestStore(t *testing.T) {
	driver := dbtest.SetupNeo4j(t)
	storetest.Run(t, NewStore(driver, "neo4j"))
}

func TestBootstrappedStore(t *testing.T) {
	driver := dbtest.SetupNeo4j(t)
	ctx := context.Background()

	if err := BootstrapDatabase(ctx, driver, "variables"); err != nil {
		t.Fatalf("BootstrapDatabase() error = %v", err)
	}
	// Bootstrapping must be idempotent.
	if err := BootstrapDatabase(ctx, driver, "variables"); err != nil {
		t.Fatalf("BootstrapDatabase() (second run) error = %v", err)
	}

	storetest.Run(t, NewStore(driver, "variables"))
}
