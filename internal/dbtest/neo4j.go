package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jtest "github.com/testcontainers/testcontainers-go/modules/neo4j"
)

// Neo4jImage exposes the image to use for the Neo4j container.
//
// The enterprise variant is chosen because node-key constraints and CREATE
// DATABASE are enterprise-only features, and neo4jstore relies on both.
//
// See <https://hub.docker.com/_/neo4j> for more images.
const Neo4jImage = "docker.io/neo4j:5-enterprise"

// SetupNeo4j spins up a Neo4j Docker container and returns a driver connected
// to it. Both the container and the driver are torn down during cleanup of the
// provided [*testing.T].
//
// The provided [*testing.T] is also used to skip the test under '-short' and
// to mark it parallel, so container startup does not serialise the rest of the
// suite.
//
// Tests that need a non-standard Neo4j deployment should call the
// testcontainers-go neo4j module directly instead of adding knobs here.
func SetupNeo4j(t *testing.T) neo4j.DriverWithContext {
	t.Helper()

	// Container-based tests are long-running and should respect the '-short' flag.
	if testing.Short() {
		t.Skip("Skipping container-based test in short mode...")
	}

	// Always run container-based tests in parallel.
	t.Parallel()

	ctx := context.Background()

	opts := containerOptions(t,
		neo4jtest.WithoutAuthentication(),
		neo4jtest.WithAcceptCommercialLicenseAgreement(),
	)

	container, err := neo4jtest.Run(ctx, Neo4jImage, opts...)
	if err != nil {
		t.Fatal("Failed to run neo4j container:", err)
	}
	t.Cleanup(func() {
		t.Logf("Terminating neo4j container %q...", container.GetContainerID())
		if err := container.Terminate(ctx); err != nil {
			t.Error("Encountered an error during cleanup; terminate container:", err)
		}
	})

	boltURL, err := container.BoltUrl(ctx)
	if err != nil {
		t.Fatal("Failed to get bolt url:", err)
	}

	driver, err := neo4j.NewDriverWithContext(boltURL, neo4j.NoAuth())
	if err != nil {
		t.Fatal("Failed to open neo4j driver:", err)
	}
	t.Cleanup(func() {
		if err := driver.Close(ctx); err != nil {
			t.Error("Encountered an error during cleanup while closing the neo4j driver:", err)
		}
	})

	if err := verifyConnectivityWithRetries(t, ctx, driver); err != nil {
		t.Fatalf("Failed to establish a connection with the remote neo4j server after retries: %v", err)
	}

	return driver
}

// verifyConnectivityWithRetries checks for a working connection to Neo4j,
// retrying a few times: the container can return from startup slightly before
// the server accepts bolt connections.
func verifyConnectivityWithRetries(t *testing.T, ctx context.Context, driver neo4j.DriverWithContext) error {
	t.Helper()

	const retryLimit = 5
	const retryPause = 100 * time.Millisecond

	err := driver.VerifyConnectivity(ctx)
	if err == nil {
		return nil
	}
	for r := range retryLimit {
		t.Logf("Attempting retry [%d/%d] after failing to establish a connection with the remote neo4j server: %v", r, retryLimit, err)
		select {
		case <-time.After(retryPause):
		case <-ctx.Done():
			return fmt.Errorf("retry pause interrupted")
		}
		err = driver.VerifyConnectivity(ctx)
		if err == nil {
			return nil
		}
	}
	return err
}
