package dbtest

import (
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/log"
)

// A utility function to create a slice of options for a container with the given
// image and a logger that logs to the given [testing.TB].
func containerOptions(tb testing.TB, opts ...testcontainers.ContainerCustomizer) []testcontainers.ContainerCustomizer {
	customizers := make([]testcontainers.ContainerCustomizer, 0, len(opts)+1)
	customizers = append(customizers, testcontainers.WithLogger(log.TestLogger(tb)))
	return append(customizers, opts...)
}
