package neo4jstore

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/go-procvar/go-procvar/neo4jstore")
