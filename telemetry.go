package procvar

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/go-procvar/go-procvar")

const (
	// variableName is the attribute key used to associate each record with the
	// corresponding variable name. This enables detailed analysis of metrics,
	// such as verificationDuration and dirtyVerifications, allowing both
	// collective examination across all variables and individual analysis per
	// variable.
	variableName = "variable"
)

var (
	// verificationDuration measures the duration of a single close-time
	// verification of one deserialized value, i.e. re-encoding the live value
	// and comparing it against the payload captured at hand-out time.
	//
	// Each record is associated with the variableName.
	verificationDuration metric.Float64Histogram
	// dirtyVerifications measures the number of verifications that detected an
	// in-place mutation and flushed the holder.
	//
	// Each record is associated with the variableName.
	dirtyVerifications metric.Int64Counter
	// recoveredDecodes measures the number of payload decodes that failed but
	// were degraded to an absent value because the variable was declared
	// recoverable.
	//
	// Each record is associated with the variableName.
	recoveredDecodes metric.Int64Counter
)

func init() {
	var err error
	verificationDuration, err = meter.Float64Histogram(
		"variable.verify.duration",
		metric.WithDescription("The duration of a single close-time verification of one deserialized value, including re-encoding the live value and comparing it against the hand-out payload."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("procvar: failed to init 'variable.verify.duration' instrument")
	}

	dirtyVerifications, err = meter.Int64Counter(
		"variable.verify.dirty",
		metric.WithDescription("The number of close-time verifications that detected an in-place mutation and flushed the holder."),
	)
	if err != nil {
		panic("procvar: failed to init 'variable.verify.dirty' instrument")
	}

	recoveredDecodes, err = meter.Int64Counter(
		"variable.decode.recovered",
		metric.WithDescription("The number of payload decodes that failed but were degraded to an absent value because the variable was declared recoverable."),
	)
	if err != nil {
		panic("procvar: failed to init 'variable.decode.recovered' instrument")
	}
}

// measureVerification records one close-time verification using the
// measurements verificationDuration and dirtyVerifications. Every
// verification records its duration; verifications that detected a mutation
// additionally increment the dirty counter.
//
// Each record is labeled with the relevant variable's name. This labeling
// allows for collective analysis of all verifications, as well as detailed
// individual analysis for each variable.
func measureVerification(ctx context.Context, variable string, dirty bool, d time.Duration) {
	// According to go.opentelemetry.io/otel/attribute package documentation,
	// attribute.Set should be used instead of attribute.KeyValue directly for
	// performance optimization.
	attrs := attribute.NewSet(attribute.String(variableName, variable))
	// We use floating-point division here for higher precision (instead of the
	// Millisecond method).
	duration := float64(d) / float64(time.Millisecond)
	verificationDuration.Record(ctx, duration, metric.WithAttributeSet(attrs))
	if dirty {
		dirtyVerifications.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}

// measureRecoveredDecode counts one decode failure that was degraded to an
// absent value because the variable was declared recoverable.
func measureRecoveredDecode(ctx context.Context, variable string) {
	attrs := attribute.NewSet(attribute.String(variableName, variable))
	recoveredDecodes.Add(ctx, 1, metric.WithAttributeSet(attrs))
}
