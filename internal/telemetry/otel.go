package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/arrowdash/engine/internal/telemetry"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
