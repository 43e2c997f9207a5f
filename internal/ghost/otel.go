package ghost

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/MidnightGrind/ghost/internal/ghost"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
