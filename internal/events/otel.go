package events

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/MidnightGrind/ghost/internal/events"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
