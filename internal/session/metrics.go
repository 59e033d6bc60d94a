package session

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/angelar/arsession/internal/session"

type metrics struct {
	transitions  metric.Int64Counter
	frames       metric.Int64Counter
	loadDuration metric.Float64Histogram
}

// newMetrics uses the global OTel meter (no-op if not configured).
func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)

	transitions, err := m.Int64Counter(
		"session.transitions",
		metric.WithDescription("State transitions of the session controller"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}

	frames, err := m.Int64Counter(
		"session.frames",
		metric.WithDescription("Frames rendered while tracking"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}

	loadDuration, err := m.Float64Histogram(
		"session.asset.load.duration",
		metric.WithDescription("Time from load start to its terminal event"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating load duration histogram: %w", err)
	}

	return &metrics{transitions: transitions, frames: frames, loadDuration: loadDuration}, nil
}
