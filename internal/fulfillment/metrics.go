package fulfillment

import (
	"time"

	"github.com/danielfernandez00/mi-webhook/internal/provider"
)

// MetricsService is the service key the gateway registers its Recorder under.
const MetricsService = "gateway.metrics"

// Recorder receives per-request measurements.
type Recorder interface {
	ObserveRequest(outcome string)
	ObserveProvider(d time.Duration, usage provider.TokenUsage, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string)                                     {}
func (nopRecorder) ObserveProvider(time.Duration, provider.TokenUsage, error) {}
