package chat

import (
	"github.com/FixwellAI/fixwell-mvp/engine/intent"
	"github.com/FixwellAI/fixwell-mvp/pkg/metrics"
)

// serviceMetrics holds the turn counters exposed on /metrics.
type serviceMetrics struct {
	requests     *metrics.Counter
	failures     *metrics.Counter
	storeRetries *metrics.Counter
	latency      *metrics.Histogram
	intents      func(kind intent.Kind) *metrics.Counter
}

func newServiceMetrics(reg *metrics.Registry) serviceMetrics {
	if reg == nil {
		reg = metrics.New()
	}
	return serviceMetrics{
		requests:     reg.Counter("fixwell_chat_requests_total", "Conversation turns handled"),
		failures:     reg.Counter("fixwell_chat_failures_total", "Turns that ended in the apology"),
		storeRetries: reg.Counter("fixwell_chat_store_retries_total", "Catalog store calls retried while unavailable"),
		latency:      reg.Histogram("fixwell_chat_request_duration_seconds", "Turn handling latency", nil),
		intents: func(kind intent.Kind) *metrics.Counter {
			return reg.Counter(metrics.WithLabels("fixwell_chat_intents_total", "kind", string(kind)),
				"Classified intents by kind")
		},
	}
}
