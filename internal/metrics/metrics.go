package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeValidated = "validation_error"
	OutcomeNetwork   = "network_error"
)

var (
	once sync.Once

	dispatchActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mechconnect",
			Name:      "dispatch_actions_total",
			Help:      "Lifecycle actions by action name and outcome.",
		},
		[]string{"action", "outcome"},
	)

	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mechconnect",
			Name:      "api_request_duration_seconds",
			Help:      "Backend call latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(dispatchActions, apiDuration)
	})
}

// IncAction increments the dispatch counter for an action/outcome pair.
func IncAction(action, outcome string) {
	dispatchActions.WithLabelValues(action, outcome).Inc()
}

// ObserveAPIDuration records backend call latency for an endpoint label.
func ObserveAPIDuration(endpoint string, d time.Duration) {
	apiDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}
