// README: Prometheus counters for HTTP traffic, lifecycle transitions, refunds and notifications.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "staybook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "status"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Committed status transitions by entity kind and target status.",
		},
		[]string{"entity", "status"},
	)

	refunds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Refund attempts by entity kind and outcome.",
		},
		[]string{"entity", "outcome"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by outcome (stored, pushed, failed).",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, transitions, refunds, notifications)
	})
}

func IncHTTP(route, status string) {
	httpRequests.WithLabelValues(route, status).Inc()
}

func IncTransition(entity, status string) {
	transitions.WithLabelValues(entity, status).Inc()
}

func IncRefund(entity, outcome string) {
	refunds.WithLabelValues(entity, outcome).Inc()
}

func IncNotification(outcome string) {
	notifications.WithLabelValues(outcome).Inc()
}
