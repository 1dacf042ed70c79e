// Package observability configures tracing export and holds the
// service-level Prometheus collectors shared by the HTTP and persistence
// layers. HTTP traffic metrics live with their middleware; the collectors
// here describe the subscription domain itself.
package observability

import "github.com/prometheus/client_golang/prometheus"

// Subscription outcomes recorded by SubscriptionsTotal.
const (
	ResultCreated   = "created"
	ResultDuplicate = "duplicate"
	ResultInvalid   = "invalid"
	ResultError     = "error"
)

var (
	// SubscriptionsTotal counts subscribe attempts by outcome.
	SubscriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_total",
			Help: "Subscribe attempts by result (created, duplicate, invalid, error).",
		},
		[]string{"result"},
	)

	// RateLimitRejections counts 429 responses by limiter name.
	RateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by a rate limiter.",
		},
		[]string{"limiter"},
	)

	// DBConnected is 1 while the last connectivity probe succeeded.
	DBConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connected",
			Help: "Whether the database answered the most recent probe (1) or not (0).",
		},
	)
)

func init() {
	prometheus.MustRegister(SubscriptionsTotal, RateLimitRejections, DBConnected)
}

// SetDBConnected records the database connectivity state.
func SetDBConnected(ok bool) {
	if ok {
		DBConnected.Set(1)
		return
	}
	DBConnected.Set(0)
}
