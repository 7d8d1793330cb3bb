package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the forum's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plforum",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plforum",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	pointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plforum",
			Subsystem: "points",
			Name:      "awarded_total",
			Help:      "Points awarded, by kind.",
		},
		[]string{"kind"},
	)

	pointsSpent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plforum",
			Subsystem: "points",
			Name:      "spent_total",
			Help:      "Points spent, by action.",
		},
		[]string{"action"},
	)

	quotaDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plforum",
			Subsystem: "downloads",
			Name:      "quota_decisions_total",
			Help:      "Download quota decisions.",
		},
		[]string{"result"},
	)

	rbacDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plforum",
			Subsystem: "rbac",
			Name:      "decisions_total",
			Help:      "Policy enforcement decisions.",
		},
		[]string{"result", "source"},
	)

	rbacReloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "plforum",
			Subsystem: "rbac",
			Name:      "policy_reloads_total",
			Help:      "Number of times the policy model was reloaded from the store.",
		},
	)

	auditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "plforum",
			Subsystem: "audit",
			Name:      "write_failures_total",
			Help:      "Audit log writes that failed and were dropped.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		pointsAwarded,
		pointsSpent,
		quotaDecisions,
		rbacDecisions,
		rbacReloads,
		auditWriteFailures,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ObserveHTTP(method, path, status string, seconds float64) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(seconds)
}

func PointsAwarded(kind string, amount int) {
	if amount > 0 {
		pointsAwarded.WithLabelValues(kind).Add(float64(amount))
	}
}

func PointsSpent(action string, amount int) {
	if amount > 0 {
		pointsSpent.WithLabelValues(action).Add(float64(amount))
	}
}

func QuotaDecision(ok bool) {
	if ok {
		quotaDecisions.WithLabelValues("allowed").Inc()
		return
	}
	quotaDecisions.WithLabelValues("denied").Inc()
}

func RBACDecision(allowed bool, source string) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	rbacDecisions.WithLabelValues(result, source).Inc()
}

func RBACReload() { rbacReloads.Inc() }

func AuditWriteFailed() { auditWriteFailures.Inc() }
