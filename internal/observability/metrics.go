// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec

	// Discovery metrics
	DiscoveryRuns      *prometheus.CounterVec
	HoldingsDiscovered prometheus.Counter

	// Enrichment metrics
	EnrichmentResults  *prometheus.CounterVec
	EnrichmentDuration prometheus.Histogram
	StaleRefreshes     prometheus.Counter

	// Transfer metrics
	TransfersTotal          *prometheus.CounterVec
	TransferDuration        prometheus.Histogram
	AssociatedAccountsAdded prometheus.Counter

	// Storage metrics
	StoreOperations *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "token_transfer"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Solana RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		DiscoveryRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "runs_total",
			Help:      "Token account discovery runs by status",
		}, []string{"status"}),
		HoldingsDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "holdings_total",
			Help:      "Total number of token holdings discovered",
		}),

		EnrichmentResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "results_total",
			Help:      "Per-holding enrichment outcomes",
		}, []string{"result"}),
		EnrichmentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "duration_seconds",
			Help:      "Time to enrich a full discovery list",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		StaleRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "stale_refreshes_total",
			Help:      "Refresh results discarded because the identity changed",
		}),

		TransfersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "attempts_total",
			Help:      "Transfer attempts by outcome",
		}, []string{"outcome"}),
		TransferDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "duration_seconds",
			Help:      "Time from submission request to confirmation",
			Buckets:   []float64{.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		AssociatedAccountsAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "destination_accounts_created_total",
			Help:      "Transfers that created the destination token account",
		}),

		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage operations by store, operation and status",
		}, []string{"store", "operation", "status"}),
	}
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDiscovery records a discovery run and the number of holdings found.
func RecordDiscovery(holdings int, err error) {
	if err != nil {
		DefaultMetrics.DiscoveryRuns.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.DiscoveryRuns.WithLabelValues("ok").Inc()
	DefaultMetrics.HoldingsDiscovered.Add(float64(holdings))
}

// RecordEnrichment records one holding's enrichment outcome.
func RecordEnrichment(result string) {
	DefaultMetrics.EnrichmentResults.WithLabelValues(result).Inc()
}

// RecordEnrichmentDuration records how long a full enrichment pass took.
func RecordEnrichmentDuration(seconds float64) {
	DefaultMetrics.EnrichmentDuration.Observe(seconds)
}

// RecordStaleRefresh counts a discarded refresh.
func RecordStaleRefresh() {
	DefaultMetrics.StaleRefreshes.Inc()
}

// RecordTransfer records a transfer attempt.
func RecordTransfer(outcome string, seconds float64, createdDestination bool) {
	DefaultMetrics.TransfersTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		DefaultMetrics.TransferDuration.Observe(seconds)
	}
	if createdDestination {
		DefaultMetrics.AssociatedAccountsAdded.Inc()
	}
}

// RecordStoreOp records a storage operation.
func RecordStoreOp(store, operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.StoreOperations.WithLabelValues(store, operation, status).Inc()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
