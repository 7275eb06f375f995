package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeClosed  = "closed"
)

var (
	// Registry is the dedicated registry served at /metrics.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mileage_http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "mileage_http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Settlements counts single submission settlements by outcome.
	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mileage_settlements_total", Help: "Submission settlements by outcome."},
		[]string{"outcome"},
	)
	BulkSettlements = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "mileage_bulk_settlements_total", Help: "Bulk settlement runs."},
	)
	SettlementAmount = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "mileage_settlement_amount", Help: "Settled amounts in currency units.", Buckets: []float64{10000, 50000, 100000, 200000, 500000, 1000000, 2000000}},
	)
)

var regOnce sync.Once

// RegisterDefault registers every collector once per process.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Settlements)
		Registry.MustRegister(BulkSettlements)
		Registry.MustRegister(SettlementAmount)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

func ObserveSettlement(amount int64) {
	Settlements.WithLabelValues(OutcomeSuccess).Inc()
	SettlementAmount.Observe(float64(amount))
}

func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
