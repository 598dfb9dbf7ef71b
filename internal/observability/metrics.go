package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain metrics. HTTP traffic metrics live in the middleware package.
var (
	// JobClaims counts claim attempts by result (ok, not_found, conflict, error).
	JobClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_job_claims_total",
			Help: "Claim attempts by result.",
		},
		[]string{"result"},
	)

	// JobReports counts reports by job kind and outcome.
	JobReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_job_reports_total",
			Help: "Job reports by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// ItemTransitions counts item status changes by edge.
	ItemTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_item_transitions_total",
			Help: "Order item status transitions by edge.",
		},
		[]string{"from", "to"},
	)

	// Ingested counts synced line items by result (created, updated, degraded, failed).
	Ingested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_ingested_items_total",
			Help: "Line items processed by storefront sync.",
		},
		[]string{"result"},
	)

	// PlannedSheets observes the sheet count of each computed print plan.
	PlannedSheets = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coordinator_planned_sheets",
			Help:    "Sheets per computed print plan.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)
)

func init() {
	prometheus.MustRegister(JobClaims, JobReports, ItemTransitions, Ingested, PlannedSheets)
}

// CountTransition adds n to the from -> to edge counter. n <= 0 is ignored.
func CountTransition(from, to string, n int64) {
	if n > 0 {
		ItemTransitions.WithLabelValues(from, to).Add(float64(n))
	}
}
