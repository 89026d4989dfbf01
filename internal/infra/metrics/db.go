package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(dbQueryErrorsTotal)
}

var dbQueryErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_query_errors_total",
		Help: "Database query errors by operation.",
	},
	[]string{"op"},
)

func IncDBQueryError(op string) {
	dbQueryErrorsTotal.WithLabelValues(op).Inc()
}
