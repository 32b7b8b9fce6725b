package main

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brasisco/ledger"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brasisco_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brasisco_transactions_total",
		Help: "Total ledger entries appended by kind.",
	}, []string{"kind"})

	disputesFiledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brasisco_disputes_filed_total",
		Help: "Total disputes filed.",
	})
)

// requestMetrics wraps a handler and records per-request counters.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		requestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

func recordTransaction(kind ledger.Kind) {
	transactionsTotal.WithLabelValues(string(kind)).Inc()
}

func recordDisputeFiled() {
	disputesFiledTotal.Inc()
}
