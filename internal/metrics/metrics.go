package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"sync"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_recheck_sweep_duration_seconds",
			Help:    "Duration of each recheck sweep over all notifying searches in seconds.",
			Buckets: []float64{1, 10, 60, 300, 900, 1800},
		},
	)
	RecheckStepDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "tracker_recheck_step_duration_seconds",
			Help:       "Duration of each step in the search recheck process.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step"},
	)
	NewAdsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_new_ads_total",
			Help: "Total number of new ads found by rechecks.",
		},
		[]string{"platform"},
	)
	RecheckFailuresCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_recheck_failures_total",
			Help: "Total number of rechecks that could not fetch ads.",
		},
		[]string{"platform"},
	)
	StoreTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_store_transactions_total",
			Help: "Total number of store write transactions by outcome.",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ErrorsCounter)
		prometheus.MustRegister(SweepDuration)
		prometheus.MustRegister(RecheckStepDuration)
		prometheus.MustRegister(NewAdsCounter)
		prometheus.MustRegister(RecheckFailuresCounter)
		prometheus.MustRegister(StoreTransactions)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
