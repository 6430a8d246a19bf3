package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoundTotal is the total number of simulation rounds, by outcome.
	RoundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedsim_round_total",
			Help: "Total number of simulation rounds",
		},
		[]string{"strategy", "outcome"},
	)

	RoundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fedsim_round_duration_seconds",
			Help:    "Simulation round duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"strategy"},
	)

	ClientFitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedsim_client_fit_total",
			Help: "Total number of client fit executions",
		},
		[]string{"strategy", "outcome"},
	)

	ClientFitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fedsim_client_fit_duration_seconds",
			Help:    "Client fit duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"strategy"},
	)

	AggregationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedsim_aggregation_total",
			Help: "Total number of aggregations performed",
		},
		[]string{"strategy"},
	)

	CentralLoss = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fedsim_central_loss",
			Help: "Latest centralized evaluation loss of the global model",
		},
		[]string{"strategy"},
	)

	ParticipantsSampled = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fedsim_participants_sampled",
			Help: "Number of clients sampled in the latest round",
		},
		[]string{"strategy"},
	)
)
