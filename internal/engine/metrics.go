package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/docgen/internal/model"
)

// Metric label value for requests handed to a remote service.
const statusDeferred = "deferred"

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_engine_generations_total",
			Help: "Total number of generation attempts by service type and result.",
		},
		[]string{"service", "status"},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgen_engine_generation_seconds",
			Help:    "Duration of in-process document generation, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	inflightGenerations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docgen_engine_inflight_generations",
			Help: "Number of generations currently executing.",
		},
	)
)

func init() {
	prometheus.MustRegister(generationsTotal)
	prometheus.MustRegister(generationDuration)
	prometheus.MustRegister(inflightGenerations)

	for _, svc := range []string{model.ServiceLocal, model.ServiceCloud, model.ServicePrivate} {
		generationsTotal.WithLabelValues(svc, model.StatusCompleted)
		generationsTotal.WithLabelValues(svc, model.StatusFailed)
		generationsTotal.WithLabelValues(svc, statusDeferred)
	}
}
