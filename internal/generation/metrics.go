package generation

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "generation",
			Name:      "loads_total",
			Help:      "Model load attempts by outcome",
		},
		[]string{"outcome"},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "localllm",
			Subsystem: "generation",
			Name:      "load_duration_seconds",
			Help:      "Duration of model loads in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "generate_content calls by outcome",
		},
		[]string{"outcome"},
	)

	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "generation",
			Name:      "tokens_total",
			Help:      "Tokens processed, by kind (prompt or candidates)",
		},
		[]string{"kind"},
	)

	generateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "localllm",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Duration of successful generations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, loadDuration, requestsTotal, tokensTotal, generateDuration)
}

// Outcome labels for requestsTotal.
const (
	outcomeOK         = "ok"
	outcomeInvalid    = "invalid"
	outcomeLoadError  = "load_error"
	outcomeGenerError = "generation_error"
)
