package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiCallsLatency,
		aiProviderErrors,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_seconds",
			Help:    "Provider call latency distribution.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"provider", "success"},
	)

	aiProviderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_provider_errors_total",
			Help: "Classified provider failures.",
		},
		[]string{"provider", "class", "code"},
	)
)

func ObserveProviderCall(provider, model string, tokensIn, tokensOut int, elapsed time.Duration, success bool) {
	if success {
		lbl := []string{norm(provider), norm(model)}
		aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
		aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	}
	aiCallsLatency.WithLabelValues(norm(provider), strconv.FormatBool(success)).Observe(elapsed.Seconds())
}

func IncProviderError(provider, class, code string) {
	aiProviderErrors.WithLabelValues(norm(provider), norm(class), norm(code)).Inc()
}
