package server

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	inFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inference_in_flight_requests",
		Help: "Number of currently pending and processed inference requests.",
	})
	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inference_api_requests_total",
			Help: "A counter for requests to the inference handler.",
		},
		[]string{"code", "method"},
	)

	// duration uses custom buckets: model inference on a batch of images
	// routinely takes seconds.
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inference_request_duration_seconds",
			Help:    "A histogram of latencies for inference requests.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"handler", "method"},
	)

	requestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inference_request_size_bytes",
			Help:    "A histogram of request sizes for inference requests.",
			Buckets: []float64{1000, 100000, 1000000, 5000000, 25000000, 50000000},
		},
		[]string{},
	)
)

var registerMetrics sync.Once

// metricsHandler exposes the default prometheus registry.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// instrumentInferenceHandler wraps the inference handler with prometheus
// metrics and registers them in the default registry. Registration happens
// once per process even when tests build several servers.
func instrumentInferenceHandler(handler http.Handler) http.Handler {
	registerMetrics.Do(func() {
		prometheus.MustRegister(inFlightGauge, requestCounter, requestDuration, requestSize)
	})

	return promhttp.InstrumentHandlerInFlight(inFlightGauge,
		promhttp.InstrumentHandlerDuration(requestDuration.MustCurryWith(prometheus.Labels{"handler": "inference"}),
			promhttp.InstrumentHandlerCounter(requestCounter,
				promhttp.InstrumentHandlerRequestSize(requestSize, handler),
			),
		),
	)
}
