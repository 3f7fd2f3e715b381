package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/datametry/edr/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bytesBucket = prometheus.ExponentialBuckets(64, 4, 8)

	httpRequestsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "notification",
		Name:      "in_flight_requests",
		Help:      "A gauge of in-flight requests for the wrapped client.",
	}, []string{"host"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "notification",
		Name:      "requests_total",
		Help:      "A counter for requests from the wrapped client.",
	}, []string{"host", "code"})

	httpRequestBytesSent = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "notification",
		Name:      "request_bytes",
		Help:      "A histogram of request sizes for requests from the wrapped client.",
		Buckets:   bytesBucket,
	}, []string{"host"})

	httpRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "notification",
		Name:      "request_duration_seconds",
		Help:      "A histogram of request latencies.",
	}, []string{"host"})
)

type roundTripper struct {
	next http.RoundTripper
}

// NewRoundTripper instruments the notification http client.  Only the host is used as a label since
// webhook paths carry secrets.
func NewRoundTripper(next http.RoundTripper) http.RoundTripper {
	return &roundTripper{next: next}
}

func (rt *roundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	host := r.URL.Host
	httpRequestsInFlight.WithLabelValues(host).Inc()
	defer httpRequestsInFlight.WithLabelValues(host).Dec()

	resp, err := rt.next.RoundTrip(r)
	latency := time.Since(start)

	code := "error"
	if err == nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	logger.Debugf("completed request to %s in %.3fs with status code: %s", host, latency.Seconds(), code)

	httpRequestLatency.WithLabelValues(host).Observe(latency.Seconds())
	httpRequestBytesSent.WithLabelValues(host).Observe(float64(r.ContentLength))
	httpRequestsTotal.WithLabelValues(host, code).Inc()
	return resp, err
}
