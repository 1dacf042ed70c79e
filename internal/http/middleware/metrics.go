package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-subscription-service/internal/apperr"
)

// noErrorCode labels requests that finished without an attached error.
const noErrorCode = "none"

// Collectors for the HTTP surface. Route labels use the registered Gin
// pattern so an address or scanner path can never become a series.
var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route, status and error code.",
		},
		[]string{"method", "path", "status", "code"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Requests currently being served.",
		},
	)

	// Error bodies and the subscribe acknowledgement are all well under 4KiB.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response body size by method and route.",
			Buckets: []float64{64, 128, 256, 512, 1 << 10, 2 << 10, 4 << 10, 16 << 10},
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize)
}

// Metrics records Prometheus series for each request. It sits inside the
// error renderer, so an error attached with c.Error has not been written
// yet when the chain returns here; the status and code labels are then
// taken from the translated error instead of the writer.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		method := c.Request.Method
		status, code := outcome(c)

		httpReqs.WithLabelValues(method, path, strconv.Itoa(status), code).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

// outcome reports the response status and the error code of the last
// attached error, or noErrorCode.
func outcome(c *gin.Context) (int, string) {
	last := c.Errors.Last()
	if last == nil {
		return c.Writer.Status(), noErrorCode
	}
	ae := apperr.Translate(last.Err)
	if c.Writer.Written() {
		return c.Writer.Status(), string(ae.Code())
	}
	return ae.StatusCode(), string(ae.Code())
}
