package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP与业务指标
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	alertsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_created_total",
		Help: "Alerts created by type and severity",
	}, []string{"type", "severity"})

	alertsEscalatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_escalated_total",
		Help: "Alert escalations by severity",
	}, []string{"severity"})

	telemetrySamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_samples_total",
		Help: "Telemetry samples ingested",
	})

	digitalIDsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digital_ids_issued_total",
		Help: "Digital ID cards issued",
	})
)

// AlertsCreated 记录一次告警创建
func AlertsCreated(alertType, severity string) {
	alertsCreatedTotal.WithLabelValues(alertType, severity).Inc()
}

// AlertsEscalated 记录一次告警升级
func AlertsEscalated(severity string) {
	alertsEscalatedTotal.WithLabelValues(severity).Inc()
}

// TelemetrySample 记录一次遥测上报
func TelemetrySample() {
	telemetrySamplesTotal.Inc()
}

// DigitalIDIssued 记录一次证件签发
func DigitalIDIssued() {
	digitalIDsIssuedTotal.Inc()
}

// Middleware HTTP指标中间件
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 端点
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
