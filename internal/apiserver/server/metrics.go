// Package server Prometheus 指标导出
package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有 API Server 指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// 业务指标
	LeadsTotal         *prometheus.GaugeVec
	UploadsTotal       *prometheus.CounterVec
	UploadBytesTotal   prometheus.Counter
	LoginAttemptsTotal *prometheus.CounterVec
}

// NewMetrics 创建指标实例
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		LeadsTotal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "leads_total",
				Help:      "Total leads by status",
			},
			[]string{"status"},
		),
		UploadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "file_uploads_total",
				Help:      "Total file uploads by result",
			},
			[]string{"result"},
		),
		UploadBytesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "file_upload_bytes_total",
				Help:      "Total bytes of accepted file uploads",
			},
		),
		LoginAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Total login attempts by result",
			},
			[]string{"result"},
		),
	}
}

// MetricsMiddleware 创建 HTTP 指标中间件
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// 包装 ResponseWriter 以捕获状态码
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath 规范化路径，将 ID 替换为占位符避免高基数
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/leads/edit/"):
		return "/leads/edit/{id}"
	case strings.HasPrefix(path, "/leads/stats/"):
		return path
	case strings.HasPrefix(path, "/leads/") && strings.HasSuffix(path, "/notes"):
		return "/leads/{id}/notes"
	case strings.HasPrefix(path, "/leads/") && path != "/leads/create":
		return "/leads/{id}"
	case strings.HasPrefix(path, "/files/upload/"):
		return "/files/upload/{leadId}"
	case strings.HasPrefix(path, "/files/download/"):
		return "/files/download/{fileId}"
	case strings.HasPrefix(path, "/files/lead/"):
		return "/files/lead/{leadId}"
	case strings.HasPrefix(path, "/files/"):
		return "/files/{fileId}"
	default:
		return path
	}
}

// MetricsHandler 返回 Prometheus HTTP Handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordUpload 记录一次上传结果
func (m *Metrics) RecordUpload(result string, bytes int64) {
	m.UploadsTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.UploadBytesTotal.Add(float64(bytes))
	}
}

// RecordLogin 记录一次登录尝试
func (m *Metrics) RecordLogin(result string) {
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

// SetLeadsCount 设置线索数量
func (m *Metrics) SetLeadsCount(status string, count int64) {
	m.LeadsTotal.WithLabelValues(status).Set(float64(count))
}
