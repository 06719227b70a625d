package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮件指标
	EmailsIngested  prometheus.Counter
	InvalidPayloads prometheus.Counter
	ActionsApplied  *prometheus.CounterVec

	// 上游代理指标
	ProxyRequests *prometheus.CounterVec
}

// NewMetrics 创建监控指标
//
// 使用 promauto 自动注册到默认 registry，进程内只能调用一次。
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdash_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opsdash_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		EmailsIngested: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "opsdash_emails_ingested_total",
				Help: "Total number of normalized email records stored",
			},
		),
		InvalidPayloads: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "opsdash_invalid_payloads_total",
				Help: "Total number of inbound payloads rejected by validation",
			},
		),
		ActionsApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdash_email_actions_total",
				Help: "Total number of email actions applied",
			},
			[]string{"action"},
		),
		ProxyRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdash_proxy_requests_total",
				Help: "Total number of upstream proxy requests",
			},
			[]string{"upstream", "status_code"},
		),
	}
}

// HTTPHandler 返回 Prometheus 指标端点处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}

// HTTPMetrics HTTP 指标中间件
func (m *Metrics) HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// RecordEmailsIngested 记录摄取的邮件数量
func (m *Metrics) RecordEmailsIngested(count int) {
	m.EmailsIngested.Add(float64(count))
}

// RecordInvalidPayload 记录被拒绝的载荷
func (m *Metrics) RecordInvalidPayload() {
	m.InvalidPayloads.Inc()
}

// RecordAction 记录一次邮件动作
func (m *Metrics) RecordAction(action string) {
	m.ActionsApplied.WithLabelValues(action).Inc()
}

// RecordProxyRequest 记录一次上游代理请求
func (m *Metrics) RecordProxyRequest(upstream string, statusCode int) {
	m.ProxyRequests.WithLabelValues(upstream, strconv.Itoa(statusCode)).Inc()
}
