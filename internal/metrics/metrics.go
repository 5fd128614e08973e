// Package metrics содержит Prometheus-метрики сервиса.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CaseTransitionsTotal переходы дел по целевому статусу и результату.
	CaseTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resolveit",
			Subsystem: "cases",
			Name:      "transitions_total",
			Help:      "Total number of case status transitions by target status and result",
		},
		[]string{"status", "result"},
	)

	// CasesFiledTotal поданные дела.
	CasesFiledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resolveit",
			Subsystem: "cases",
			Name:      "filed_total",
			Help:      "Total number of filed cases",
		},
	)

	// AgreementSignaturesTotal подписи соглашений; consensus=true для подписи, завершившей консенсус.
	AgreementSignaturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resolveit",
			Subsystem: "agreements",
			Name:      "signatures_total",
			Help:      "Total number of agreement signatures",
		},
		[]string{"consensus"},
	)

	// NotificationsTotal записи уведомлений по результату.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resolveit",
			Subsystem: "fanout",
			Name:      "notifications_total",
			Help:      "Total number of notification writes by result",
		},
		[]string{"result"},
	)

	// RealtimeDroppedTotal потерянные realtime-события.
	RealtimeDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resolveit",
			Subsystem: "realtime",
			Name:      "dropped_total",
			Help:      "Total number of dropped realtime events",
		},
		[]string{"reason"},
	)

	// RealtimeClients открытые WebSocket-соединения.
	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "resolveit",
			Subsystem: "realtime",
			Name:      "clients",
			Help:      "Number of connected realtime clients",
		},
	)

	// AuditEventsTotal события потока аудита по результату.
	AuditEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resolveit",
			Subsystem: "audit",
			Name:      "events_total",
			Help:      "Total number of case audit events by result",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal входящие HTTP-запросы.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resolveit",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration длительность обработки HTTP-запросов.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "resolveit",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
)

// Middleware считает запросы по шаблону маршрута.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler отдаёт метрики в формате Prometheus.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
