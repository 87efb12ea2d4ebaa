package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: время REST-вызова к бэкенду
	RequestDuration *prometheus.HistogramVec

	// Errors: классификация отказов по коду ErrorClassifier
	ErrorTotal *prometheus.CounterVec

	// Состояние Circuit Breaker шлюза (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState prometheus.Gauge

	// Live Update Bridge
	BridgeConnected  prometheus.Gauge
	BridgeReconnects prometheus.Counter
	BridgeMessages   *prometheus.CounterVec
	BridgeDropped    prometheus.Counter

	// Активные уведомления
	ToastsActive prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xdr_api_request_duration_seconds",
			Help:    "Histogram of backend API call latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "endpoint", "status"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "xdr_api_errors_total",
			Help: "Total number of failed API calls by classified code.",
		}, []string{"code"}),

		CircuitBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "xdr_api_circuit_breaker_state",
			Help: "Current state of the gateway circuit breaker (0=closed, 1=half-open, 2=open).",
		}),

		BridgeConnected: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "xdr_ws_connected",
			Help: "1 while the live update websocket is connected.",
		}),

		BridgeReconnects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "xdr_ws_reconnect_attempts_total",
			Help: "Total number of websocket reconnect attempts.",
		}),

		BridgeMessages: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "xdr_ws_messages_total",
			Help: "Total number of dispatched push messages by type.",
		}, []string{"type"}),

		BridgeDropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "xdr_ws_messages_dropped_total",
			Help: "Total number of malformed push messages dropped.",
		}),

		ToastsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "xdr_toasts_active",
			Help: "Current number of visible toast notifications.",
		}),
	}
}
