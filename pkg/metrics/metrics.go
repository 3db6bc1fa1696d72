package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopcore"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Middleware labels by route template, not raw path, to keep cardinality bounded.
func (m *ServerMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			handler := c.Path()
			if handler == "" {
				handler = "unknown"
			}
			m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
			return err
		}
	}
}

// ShopMetrics counts domain events. A nil *ShopMetrics records nothing.
type ShopMetrics struct {
	ordersCreated     prometheus.Counter
	orderConflicts    prometheus.Counter
	ordersCancelled   prometheus.Counter
	statusTransitions *prometheus.CounterVec
	cartMutations     *prometheus.CounterVec
}

func NewShopMetrics(reg prometheus.Registerer, service string) *ShopMetrics {
	m := &ShopMetrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: service,
			Name: "orders_created_total", Help: "Orders committed.",
		}),
		orderConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: service,
			Name: "checkout_conflicts_total", Help: "Checkouts rejected for stock or availability.",
		}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: service,
			Name: "orders_cancelled_total", Help: "Orders cancelled with stock restored.",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: service,
			Name: "order_status_transitions_total", Help: "Order status changes by target status.",
		}, []string{"status"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: service,
			Name: "cart_mutations_total", Help: "Cart mutations by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.ordersCreated, m.orderConflicts, m.ordersCancelled, m.statusTransitions, m.cartMutations)
	return m
}

func (m *ShopMetrics) OrderCreated() {
	if m != nil {
		m.ordersCreated.Inc()
	}
}

func (m *ShopMetrics) CheckoutConflict() {
	if m != nil {
		m.orderConflicts.Inc()
	}
}

func (m *ShopMetrics) OrderCancelled() {
	if m != nil {
		m.ordersCancelled.Inc()
	}
}

func (m *ShopMetrics) StatusChanged(status string) {
	if m != nil {
		m.statusTransitions.WithLabelValues(status).Inc()
	}
}

func (m *ShopMetrics) CartMutation(op string) {
	if m != nil {
		m.cartMutations.WithLabelValues(op).Inc()
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
