package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics owns every collector of the service, registered on the registerer
// it was built with. It implements protocols.Observer.
type Metrics struct {
	ReservationsTotal *prometheus.CounterVec
	LowStockGauge     prometheus.Gauge
	RequestTotal      *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReservationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_reservations_total",
				Help: "Reservation transitions by outcome",
			},
			[]string{"outcome"},
		),
		LowStockGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "inventory_low_stock_items",
				Help: "Number of items in LOW_STOCK status at the last sweep",
			},
		),
		RequestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

func (m *Metrics) ReservationCreated()   { m.ReservationsTotal.WithLabelValues("created").Inc() }
func (m *Metrics) ReservationConfirmed() { m.ReservationsTotal.WithLabelValues("confirmed").Inc() }
func (m *Metrics) ReservationReleased()  { m.ReservationsTotal.WithLabelValues("released").Inc() }
func (m *Metrics) ReservationExpired()   { m.ReservationsTotal.WithLabelValues("expired").Inc() }

func (m *Metrics) LowStockItems(count int64) {
	m.LowStockGauge.Set(float64(count))
}

// Middleware records request count and latency. Routes are labeled by their
// gin pattern so path parameters do not explode label cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()
		path := NormalizePath(c.FullPath())
		status := strconv.Itoa(c.Writer.Status())
		m.RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func NormalizePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimPrefix(p, "api/v1/inventory")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "root"
	}
	return p
}
