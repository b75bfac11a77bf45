package obs

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics groups Prometheus collectors for HTTP observability.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics registers and returns HTTP metrics collectors.
func NewHTTPMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500}
	} else {
		sort.Float64s(buckets)
	}
	m := &HTTPMetrics{
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency distribution in milliseconds.",
			Buckets:   buckets,
		}, []string{"method", "route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
	}
	m.ReqTotal = register(reg, m.ReqTotal)
	m.ReqDur = register(reg, m.ReqDur)
	m.InFlight = register(reg, m.InFlight)
	return m
}

// Middleware counts and times every request by its route pattern.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.InFlight.Inc()
			start := time.Now()
			err := next(c)
			m.InFlight.Dec()
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unknown"
			}
			status := strconv.Itoa(c.Response().Status)
			m.ReqTotal.WithLabelValues(c.Request().Method, route, status).Inc()
			m.ReqDur.WithLabelValues(c.Request().Method, route).Observe(DurationMillis(time.Since(start)))
			return nil
		}
	}
}

// Handler exposes the collectors of gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) echo.HandlerFunc {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// DomainMetrics counts billing events. A nil *DomainMetrics records nothing.
type DomainMetrics struct {
	InvoicesCreated  *prometheus.CounterVec
	StatusChanges    *prometheus.CounterVec
	OverdueMarked    prometheus.Counter
	TotalsMismatches prometheus.Counter
	PDFRenderDur     prometheus.Histogram
}

func NewDomainMetrics(namespace string, reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &DomainMetrics{
		InvoicesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_created_total",
			Help:      "Invoices created, by GST split.",
		}, []string{"gst_type"}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_status_changes_total",
			Help:      "Invoice status transitions, by target status.",
		}, []string{"status"}),
		OverdueMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_marked_overdue_total",
			Help:      "Invoices moved to overdue by the scheduler.",
		}),
		TotalsMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_totals_mismatches_total",
			Help:      "Stored invoice totals found to disagree with a recomputation.",
		}),
		PDFRenderDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invoice_pdf_render_duration_ms",
			Help:      "Invoice PDF render latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}
	m.InvoicesCreated = register(reg, m.InvoicesCreated)
	m.StatusChanges = register(reg, m.StatusChanges)
	m.OverdueMarked = register(reg, m.OverdueMarked)
	m.TotalsMismatches = register(reg, m.TotalsMismatches)
	m.PDFRenderDur = register(reg, m.PDFRenderDur)
	return m
}

func (m *DomainMetrics) InvoiceCreated(gstType string) {
	if m == nil {
		return
	}
	if gstType == "" {
		gstType = "none"
	}
	m.InvoicesCreated.WithLabelValues(gstType).Inc()
}

func (m *DomainMetrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.StatusChanges.WithLabelValues(status).Inc()
}

func (m *DomainMetrics) MarkedOverdue(n int) {
	if m == nil {
		return
	}
	m.OverdueMarked.Add(float64(n))
}

func (m *DomainMetrics) Mismatches(n int) {
	if m == nil {
		return
	}
	m.TotalsMismatches.Add(float64(n))
}

func (m *DomainMetrics) ObservePDFRender(d time.Duration) {
	if m == nil {
		return
	}
	m.PDFRenderDur.Observe(DurationMillis(d))
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// register returns the collector already registered under the same name, if any.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register collector: %w", err))
	}
	return c
}
