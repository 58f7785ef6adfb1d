package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics счётчики леджера, импорта накладных и HTTP.
// Реализует pricing.Recorder и invoices.Recorder.
type Metrics struct {
	priceObservations *prometheus.CounterVec
	priceConflicts    prometheus.Counter
	invoices          *prometheus.CounterVec
	invoiceItems      *prometheus.CounterVec
	itemFlags         *prometheus.CounterVec
	itemRejects       *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		priceObservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcmcost",
			Name:      "price_observations_total",
			Help:      "Price observations processed by the ledger, by outcome.",
		}, []string{"outcome"}),
		priceConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mcmcost",
			Name:      "price_update_conflicts_total",
			Help:      "Concurrent price update conflicts.",
		}),
		invoices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcmcost",
			Name:      "invoices_ingested_total",
			Help:      "Invoices ingested, by origin.",
		}, []string{"origin"}),
		invoiceItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcmcost",
			Name:      "invoice_items_total",
			Help:      "Invoice line items ingested, by origin.",
		}, []string{"origin"}),
		itemFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcmcost",
			Name:      "invoice_item_flags_total",
			Help:      "Normalizer flags raised on invoice items.",
		}, []string{"flag"}),
		itemRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcmcost",
			Name:      "invoice_items_rejected_total",
			Help:      "Invoice items that did not produce a price observation.",
		}, []string{"reason"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcmcost",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.priceObservations,
		m.priceConflicts,
		m.invoices,
		m.invoiceItems,
		m.itemFlags,
		m.itemRejects,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) PriceObserved(changed bool) {
	if changed {
		m.priceObservations.WithLabelValues("changed").Inc()
		return
	}
	m.priceObservations.WithLabelValues("unchanged").Inc()
}

func (m *Metrics) PriceConflict() { m.priceConflicts.Inc() }

func (m *Metrics) InvoiceIngested(origin string, items int) {
	m.invoices.WithLabelValues(origin).Inc()
	m.invoiceItems.WithLabelValues(origin).Add(float64(items))
}

func (m *Metrics) ItemFlagged(flag string) { m.itemFlags.WithLabelValues(flag).Inc() }

func (m *Metrics) ItemRejected(reason string) { m.itemRejects.WithLabelValues(reason).Inc() }

// ObserveHTTP route: шаблон маршрута, а не фактический путь.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if status == 0 {
		status = http.StatusOK
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
