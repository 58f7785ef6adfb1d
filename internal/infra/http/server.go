package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/infra/metrics"
)

type Server struct {
	srv *http.Server
}

// Deps сервисы, которые обслуживает API. Metrics и Gatherer могут быть nil.
type Deps struct {
	Ledger     Ledger
	Materials  Materials
	Products   Products
	Calculator Calculator
	Invoices   Ingester
	Log        *slog.Logger
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
}

func New(addr string, exposeMetrics bool, deps Deps) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           NewRouter(exposeMetrics, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

func NewRouter(exposeMetrics bool, deps Deps) http.Handler {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(deps.Log, deps.Metrics))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if exposeMetrics {
		if deps.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
		} else {
			r.Handle("/metrics", promhttp.Handler())
		}
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/materials/{id}/price", h.currentPrice)
		r.Post("/materials/{id}/prices", h.recordPrice)
		r.Get("/materials/{id}/history", h.materialHistory)
		r.Get("/history", h.overview)
		r.Get("/products/{id}/cost", h.productCost)
		r.Post("/invoices", h.ingestInvoice)
	})
	return r
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
