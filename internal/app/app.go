// Package app собирает сервисы по конфигу: хранилища (postgres или память), леджер, импорт, HTTP.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/config"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/invoices"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/materials"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/pricing"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/products"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/suppliers"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/infra/db"
	httpx "github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/infra/http"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/infra/metrics"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type MaterialRepo interface {
	Create(ctx context.Context, name string, purchase, usage units.Code, factor decimal.Decimal) (*materials.Material, error)
	GetByID(ctx context.Context, id int64) (*materials.Material, error)
	GetByName(ctx context.Context, name string) (*materials.Material, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, onlyActive bool) ([]materials.Material, error)
}

type SupplierRepo interface {
	GetByID(ctx context.Context, id int64) (*suppliers.Supplier, error)
	GetOrCreate(ctx context.Context, name, cnpj string) (*suppliers.Supplier, error)
}

type ProductRepo interface {
	Create(ctx context.Context, name, code string) (*products.Product, error)
	GetByID(ctx context.Context, id int64) (*products.Product, error)
	List(ctx context.Context, onlyActive bool) ([]products.Product, error)
	AddComponent(ctx context.Context, productID, materialID int64, qty decimal.Decimal, unit units.Code) (*products.Component, error)
}

type App struct {
	Config     config.Config
	Log        *slog.Logger
	Materials  MaterialRepo
	Suppliers  SupplierRepo
	Products   ProductRepo
	Ledger     *pricing.Ledger
	Calculator *products.Calculator
	Invoices   *invoices.Service
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry

	closers []func()
}

type stores struct {
	materials MaterialRepo
	suppliers SupplierRepo
	products  ProductRepo
	prices    pricing.Store
	invoices  invoices.Store
}

// New поднимает хранилища по cfg.Storage.Driver. Миграции не накатывает.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	var st stores
	switch cfg.Storage.Driver {
	case DriverMemory:
		st = stores{
			materials: materials.NewMemRepo(),
			suppliers: suppliers.NewMemRepo(),
			products:  products.NewMemRepo(),
			prices:    pricing.NewMemStore(),
			invoices:  invoices.NewMemStore(),
		}
	case DriverPostgres, "":
		pool, err := db.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		st = stores{
			materials: materials.NewRepo(pool),
			suppliers: suppliers.NewRepo(pool),
			products:  products.NewRepo(pool),
			prices:    pricing.NewRepo(pool),
			invoices:  invoices.NewRepo(pool),
		}
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	a.Materials = st.materials
	a.Suppliers = st.suppliers
	a.Products = st.products
	a.Ledger = pricing.NewLedger(st.prices, st.materials, log,
		pricing.WithEpsilon(cfg.Pricing.Epsilon),
		pricing.WithMaxRetries(cfg.Pricing.MaxRetries),
		pricing.WithRecorder(a.Metrics),
	)
	a.Calculator = products.NewCalculator(a.Ledger, st.materials)
	a.Invoices = invoices.NewService(
		invoices.NewNormalizer(cfg.Normalizer.TotalTolerance),
		st.materials, st.suppliers, a.Ledger, st.invoices, log,
		invoices.WithWorkers(cfg.Ingest.Workers),
		invoices.WithRecorder(a.Metrics),
	)
	log.Info("app initialized", "storage", cfg.Storage.Driver)
	return a, nil
}

func (a *App) HTTPServer() *httpx.Server {
	return httpx.New(a.Config.HTTP.Addr, a.Config.Metrics.Enabled, a.httpDeps())
}

func (a *App) httpDeps() httpx.Deps {
	return httpx.Deps{
		Ledger:     a.Ledger,
		Materials:  a.Materials,
		Products:   a.Products,
		Calculator: a.Calculator,
		Invoices:   a.Invoices,
		Log:        a.Log,
		Metrics:    a.Metrics,
		Gatherer:   a.Registry,
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
