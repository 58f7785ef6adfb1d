package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/materials"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/pricing"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/suppliers"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

// RecordedPricePlaces знаков цены за единицу закупки, записываемой в историю.
const RecordedPricePlaces = 4

type MaterialResolver interface {
	GetByID(ctx context.Context, id int64) (*materials.Material, error)
	GetByName(ctx context.Context, name string) (*materials.Material, error)
}

type SupplierResolver interface {
	GetOrCreate(ctx context.Context, name, cnpj string) (*suppliers.Supplier, error)
}

type PriceRecorder interface {
	RecordPrice(ctx context.Context, materialID int64, price decimal.Decimal, observedAt time.Time, src pricing.Source) (pricing.PriceRecord, bool, error)
}

type Store interface {
	FindByHash(ctx context.Context, hash string) (*Invoice, error)
	// Save сохраняет накладную со строками, проставляет ID.
	Save(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id int64) (*Invoice, error)
}

// Recorder метрики импорта.
type Recorder interface {
	InvoiceIngested(origin string, items int)
	ItemFlagged(flag string)
	ItemRejected(reason string)
}

type nopRecorder struct{}

func (nopRecorder) InvoiceIngested(string, int) {}
func (nopRecorder) ItemFlagged(string)          {}
func (nopRecorder) ItemRejected(string)         {}

// ItemResult итог по строке. Err: ошибка уровня строки (материал не найден,
// цена некорректна, наблюдение старше текущей цены), накладная при этом сохраняется.
type ItemResult struct {
	Index   int
	Item    LineItem
	Price   *pricing.PriceRecord
	Changed bool
	Err     error
}

type Result struct {
	Invoice Invoice
	Items   []ItemResult
}

// Service импорт накладных: нормализация, сопоставление материалов, запись цен.
type Service struct {
	norm      Normalizer
	materials MaterialResolver
	suppliers SupplierResolver
	prices    PriceRecorder
	store     Store
	log       *slog.Logger
	workers   int
	metrics   Recorder
	now       func() time.Time
}

type ServiceOption func(*Service)

func WithWorkers(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithClock источник даты для накладных без даты выдачи.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

func NewService(norm Normalizer, mats MaterialResolver, sups SupplierResolver, prices PriceRecorder, store Store, log *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		norm:      norm,
		materials: mats,
		suppliers: sups,
		prices:    prices,
		store:     store,
		log:       log,
		workers:   4,
		metrics:   nopRecorder{},
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Ingest(ctx context.Context, b Batch) (Result, error) {
	if len(b.Items) == 0 {
		return Result{}, ErrEmptyInvoice
	}
	h := b.Header
	if h.Origin == "" {
		h.Origin = pricing.OriginManual
	}
	if h.IssuedAt.IsZero() {
		h.IssuedAt = s.now()
	}

	if h.FileHash != "" {
		dup, err := s.store.FindByHash(ctx, h.FileHash)
		if err != nil {
			return Result{}, err
		}
		if dup != nil {
			return Result{Invoice: *dup}, fmt.Errorf("%w: id=%d hash=%s", ErrDuplicateInvoice, dup.ID, h.FileHash)
		}
	}

	supplierID, err := s.resolveSupplier(ctx, h)
	if err != nil {
		return Result{}, err
	}

	items := s.norm.NormalizeAll(b.Items)
	results := make([]ItemResult, len(items))
	mats := make(map[int64]*materials.Material)
	for i := range items {
		results[i].Index = i
		m, err := s.resolveMaterial(ctx, items[i])
		if err != nil {
			return Result{}, err
		}
		if m == nil {
			results[i].Err = fmt.Errorf("%w: %q", ErrUnknownMaterial, items[i].Material)
		} else {
			items[i].MaterialID = m.ID
			mats[m.ID] = m
		}
		results[i].Item = items[i]
	}

	inv := newInvoice(h, supplierID, items)
	if err := s.store.Save(ctx, &inv); err != nil {
		return Result{}, err
	}

	// строки одного материала по порядку, разные материалы параллельно
	var order []int64
	groups := make(map[int64][]int)
	for i, r := range results {
		if r.Err != nil {
			continue
		}
		id := r.Item.MaterialID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], i)
	}

	src := pricing.Source{SupplierID: supplierID, InvoiceID: &inv.ID, Origin: h.Origin}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, id := range order {
		idx := groups[id]
		m := mats[id]
		g.Go(func() error {
			for _, i := range idx {
				if err := s.recordItem(gctx, m, h.IssuedAt, src, &results[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{Invoice: inv, Items: results}, err
	}

	for _, r := range results {
		for _, f := range r.Item.Flags {
			s.metrics.ItemFlagged(string(f))
		}
		if len(r.Item.Flags) > 0 {
			s.log.Warn("invoice item flagged",
				"invoice_id", inv.ID,
				"item", r.Index,
				"material", r.Item.Material,
				"flags", r.Item.Flags,
			)
		}
		if r.Err != nil {
			s.metrics.ItemRejected(rejectReason(r.Err))
			s.log.Warn("invoice item skipped", "invoice_id", inv.ID, "item", r.Index, "err", r.Err)
		}
	}
	s.metrics.InvoiceIngested(string(h.Origin), len(items))
	s.log.Info("invoice ingested",
		"invoice_id", inv.ID,
		"number", inv.Number,
		"items", len(items),
		"total", inv.Total.StringFixed(2),
	)
	return Result{Invoice: inv, Items: results}, nil
}

// recordItem ошибки уровня строки пишет в res, возвращает только ошибки хранилища.
func (s *Service) recordItem(ctx context.Context, m *materials.Material, issuedAt time.Time, src pricing.Source, res *ItemResult) error {
	price, err := m.Conversion().PurchasePriceFrom(res.Item.UnitPriceExact, res.Item.Unit)
	if err != nil {
		if errors.Is(err, units.ErrIncompatibleUnit) || errors.Is(err, units.ErrInvalidConversionFactor) {
			res.Err = err
			return nil
		}
		return err
	}
	price = price.Round(RecordedPricePlaces)
	at := res.Item.ObservedAt
	if at.IsZero() {
		at = issuedAt
	}
	rec, changed, err := s.prices.RecordPrice(ctx, m.ID, price, at, src)
	switch {
	case errors.Is(err, pricing.ErrInvalidPrice),
		errors.Is(err, pricing.ErrOutOfOrderObservation),
		errors.Is(err, pricing.ErrUnknownMaterial):
		res.Err = err
		return nil
	case err != nil:
		return err
	}
	res.Price = &rec
	res.Changed = changed
	return nil
}

func (s *Service) resolveMaterial(ctx context.Context, li LineItem) (*materials.Material, error) {
	if li.MaterialID > 0 {
		return s.materials.GetByID(ctx, li.MaterialID)
	}
	if li.Material == "" {
		return nil, nil
	}
	return s.materials.GetByName(ctx, li.Material)
}

func (s *Service) resolveSupplier(ctx context.Context, h Header) (*int64, error) {
	if h.SupplierID != nil {
		return h.SupplierID, nil
	}
	if h.SupplierName == "" && h.SupplierCNPJ == "" {
		return nil, nil
	}
	sup, err := s.suppliers.GetOrCreate(ctx, h.SupplierName, h.SupplierCNPJ)
	if err != nil {
		return nil, err
	}
	if sup == nil {
		return nil, nil
	}
	return &sup.ID, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownMaterial):
		return "unknown_material"
	case errors.Is(err, pricing.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, pricing.ErrOutOfOrderObservation):
		return "out_of_order"
	case errors.Is(err, units.ErrIncompatibleUnit):
		return "incompatible_unit"
	}
	return "other"
}
