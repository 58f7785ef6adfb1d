package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultMaxRetries = 3

// Ledger история цен материалов: запись новых наблюдений и чтение истории.
type Ledger struct {
	store      Store
	catalog    Catalog
	log        *slog.Logger
	detector   Detector
	maxRetries int
	metrics    Recorder
	locks      *keyedMutex
	now        func() time.Time
}

type Option func(*Ledger)

func WithEpsilon(eps float64) Option {
	return func(l *Ledger) { l.detector = NewDetector(eps) }
}

func WithMaxRetries(n int) Option {
	return func(l *Ledger) {
		if n >= 0 {
			l.maxRetries = n
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(l *Ledger) {
		if r != nil {
			l.metrics = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(store Store, catalog Catalog, log *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:      store,
		catalog:    catalog,
		log:        log,
		detector:   NewDetector(DefaultEpsilon),
		maxRetries: DefaultMaxRetries,
		metrics:    nopRecorder{},
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	return l
}

// RecordPrice регистрирует наблюдённую цену за единицу закупки.
// Возвращает текущую открытую запись и признак того, что цена изменилась.
func (l *Ledger) RecordPrice(ctx context.Context, materialID int64, price decimal.Decimal, observedAt time.Time, src Source) (PriceRecord, bool, error) {
	if price.Sign() <= 0 {
		return PriceRecord{}, false, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	if err := l.ensureMaterial(ctx, materialID); err != nil {
		return PriceRecord{}, false, err
	}
	if observedAt.IsZero() {
		observedAt = l.now()
	}
	obs := Observation{MaterialID: materialID, Price: price, ObservedAt: observedAt, Source: src}

	unlock := l.locks.Lock(materialID)
	defer unlock()

	for attempt := 0; ; attempt++ {
		open, err := l.store.Open(ctx, materialID)
		if err != nil {
			return PriceRecord{}, false, err
		}
		d, err := l.detector.Detect(open, obs)
		if err != nil {
			return PriceRecord{}, false, err
		}
		rec, err := l.store.Apply(ctx, d)
		if errors.Is(err, ErrConcurrentPriceUpdate) {
			l.metrics.PriceConflict()
			if attempt < l.maxRetries {
				l.log.Warn("price update conflict, retrying", "material_id", materialID, "attempt", attempt+1)
				continue
			}
			return PriceRecord{}, false, err
		}
		if err != nil {
			return PriceRecord{}, false, err
		}

		l.metrics.PriceObserved(d.Changed)
		if d.Changed {
			l.log.Info("price changed",
				"material_id", materialID,
				"price", rec.UnitPrice.String(),
				"variation", pctString(rec.VariationPct),
				"origin", string(rec.Origin),
			)
		}
		return rec, d.Changed, nil
	}
}

func (l *Ledger) CurrentPrice(ctx context.Context, materialID int64) (PriceRecord, error) {
	if err := l.ensureMaterial(ctx, materialID); err != nil {
		return PriceRecord{}, err
	}
	open, err := l.store.Open(ctx, materialID)
	if err != nil {
		return PriceRecord{}, err
	}
	if open == nil {
		return PriceRecord{}, ErrNotFound
	}
	return *open, nil
}

// History история материала, новые записи первыми.
func (l *Ledger) History(ctx context.Context, materialID int64) ([]PriceRecord, error) {
	if err := l.ensureMaterial(ctx, materialID); err != nil {
		return nil, err
	}
	recs, err := l.store.History(ctx, materialID)
	if err != nil {
		return nil, err
	}
	annotate(recs)
	return recs, nil
}

// HistoryFiltered вариация считается до фильтрации, относительно реальной предыдущей записи.
func (l *Ledger) HistoryFiltered(ctx context.Context, materialID int64, f HistoryFilter) ([]PriceRecord, error) {
	recs, err := l.History(ctx, materialID)
	if err != nil {
		return nil, err
	}
	return filter(recs, f), nil
}

func (l *Ledger) HistoryForAllMaterials(ctx context.Context) (map[int64][]PriceRecord, error) {
	all, err := l.store.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, recs := range all {
		annotate(recs)
	}
	return all, nil
}

type Page struct {
	Items    []PriceRecord
	Total    int
	Page     int
	PageSize int
}

// Overview все записи всех материалов по фильтру, постранично (страницы с 1).
func (l *Ledger) Overview(ctx context.Context, f HistoryFilter, page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}
	all, err := l.HistoryForAllMaterials(ctx)
	if err != nil {
		return Page{}, err
	}

	var flat []PriceRecord
	for _, recs := range all {
		flat = append(flat, filter(recs, f)...)
	}
	sort.SliceStable(flat, func(i, j int) bool {
		a, b := flat[i], flat[j]
		if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
			return a.EffectiveFrom.After(b.EffectiveFrom)
		}
		if a.MaterialID != b.MaterialID {
			return a.MaterialID < b.MaterialID
		}
		return a.Seq > b.Seq
	})

	p := Page{Total: len(flat), Page: page, PageSize: pageSize}
	start := (page - 1) * pageSize
	if start >= len(flat) {
		return p, nil
	}
	end := min(start+pageSize, len(flat))
	p.Items = flat[start:end]
	return p, nil
}

func (l *Ledger) ensureMaterial(ctx context.Context, materialID int64) error {
	ok, err := l.catalog.Exists(ctx, materialID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMaterial, materialID)
	}
	return nil
}

// annotate recs по убыванию даты. Вариация, сохранённая при записи, не пересчитывается.
func annotate(recs []PriceRecord) {
	for i := range recs {
		if i+1 >= len(recs) {
			break
		}
		older := recs[i+1]
		if recs[i].VariationPct == nil {
			recs[i].VariationPct = Variation(older.UnitPrice, recs[i].UnitPrice)
		}
		abs := recs[i].UnitPrice.Sub(older.UnitPrice)
		recs[i].VariationAbs = &abs
	}
}

func filter(recs []PriceRecord, f HistoryFilter) []PriceRecord {
	out := make([]PriceRecord, 0, len(recs))
	for _, r := range recs {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out
}

func pctString(p *decimal.Decimal) string {
	if p == nil {
		return ""
	}
	return p.StringFixed(2) + "%"
}
