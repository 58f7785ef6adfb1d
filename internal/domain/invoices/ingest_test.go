package invoices

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/materials"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/pricing"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/suppliers"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

type env struct {
	mats   *materials.MemRepo
	sups   *suppliers.MemRepo
	ledger *pricing.Ledger
	store  *MemStore
	svc    *Service
	aco    *materials.Material
	fio    *materials.Material
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := &env{
		mats:  materials.NewMemRepo(),
		sups:  suppliers.NewMemRepo(),
		store: NewMemStore(),
	}
	e.ledger = pricing.NewLedger(pricing.NewMemStore(), e.mats, log)
	e.svc = NewService(NewNormalizer(DefaultTotalTolerance), e.mats, e.sups, e.ledger, e.store, log, WithWorkers(2))

	var err error
	if e.aco, err = e.mats.Create(ctx, "Aço Carbono 1020", units.KG, units.G, dec("1000")); err != nil {
		t.Fatal(err)
	}
	if e.fio, err = e.mats.Create(ctx, "Fio de cobre esmaltado", units.KG, units.G, dec("1000")); err != nil {
		t.Fatal(err)
	}
	return e
}

var (
	jan = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	feb = time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)
)

func TestIngest_RecordsPricesAndReportsItems(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	res, err := e.svc.Ingest(ctx, Batch{
		Header: Header{
			Number:       "1234",
			Series:       "1",
			SupplierName: "Metalúrgica Paulista",
			SupplierCNPJ: "11.222.333/0001-81",
			IssuedAt:     jan,
			Origin:       pricing.OriginNotaXML,
		},
		Items: []RawLineItem{
			{Material: "aço carbono 1020", Unit: "KG", Quantity: "100", UnitPrice: "8,20"},
			{Material: "Parafuso sextavado", Unit: "UN", Quantity: "10", UnitPrice: "0,50"},
			{Material: "Fio de cobre esmaltado", Unit: "KG", Quantity: "5", UnitPrice: "sob consulta"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Invoice.ID == 0 || res.Invoice.SupplierID == nil {
		t.Fatalf("invoice not saved with supplier: %+v", res.Invoice)
	}
	if !res.Invoice.Total.Equal(dec("825")) {
		t.Errorf("invoice total = %s, want 825", res.Invoice.Total)
	}
	if len(res.Invoice.Flagged()) != 1 {
		t.Errorf("flagged items = %d, want 1", len(res.Invoice.Flagged()))
	}

	if res.Items[0].Err != nil || !res.Items[0].Changed {
		t.Errorf("item 0: %+v", res.Items[0])
	}
	if !errors.Is(res.Items[1].Err, ErrUnknownMaterial) {
		t.Errorf("item 1 err = %v, want ErrUnknownMaterial", res.Items[1].Err)
	}
	if !errors.Is(res.Items[2].Err, pricing.ErrInvalidPrice) {
		t.Errorf("item 2 err = %v, want ErrInvalidPrice", res.Items[2].Err)
	}

	cur, err := e.ledger.CurrentPrice(ctx, e.aco.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !cur.UnitPrice.Equal(dec("8.2")) || *cur.InvoiceID != res.Invoice.ID || *cur.SupplierID != *res.Invoice.SupplierID {
		t.Errorf("current price = %+v", cur)
	}
	if cur.Origin != pricing.OriginNotaXML || !cur.EffectiveFrom.Equal(jan) {
		t.Errorf("origin=%s from=%v", cur.Origin, cur.EffectiveFrom)
	}
	if _, err := e.ledger.CurrentPrice(ctx, e.fio.ID); !errors.Is(err, pricing.ErrNotFound) {
		t.Errorf("invalid price must not be recorded: %v", err)
	}
}

func TestIngest_SecondInvoiceClosesPrice(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	for _, b := range []Batch{
		{Header: Header{Number: "1", IssuedAt: jan}, Items: []RawLineItem{{MaterialID: e.aco.ID, Unit: "kg", Quantity: 1, UnitPrice: "8,20"}}},
		{Header: Header{Number: "2", IssuedAt: feb}, Items: []RawLineItem{{MaterialID: e.aco.ID, Unit: "kg", Quantity: 1, UnitPrice: "9,02"}}},
	} {
		if _, err := e.svc.Ingest(ctx, b); err != nil {
			t.Fatal(err)
		}
	}
	hist, _ := e.ledger.History(ctx, e.aco.ID)
	if len(hist) != 2 || !hist[0].VariationPct.Equal(dec("10")) {
		t.Fatalf("history = %+v", hist)
	}
	if !hist[1].EffectiveUntil.Equal(feb) {
		t.Errorf("first price closed at %v, want %v", hist[1].EffectiveUntil, feb)
	}

	// накладная задним числом
	res, err := e.svc.Ingest(ctx, Batch{
		Header: Header{Number: "0", IssuedAt: jan.AddDate(0, 0, -5)},
		Items:  []RawLineItem{{MaterialID: e.aco.ID, Unit: "kg", Quantity: 1, UnitPrice: "7,00"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(res.Items[0].Err, pricing.ErrOutOfOrderObservation) {
		t.Errorf("err = %v, want ErrOutOfOrderObservation", res.Items[0].Err)
	}
}

func TestIngest_UsageUnitPriceConverted(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	res, err := e.svc.Ingest(ctx, Batch{
		Header: Header{Number: "10", IssuedAt: jan},
		Items: []RawLineItem{
			{MaterialID: e.fio.ID, Unit: "g", Quantity: 500, UnitPrice: "0,09"},
			{MaterialID: e.aco.ID, Unit: "M", Quantity: 1, UnitPrice: "3"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Items[0].Price == nil || !res.Items[0].Price.UnitPrice.Equal(dec("90")) {
		t.Errorf("price per kg = %+v", res.Items[0].Price)
	}
	if !errors.Is(res.Items[1].Err, units.ErrIncompatibleUnit) {
		t.Errorf("err = %v, want ErrIncompatibleUnit", res.Items[1].Err)
	}
}

func TestIngest_SubCentUsagePriceKeepsPrecision(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	res, err := e.svc.Ingest(ctx, Batch{
		Header: Header{Number: "11", IssuedAt: jan},
		Items: []RawLineItem{
			{MaterialID: e.aco.ID, Unit: "g", Quantity: 1000, UnitPrice: "0,0082", LineTotal: "8,20"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	it := res.Items[0]
	if it.Err != nil || it.Item.HasFlag(FlagTotalMismatch) {
		t.Fatalf("item: err=%v flags=%v", it.Err, it.Item.Flags)
	}
	if it.Price == nil || !it.Price.UnitPrice.Equal(dec("8.2")) {
		t.Errorf("recorded price per kg = %+v, want 8.2", it.Price)
	}

	// тот же уровень цены в граммах и в килограммах: изменения нет
	res, err = e.svc.Ingest(ctx, Batch{
		Header: Header{Number: "12", IssuedAt: feb},
		Items:  []RawLineItem{{MaterialID: e.aco.ID, Unit: "kg", Quantity: 1, UnitPrice: "8,20"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Items[0].Changed {
		t.Errorf("same price reported as change: %+v", res.Items[0].Price)
	}
	hist, _ := e.ledger.History(ctx, e.aco.ID)
	if len(hist) != 1 {
		t.Errorf("history length = %d, want 1", len(hist))
	}
}

func TestIngest_DatelessInvoiceUsesClock(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(NewNormalizer(DefaultTotalTolerance), e.mats, e.sups, e.ledger, e.store, log,
		WithClock(func() time.Time { return now }))

	res, err := svc.Ingest(ctx, Batch{
		Header: Header{Number: "40"},
		Items:  []RawLineItem{{MaterialID: e.aco.ID, Unit: "kg", Quantity: 2, UnitPrice: "8,20"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Invoice.IssuedAt.Equal(now) {
		t.Errorf("issued at = %v, want %v", res.Invoice.IssuedAt, now)
	}
	if res.Items[0].Price == nil || !res.Items[0].Price.EffectiveFrom.Equal(now) {
		t.Errorf("price effective from = %+v, want %v", res.Items[0].Price, now)
	}
}

func TestIngest_SameMaterialTwiceKeepsOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.svc.Ingest(ctx, Batch{
		Header: Header{Number: "20", IssuedAt: jan},
		Items: []RawLineItem{
			{MaterialID: e.aco.ID, Unit: "kg", Quantity: 1, UnitPrice: "8"},
			{MaterialID: e.fio.ID, Unit: "kg", Quantity: 1, UnitPrice: "60"},
			{MaterialID: e.aco.ID, Unit: "kg", Quantity: 1, UnitPrice: "8,50"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	cur, _ := e.ledger.CurrentPrice(ctx, e.aco.ID)
	if !cur.UnitPrice.Equal(dec("8.5")) {
		t.Errorf("current = %s, want last processed 8.5", cur.UnitPrice)
	}
	hist, _ := e.ledger.History(ctx, e.aco.ID)
	if len(hist) != 2 {
		t.Errorf("history length = %d, want 2", len(hist))
	}
}

func TestIngest_DuplicateFile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	hash := FileHash([]byte("<nfeProc>...</nfeProc>"))
	b := Batch{
		Header: Header{Number: "30", IssuedAt: jan, FileHash: hash},
		Items:  []RawLineItem{{MaterialID: e.aco.ID, Unit: "kg", Quantity: 1, UnitPrice: "8"}},
	}
	first, err := e.svc.Ingest(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.svc.Ingest(ctx, b)
	if !errors.Is(err, ErrDuplicateInvoice) {
		t.Fatalf("err = %v, want ErrDuplicateInvoice", err)
	}
	if res.Invoice.ID != first.Invoice.ID {
		t.Errorf("duplicate must point at invoice %d, got %d", first.Invoice.ID, res.Invoice.ID)
	}
	if len(hash) != 32 {
		t.Errorf("hash length = %d", len(hash))
	}
}

func TestIngest_Empty(t *testing.T) {
	e := newEnv(t)
	if _, err := e.svc.Ingest(context.Background(), Batch{}); !errors.Is(err, ErrEmptyInvoice) {
		t.Errorf("err = %v", err)
	}
}
