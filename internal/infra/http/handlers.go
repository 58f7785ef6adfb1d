package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/invoices"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/materials"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/pricing"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/products"
	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

type Ledger interface {
	RecordPrice(ctx context.Context, materialID int64, price decimal.Decimal, observedAt time.Time, src pricing.Source) (pricing.PriceRecord, bool, error)
	CurrentPrice(ctx context.Context, materialID int64) (pricing.PriceRecord, error)
	HistoryFiltered(ctx context.Context, materialID int64, f pricing.HistoryFilter) ([]pricing.PriceRecord, error)
	Overview(ctx context.Context, f pricing.HistoryFilter, page, pageSize int) (pricing.Page, error)
}

type Materials interface {
	GetByID(ctx context.Context, id int64) (*materials.Material, error)
}

type Products interface {
	GetByID(ctx context.Context, id int64) (*products.Product, error)
}

type Calculator interface {
	Cost(ctx context.Context, p products.Product) (products.ProductCost, error)
}

type Ingester interface {
	Ingest(ctx context.Context, b invoices.Batch) (invoices.Result, error)
}

type handlers struct {
	deps Deps
}

/* Prices */

func (h *handlers) currentPrice(w http.ResponseWriter, r *http.Request) {
	m, ok := h.material(w, r)
	if !ok {
		return
	}
	rec, err := h.deps.Ledger.CurrentPrice(r.Context(), m.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pricing.NewRecordView(rec, m.Conversion()))
}

type recordPriceRequest struct {
	Price      decimal.Decimal `json:"price"`
	Unit       string          `json:"unit"`
	ObservedAt *time.Time      `json:"observedAt"`
	SupplierID *int64          `json:"supplierId"`
}

type recordPriceResponse struct {
	Changed bool               `json:"changed"`
	Record  pricing.RecordView `json:"record"`
}

// recordPrice ручной ввод цены. Цена может быть указана за единицу использования (unit).
func (h *handlers) recordPrice(w http.ResponseWriter, r *http.Request) {
	m, ok := h.material(w, r)
	if !ok {
		return
	}
	var req recordPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	price, err := m.Conversion().PurchasePriceFrom(req.Price, units.Code(req.Unit))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var at time.Time
	if req.ObservedAt != nil {
		at = *req.ObservedAt
	}
	rec, changed, err := h.deps.Ledger.RecordPrice(r.Context(), m.ID, price, at, pricing.Source{
		SupplierID: req.SupplierID,
		Origin:     pricing.OriginAPI,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if changed {
		status = http.StatusCreated
	}
	writeJSON(w, status, recordPriceResponse{Changed: changed, Record: pricing.NewRecordView(rec, m.Conversion())})
}

func (h *handlers) materialHistory(w http.ResponseWriter, r *http.Request) {
	m, ok := h.material(w, r)
	if !ok {
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.deps.Ledger.HistoryFiltered(r.Context(), m.ID, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]pricing.RecordView, len(recs))
	for i, rec := range recs {
		out[i] = pricing.NewRecordView(rec, m.Conversion())
	}
	writeJSON(w, http.StatusOK, out)
}

type overviewResponse struct {
	Items    []pricing.RecordView `json:"items"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
}

func (h *handlers) overview(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("pageSize"))

	p, err := h.deps.Ledger.Overview(r.Context(), f, page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := overviewResponse{Items: make([]pricing.RecordView, 0, len(p.Items)), Total: p.Total, Page: p.Page, PageSize: p.PageSize}
	convs := make(map[int64]units.Conversion)
	for _, rec := range p.Items {
		conv, ok := convs[rec.MaterialID]
		if !ok {
			m, err := h.deps.Materials.GetByID(r.Context(), rec.MaterialID)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			if m != nil {
				conv = m.Conversion()
			}
			convs[rec.MaterialID] = conv
		}
		resp.Items = append(resp.Items, pricing.NewRecordView(rec, conv))
	}
	writeJSON(w, http.StatusOK, resp)
}

/* Products */

func (h *handlers) productCost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := h.deps.Products.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	cost, err := h.deps.Calculator.Cost(r.Context(), *p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cost)
}

/* Invoices */

type ingestRequest struct {
	Number       string           `json:"number"`
	Series       string           `json:"series"`
	AccessKey    string           `json:"accessKey"`
	SupplierID   *int64           `json:"supplierId"`
	SupplierName string           `json:"supplierName"`
	SupplierCNPJ string           `json:"supplierCnpj"`
	IssuedAt     *time.Time       `json:"issuedAt"`
	Origin       string           `json:"origin"`
	Items        []map[string]any `json:"items"`
}

type itemResponse struct {
	Index   int                 `json:"index"`
	Item    invoices.LineItem   `json:"item"`
	Changed bool                `json:"changed"`
	Price   *pricing.RecordView `json:"price,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type ingestResponse struct {
	Invoice invoices.Invoice `json:"invoice"`
	Items   []itemResponse   `json:"items"`
}

func (h *handlers) ingestInvoice(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var req ingestRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	b := invoices.Batch{Header: invoices.Header{
		Number:       req.Number,
		Series:       req.Series,
		AccessKey:    req.AccessKey,
		SupplierID:   req.SupplierID,
		SupplierName: req.SupplierName,
		SupplierCNPJ: req.SupplierCNPJ,
		Origin:       pricing.Origin(req.Origin),
	}}
	if req.IssuedAt != nil {
		b.Header.IssuedAt = *req.IssuedAt
	}
	if b.Header.Origin == "" {
		b.Header.Origin = pricing.OriginAPI
	}
	for _, m := range req.Items {
		b.Items = append(b.Items, invoices.FromMap(m))
	}

	res, err := h.deps.Invoices.Ingest(r.Context(), b)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := ingestResponse{Invoice: res.Invoice, Items: make([]itemResponse, len(res.Items))}
	for i, it := range res.Items {
		ir := itemResponse{Index: it.Index, Item: it.Item, Changed: it.Changed}
		if it.Err != nil {
			ir.Error = it.Err.Error()
		}
		if it.Price != nil {
			var conv units.Conversion
			if m, err := h.deps.Materials.GetByID(r.Context(), it.Price.MaterialID); err == nil && m != nil {
				conv = m.Conversion()
			}
			v := pricing.NewRecordView(*it.Price, conv)
			ir.Price = &v
		}
		resp.Items[i] = ir
	}
	writeJSON(w, http.StatusCreated, resp)
}

/* helpers */

// material читает {id} и загружает материал; при ошибке ответ уже записан.
func (h *handlers) material(w http.ResponseWriter, r *http.Request) (*materials.Material, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid material id")
		return nil, false
	}
	m, err := h.deps.Materials.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if m == nil {
		writeError(w, http.StatusNotFound, pricing.ErrUnknownMaterial.Error())
		return nil, false
	}
	return m, true
}

func parseFilter(r *http.Request) (pricing.HistoryFilter, error) {
	var f pricing.HistoryFilter
	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return f, errors.New("invalid from")
		}
		f.From = &t
	}
	if s := q.Get("to"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return f, errors.New("invalid to")
		}
		f.To = &t
	}
	if s := q.Get("supplier"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, errors.New("invalid supplier")
		}
		f.SupplierID = &id
	}
	return f, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.deps.Log.Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pricing.ErrUnknownMaterial), errors.Is(err, pricing.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pricing.ErrInvalidPrice),
		errors.Is(err, units.ErrIncompatibleUnit),
		errors.Is(err, units.ErrInvalidConversionFactor):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pricing.ErrOutOfOrderObservation),
		errors.Is(err, pricing.ErrConcurrentPriceUpdate),
		errors.Is(err, invoices.ErrDuplicateInvoice):
		return http.StatusConflict
	case errors.Is(err, invoices.ErrEmptyInvoice):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
