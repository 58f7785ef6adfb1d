package materials

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

// MemRepo каталог материалов в памяти (storage.driver = memory и тесты).
type MemRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]Material
}

func NewMemRepo() *MemRepo {
	return &MemRepo{items: make(map[int64]Material)}
}

func (r *MemRepo) Create(_ context.Context, name string, purchase, usage units.Code, factor decimal.Decimal) (*Material, error) {
	if err := (units.Conversion{Purchase: purchase, Usage: usage, Factor: factor}).Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m := Material{
		ID:               r.nextID,
		Name:             strings.TrimSpace(name),
		PurchaseUnit:     purchase,
		UsageUnit:        usage,
		ConversionFactor: factor,
		Active:           true,
		CreatedAt:        time.Now(),
	}
	r.items[m.ID] = m
	return &m, nil
}

func (r *MemRepo) GetByID(_ context.Context, id int64) (*Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *MemRepo) GetByName(_ context.Context, name string) (*Material, error) {
	name = strings.TrimSpace(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *Material
	for _, m := range r.items {
		if !strings.EqualFold(m.Name, name) {
			continue
		}
		// активный и с меньшим id в приоритете, как в Repo
		if found == nil || (m.Active && !found.Active) || (m.Active == found.Active && m.ID < found.ID) {
			mm := m
			found = &mm
		}
	}
	return found, nil
}

func (r *MemRepo) List(_ context.Context, onlyActive bool) ([]Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Material, 0, len(r.items))
	for _, m := range r.items {
		if onlyActive && !m.Active {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemRepo) SetActive(_ context.Context, id int64, active bool) (*Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	m.Active = active
	r.items[id] = m
	return &m, nil
}

func (r *MemRepo) Exists(_ context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[id]
	return ok, nil
}
