package products

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

type MemRepo struct {
	mu         sync.RWMutex
	nextID     int64
	nextCompID int64
	items      map[int64]Product
}

func NewMemRepo() *MemRepo { return &MemRepo{items: make(map[int64]Product)} }

func (r *MemRepo) Create(_ context.Context, name, code string) (*Product, error) {
	code = strings.TrimSpace(code)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if code != "" && p.Code == code {
			return clone(p), nil
		}
	}
	r.nextID++
	p := Product{ID: r.nextID, Name: strings.TrimSpace(name), Code: code, Active: true, CreatedAt: time.Now()}
	r.items[p.ID] = p
	return clone(p), nil
}

func (r *MemRepo) GetByID(_ context.Context, id int64) (*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return clone(p), nil
}

func (r *MemRepo) List(_ context.Context, onlyActive bool) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Product
	for _, p := range r.items {
		if onlyActive && !p.Active {
			continue
		}
		out = append(out, *clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemRepo) AddComponent(_ context.Context, productID, materialID int64, qty decimal.Decimal, unit units.Code) (*Component, error) {
	unit, _ = units.Resolve(string(unit))
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[productID]
	if !ok {
		return nil, nil
	}
	r.nextCompID++
	c := Component{ID: r.nextCompID, ProductID: productID, MaterialID: materialID, Quantity: qty, Unit: unit}
	p.Components = append(p.Components, c)
	r.items[productID] = p
	return &c, nil
}

func clone(p Product) *Product {
	p.Components = append([]Component(nil), p.Components...)
	return &p
}
