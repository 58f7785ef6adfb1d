package suppliers

import (
	"context"
	"strings"
	"sync"
	"time"
)

type MemRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]Supplier
}

func NewMemRepo() *MemRepo { return &MemRepo{items: make(map[int64]Supplier)} }

func (r *MemRepo) GetByID(_ context.Context, id int64) (*Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *MemRepo) GetOrCreate(_ context.Context, name, cnpj string) (*Supplier, error) {
	name = strings.TrimSpace(name)
	cnpj = NormalizeCNPJ(cnpj)
	if !ValidCNPJ(cnpj) {
		cnpj = ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.items {
		if (cnpj != "" && s.CNPJ == cnpj) || (cnpj == "" && strings.EqualFold(s.Name, name)) {
			return &s, nil
		}
	}
	r.nextID++
	s := Supplier{ID: r.nextID, Name: name, CNPJ: cnpj, Active: true, CreatedAt: time.Now()}
	r.items[s.ID] = s
	return &s, nil
}
