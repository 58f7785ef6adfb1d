package invoices

import (
	"context"
	"sync"
	"time"
)

type MemStore struct {
	mu      sync.RWMutex
	nextID  int64
	itemSeq int64
	items   map[int64]Invoice
}

func NewMemStore() *MemStore { return &MemStore{items: make(map[int64]Invoice)} }

func (s *MemStore) Save(_ context.Context, inv *Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.FileHash != "" {
		for _, x := range s.items {
			if x.FileHash == inv.FileHash {
				return ErrDuplicateInvoice
			}
		}
	}
	s.nextID++
	inv.ID = s.nextID
	inv.CreatedAt = time.Now()
	for i := range inv.Items {
		s.itemSeq++
		inv.Items[i].ID = s.itemSeq
	}
	s.items[inv.ID] = cloneInvoice(*inv)
	return nil
}

func (s *MemStore) FindByHash(_ context.Context, hash string) (*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.items {
		if inv.FileHash == hash {
			c := cloneInvoice(inv)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *MemStore) GetByID(_ context.Context, id int64) (*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	c := cloneInvoice(inv)
	return &c, nil
}

func cloneInvoice(inv Invoice) Invoice {
	inv.Items = append([]Item(nil), inv.Items...)
	return inv
}
