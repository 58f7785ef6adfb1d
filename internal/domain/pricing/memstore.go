package pricing

import (
	"context"
	"sync"
	"time"
)

// MemStore хранилище цен в памяти.
type MemStore struct {
	mu      sync.RWMutex
	seq     int64
	history map[int64][]PriceRecord // по возрастанию Seq
	now     func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{history: make(map[int64][]PriceRecord), now: time.Now}
}

func (s *MemStore) Open(_ context.Context, materialID int64) (*PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openLocked(materialID), nil
}

func (s *MemStore) openLocked(materialID int64) *PriceRecord {
	recs := s.history[materialID]
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].IsOpen() {
			r := recs[i]
			return &r
		}
	}
	return nil
}

func (s *MemStore) Apply(_ context.Context, d Decision) (PriceRecord, error) {
	if !d.Changed {
		return d.Open, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	materialID := d.Open.MaterialID
	cur := s.openLocked(materialID)
	switch {
	case d.Closed == nil && cur != nil:
		return PriceRecord{}, ErrConcurrentPriceUpdate
	case d.Closed != nil && (cur == nil || cur.ID != d.Closed.ID):
		return PriceRecord{}, ErrConcurrentPriceUpdate
	}

	recs := s.history[materialID]
	if d.Closed != nil {
		for i := range recs {
			if recs[i].ID == d.Closed.ID {
				until := *d.Closed.EffectiveUntil
				recs[i].EffectiveUntil = &until
				break
			}
		}
	}

	s.seq++
	rec := d.Open
	rec.Seq = s.seq
	rec.EffectiveUntil = nil
	rec.CreatedAt = s.now()
	s.history[materialID] = append(recs, rec)
	return rec, nil
}

func (s *MemStore) History(_ context.Context, materialID int64) ([]PriceRecord, error) {
	s.mu.RLock()
	out := copyRecords(s.history[materialID])
	s.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (s *MemStore) All(_ context.Context) (map[int64][]PriceRecord, error) {
	s.mu.RLock()
	out := make(map[int64][]PriceRecord, len(s.history))
	for id, recs := range s.history {
		out[id] = copyRecords(recs)
	}
	s.mu.RUnlock()
	for _, recs := range out {
		sortNewestFirst(recs)
	}
	return out, nil
}

// copyRecords копирует и указатели, чтобы читатель не видел последующих закрытий.
func copyRecords(in []PriceRecord) []PriceRecord {
	out := make([]PriceRecord, len(in))
	for i, r := range in {
		if r.EffectiveUntil != nil {
			until := *r.EffectiveUntil
			r.EffectiveUntil = &until
		}
		out[i] = r
	}
	return out
}
