package pricing

import (
	"context"
	"sort"
)

// Store хранилище записей цен.
// Apply применяет Decision атомарно: закрытие старой и открытие новой записи
// видны вместе или не видны совсем. Если открытая запись материала уже не та,
// что в Decision.Closed, возвращается ErrConcurrentPriceUpdate.
type Store interface {
	Open(ctx context.Context, materialID int64) (*PriceRecord, error)
	Apply(ctx context.Context, d Decision) (PriceRecord, error)
	// History по убыванию EffectiveFrom (при равенстве по убыванию Seq).
	History(ctx context.Context, materialID int64) ([]PriceRecord, error)
	All(ctx context.Context) (map[int64][]PriceRecord, error)
}

// Catalog проверка существования материала.
type Catalog interface {
	Exists(ctx context.Context, materialID int64) (bool, error)
}

// Recorder метрики леджера.
type Recorder interface {
	PriceObserved(changed bool)
	PriceConflict()
}

type nopRecorder struct{}

func (nopRecorder) PriceObserved(bool) {}
func (nopRecorder) PriceConflict()     {}

func sortNewestFirst(recs []PriceRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
			return a.EffectiveFrom.After(b.EffectiveFrom)
		}
		return a.Seq > b.Seq
	})
}
