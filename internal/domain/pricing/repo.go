package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo хранилище цен в PostgreSQL (таблица material_prices).
type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const priceColumns = `id, seq, material_id, unit_price, effective_from, effective_until,
	supplier_id, invoice_id, origin, variation_pct, created_at`

func scanPrice(row pgx.Row) (PriceRecord, error) {
	var (
		r   PriceRecord
		pct decimal.NullDecimal
	)
	if err := row.Scan(
		&r.ID,
		&r.Seq,
		&r.MaterialID,
		&r.UnitPrice,
		&r.EffectiveFrom,
		&r.EffectiveUntil,
		&r.SupplierID,
		&r.InvoiceID,
		&r.Origin,
		&pct,
		&r.CreatedAt,
	); err != nil {
		return PriceRecord{}, err
	}
	if pct.Valid {
		r.VariationPct = &pct.Decimal
	}
	return r, nil
}

func (r *Repo) Open(ctx context.Context, materialID int64) (*PriceRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+priceColumns+`
		FROM material_prices
		WHERE material_id = $1 AND effective_until IS NULL
	`, materialID)
	rec, err := scanPrice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Apply закрывает и открывает записи в одной транзакции.
// Открытая строка блокируется FOR UPDATE; частичный уникальный индекс
// ux_material_prices_open ловит гонку, когда открытой записи ещё не было.
func (r *Repo) Apply(ctx context.Context, d Decision) (PriceRecord, error) {
	if !d.Changed {
		return d.Open, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return PriceRecord{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var curID *uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM material_prices
		WHERE material_id = $1 AND effective_until IS NULL
		FOR UPDATE
	`, d.Open.MaterialID).Scan(&curID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return PriceRecord{}, err
	}
	switch {
	case d.Closed == nil && curID != nil:
		return PriceRecord{}, ErrConcurrentPriceUpdate
	case d.Closed != nil && (curID == nil || *curID != d.Closed.ID):
		return PriceRecord{}, ErrConcurrentPriceUpdate
	}

	if d.Closed != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE material_prices SET effective_until = $2
			WHERE id = $1 AND effective_until IS NULL
		`, d.Closed.ID, *d.Closed.EffectiveUntil); err != nil {
			return PriceRecord{}, err
		}
	}

	var pct decimal.NullDecimal
	if d.Open.VariationPct != nil {
		pct = decimal.NewNullDecimal(*d.Open.VariationPct)
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO material_prices
			(id, material_id, unit_price, effective_from, supplier_id, invoice_id, origin, variation_pct)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+priceColumns,
		d.Open.ID, d.Open.MaterialID, d.Open.UnitPrice, d.Open.EffectiveFrom,
		d.Open.SupplierID, d.Open.InvoiceID, string(d.Open.Origin), pct)
	rec, err := scanPrice(row)
	if err != nil {
		if isUniqueViolation(err) {
			return PriceRecord{}, ErrConcurrentPriceUpdate
		}
		return PriceRecord{}, fmt.Errorf("insert price: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return PriceRecord{}, ErrConcurrentPriceUpdate
		}
		return PriceRecord{}, err
	}
	return rec, nil
}

func (r *Repo) History(ctx context.Context, materialID int64) ([]PriceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+priceColumns+`
		FROM material_prices
		WHERE material_id = $1
		ORDER BY effective_from DESC, seq DESC
	`, materialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PriceRecord
	for rows.Next() {
		rec, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) All(ctx context.Context) (map[int64][]PriceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+priceColumns+`
		FROM material_prices
		ORDER BY material_id, effective_from DESC, seq DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]PriceRecord)
	for rows.Next() {
		rec, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out[rec.MaterialID] = append(out[rec.MaterialID], rec)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
