package invoices

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const invoiceColumns = `id, number, series, access_key, supplier_id, issued_at, origin, file_hash, total, computed_total, created_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var series, accessKey, fileHash *string
	if err := row.Scan(
		&inv.ID,
		&inv.Number,
		&series,
		&accessKey,
		&inv.SupplierID,
		&inv.IssuedAt,
		&inv.Origin,
		&fileHash,
		&inv.Total,
		&inv.ComputedTotal,
		&inv.CreatedAt,
	); err != nil {
		return nil, err
	}
	inv.Series = deref(series)
	inv.AccessKey = deref(accessKey)
	inv.FileHash = deref(fileHash)
	return &inv, nil
}

// Save шапка и строки в одной транзакции.
func (r *Repo) Save(ctx context.Context, inv *Invoice) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (number, series, access_key, supplier_id, issued_at, origin, file_hash, total, computed_total)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at
	`, inv.Number, nullable(inv.Series), nullable(inv.AccessKey), inv.SupplierID, inv.IssuedAt,
		string(inv.Origin), nullable(inv.FileHash), inv.Total, inv.ComputedTotal,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateInvoice
		}
		return err
	}

	for i := range inv.Items {
		it := &inv.Items[i]
		var materialID *int64
		if it.MaterialID > 0 {
			materialID = &it.MaterialID
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO invoice_items (invoice_id, position, material_id, description, unit, quantity, unit_price, unit_price_exact, line_total, computed_total, flags)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			RETURNING id
		`, inv.ID, i, materialID, it.Material, string(it.Unit), it.Quantity, it.UnitPrice,
			it.UnitPriceExact, it.LineTotal, it.ComputedTotal, flagStrings(it.Flags),
		).Scan(&it.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repo) FindByHash(ctx context.Context, hash string) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE file_hash = $1`, hash)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, r.loadItems(ctx, inv)
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, r.loadItems(ctx, inv)
}

// List последние накладные без строк.
func (r *Repo) List(ctx context.Context, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		ORDER BY issued_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (r *Repo) loadItems(ctx context.Context, inv *Invoice) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, material_id, description, unit, quantity, unit_price, unit_price_exact, line_total, computed_total, flags
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position
	`, inv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it         Item
			materialID *int64
			unit       string
			flags      []string
		)
		if err := rows.Scan(&it.ID, &materialID, &it.Material, &unit, &it.Quantity, &it.UnitPrice,
			&it.UnitPriceExact, &it.LineTotal, &it.ComputedTotal, &flags); err != nil {
			return err
		}
		if materialID != nil {
			it.MaterialID = *materialID
		}
		it.Unit = units.Code(unit)
		it.ObservedAt = inv.IssuedAt
		for _, f := range flags {
			it.Flags = append(it.Flags, Flag(f))
		}
		inv.Items = append(inv.Items, it)
	}
	return rows.Err()
}

func flagStrings(flags []Flag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
