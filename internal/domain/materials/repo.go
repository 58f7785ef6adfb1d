package materials

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xampsII/projeto-calculadora-mcm-bobinas/internal/domain/units"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const materialColumns = `id, name, purchase_unit, usage_unit, conversion_factor, active, created_at`

func scanMaterial(row pgx.Row) (*Material, error) {
	var m Material
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&m.PurchaseUnit,
		&m.UsageUnit,
		&m.ConversionFactor,
		&m.Active,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

/* Materials CRUD */

func (r *Repo) Create(ctx context.Context, name string, purchase, usage units.Code, factor decimal.Decimal) (*Material, error) {
	if err := (units.Conversion{Purchase: purchase, Usage: usage, Factor: factor}).Validate(); err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO materials (name, purchase_unit, usage_unit, conversion_factor, active)
		VALUES ($1,$2,$3,$4,TRUE)
		RETURNING `+materialColumns,
		strings.TrimSpace(name), string(purchase), string(usage), factor)
	return scanMaterial(row)
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Material, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1`, id)
	m, err := scanMaterial(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *Repo) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM materials WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// GetByName точное совпадение без учёта регистра и пробелов по краям.
func (r *Repo) GetByName(ctx context.Context, name string) (*Material, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+materialColumns+`
		FROM materials
		WHERE LOWER(name) = LOWER($1)
		ORDER BY active DESC, id
		LIMIT 1
	`, strings.TrimSpace(name))
	m, err := scanMaterial(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *Repo) UpdateConversion(ctx context.Context, id int64, purchase, usage units.Code, factor decimal.Decimal) (*Material, error) {
	if err := (units.Conversion{Purchase: purchase, Usage: usage, Factor: factor}).Validate(); err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE materials SET purchase_unit=$2, usage_unit=$3, conversion_factor=$4
		WHERE id=$1
		RETURNING `+materialColumns,
		id, string(purchase), string(usage), factor)
	return scanMaterial(row)
}

func (r *Repo) SetActive(ctx context.Context, id int64, active bool) (*Material, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE materials SET active=$2 WHERE id=$1
		RETURNING `+materialColumns, id, active)
	return scanMaterial(row)
}

func (r *Repo) List(ctx context.Context, onlyActive bool) ([]Material, error) {
	q := `SELECT ` + materialColumns + ` FROM materials`
	if onlyActive {
		q += " WHERE active = TRUE"
	}
	q += " ORDER BY name"

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// SearchByName ищет материалы по части названия, без учёта регистра.
func (r *Repo) SearchByName(ctx context.Context, q string, onlyActive bool) ([]Material, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	like := "%" + strings.ToLower(q) + "%"

	base := `SELECT ` + materialColumns + ` FROM materials WHERE LOWER(name) LIKE $1`
	if onlyActive {
		base += ` AND active = TRUE`
	}
	rows, err := r.pool.Query(ctx, base+` ORDER BY name`, like)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
