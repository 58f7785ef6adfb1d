package products

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

/* Products */

func (r *Repo) Create(ctx context.Context, name, code string) (*Product, error) {
	code = strings.TrimSpace(code)
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (name, code) VALUES ($1,$2)
		ON CONFLICT (code) DO NOTHING
		RETURNING id, name, code, active, created_at
	`, strings.TrimSpace(name), code)
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Code, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// код уже занят, вернём существующий
		return r.GetByCode(ctx, code)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID изделие вместе с компонентами.
func (r *Repo) GetByID(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, code, active, created_at FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Code, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Components, err = r.Components(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) GetByCode(ctx context.Context, code string) (*Product, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM products WHERE code = $1`, strings.TrimSpace(code)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *Repo) List(ctx context.Context, onlyActive bool) ([]Product, error) {
	q := `SELECT id, name, code, active, created_at FROM products`
	if onlyActive {
		q += ` WHERE active = TRUE`
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

/* Components */

func (r *Repo) AddComponent(ctx context.Context, productID, materialID int64, qty decimal.Decimal, unit units.Code) (*Component, error) {
	unit, _ = units.Resolve(string(unit))
	var c Component
	err := r.pool.QueryRow(ctx, `
		INSERT INTO product_components (product_id, material_id, quantity, unit)
		VALUES ($1,$2,$3,$4)
		RETURNING id, product_id, material_id, quantity, unit
	`, productID, materialID, qty, string(unit)).Scan(&c.ID, &c.ProductID, &c.MaterialID, &c.Quantity, &c.Unit)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) RemoveComponent(ctx context.Context, componentID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM product_components WHERE id = $1`, componentID)
	return err
}

func (r *Repo) Components(ctx context.Context, productID int64) ([]Component, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, material_id, quantity, unit
		FROM product_components
		WHERE product_id = $1
		ORDER BY id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Component
	for rows.Next() {
		var c Component
		if err := rows.Scan(&c.ID, &c.ProductID, &c.MaterialID, &c.Quantity, &c.Unit); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
