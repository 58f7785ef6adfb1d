package suppliers

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) GetByID(ctx context.Context, id int64) (*Supplier, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(cnpj,''), active, created_at
		FROM suppliers
		WHERE id = $1
	`, id)
	var s Supplier
	if err := row.Scan(&s.ID, &s.Name, &s.CNPJ, &s.Active, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetOrCreate ищет поставщика по CNPJ (если он валиден), иначе по имени,
// и создаёт его при отсутствии.
func (r *Repo) GetOrCreate(ctx context.Context, name, cnpj string) (*Supplier, error) {
	name = strings.TrimSpace(name)
	cnpj = NormalizeCNPJ(cnpj)
	if !ValidCNPJ(cnpj) {
		cnpj = ""
	}

	var row pgx.Row
	if cnpj != "" {
		row = r.pool.QueryRow(ctx, `
			SELECT id, name, COALESCE(cnpj,''), active, created_at
			FROM suppliers WHERE cnpj = $1
		`, cnpj)
	} else {
		row = r.pool.QueryRow(ctx, `
			SELECT id, name, COALESCE(cnpj,''), active, created_at
			FROM suppliers WHERE LOWER(name) = LOWER($1)
			ORDER BY id LIMIT 1
		`, name)
	}
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.CNPJ, &s.Active, &s.CreatedAt)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	row = r.pool.QueryRow(ctx, `
		INSERT INTO suppliers (name, cnpj, active)
		VALUES ($1, NULLIF($2,''), TRUE)
		ON CONFLICT (cnpj) DO UPDATE SET name = suppliers.name
		RETURNING id, name, COALESCE(cnpj,''), active, created_at
	`, name, cnpj)
	if err := row.Scan(&s.ID, &s.Name, &s.CNPJ, &s.Active, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) List(ctx context.Context, onlyActive bool) ([]Supplier, error) {
	q := `SELECT id, name, COALESCE(cnpj,''), active, created_at FROM suppliers`
	if onlyActive {
		q += ` WHERE active = TRUE`
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.CNPJ, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE suppliers SET active = $2 WHERE id = $1`, id, active)
	return err
}

func (r *Repo) Rename(ctx context.Context, id int64, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil
	}
	_, err := r.pool.Exec(ctx, `UPDATE suppliers SET name = $2 WHERE id = $1`, id, newName)
	return err
}
