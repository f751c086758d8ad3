package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type componentService struct {
	pool *pgxpool.Pool
}

// NewComponentService constructs a ComponentService backed by PostgreSQL.
func NewComponentService(pool *pgxpool.Pool) ComponentService {
	return &componentService{pool: pool}
}

const componentColumns = `id, part_number, name, description, category, manufacturer,
       status, unit_cost, created_at, updated_at`

func scanComponent(row pgx.Row) (*Component, error) {
	c := &Component{}
	err := row.Scan(
		&c.ID, &c.PartNumber, &c.Name, &c.Description, &c.Category,
		&c.Manufacturer, &c.Status, &c.UnitCost, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *componentService) CreateComponent(ctx context.Context, input ComponentInput) (*Component, error) {
	if strings.TrimSpace(input.PartNumber) == "" {
		return nil, fmt.Errorf("part number is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("component name is required")
	}
	category := input.Category
	if category == "" {
		category = "uncategorized"
	}

	toPtr := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}

	c, err := scanComponent(s.pool.QueryRow(ctx, `
		INSERT INTO components (part_number, name, description, category, manufacturer, unit_cost)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+componentColumns,
		input.PartNumber, input.Name, toPtr(input.Description), category,
		toPtr(input.Manufacturer), input.UnitCost,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateKeyError{Entity: "component", Key: input.PartNumber}
		}
		return nil, fmt.Errorf("create component %q: %w", input.PartNumber, err)
	}
	return c, nil
}

func (s *componentService) UpdateComponent(ctx context.Context, id int, update ComponentUpdate) (*Component, error) {
	c, err := scanComponent(s.pool.QueryRow(ctx, `
		UPDATE components
		SET name         = COALESCE($1, name),
		    description  = COALESCE($2, description),
		    category     = COALESCE($3, category),
		    manufacturer = COALESCE($4, manufacturer),
		    status       = COALESCE($5, status),
		    unit_cost    = COALESCE($6, unit_cost),
		    updated_at   = NOW()
		WHERE id = $7
		RETURNING `+componentColumns,
		update.Name, update.Description, update.Category, update.Manufacturer,
		update.Status, update.UnitCost, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "component", Key: fmt.Sprint(id)}
		}
		return nil, fmt.Errorf("update component %d: %w", id, err)
	}
	return c, nil
}

// DeleteComponent refuses to delete while stock records or BOM entries reference
// the component. The catalog workflow for retired parts is a status change to
// deprecated, not deletion.
func (s *componentService) DeleteComponent(ctx context.Context, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var partNumber string
	if err := tx.QueryRow(ctx,
		"SELECT part_number FROM components WHERE id = $1 FOR UPDATE", id,
	).Scan(&partNumber); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Entity: "component", Key: fmt.Sprint(id)}
		}
		return fmt.Errorf("fetch component %d: %w", id, err)
	}

	var stockRefs, bomRefs int
	if err := tx.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM stock_records WHERE component_id = $1),
		       (SELECT COUNT(*) FROM bom_entries   WHERE component_id = $1)`,
		id,
	).Scan(&stockRefs, &bomRefs); err != nil {
		return fmt.Errorf("count references for component %d: %w", id, err)
	}
	if stockRefs > 0 || bomRefs > 0 {
		return &ReferentialIntegrityError{
			Entity: "component",
			Key:    partNumber,
			Dependents: fmt.Sprintf("%d stock record(s), %d BOM entr%s",
				stockRefs, bomRefs, plural(bomRefs, "y", "ies")),
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM components WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete component %d: %w", id, err)
	}
	return tx.Commit(ctx)
}

func (s *componentService) GetComponent(ctx context.Context, id int) (*Component, error) {
	c, err := scanComponent(s.pool.QueryRow(ctx,
		"SELECT "+componentColumns+" FROM components WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "component", Key: fmt.Sprint(id)}
		}
		return nil, fmt.Errorf("get component %d: %w", id, err)
	}
	return c, nil
}

func (s *componentService) GetComponentByPartNumber(ctx context.Context, partNumber string) (*Component, error) {
	c, err := scanComponent(s.pool.QueryRow(ctx,
		"SELECT "+componentColumns+" FROM components WHERE part_number = $1", partNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "component", Key: partNumber}
		}
		return nil, fmt.Errorf("get component %q: %w", partNumber, err)
	}
	return c, nil
}

func (s *componentService) SearchComponents(ctx context.Context, query string) ([]Component, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+componentColumns+`
		FROM components
		WHERE $1 = ''
		   OR part_number ILIKE '%' || $1 || '%'
		   OR name ILIKE '%' || $1 || '%'
		   OR COALESCE(manufacturer, '') ILIKE '%' || $1 || '%'
		ORDER BY part_number`,
		strings.TrimSpace(query),
	)
	if err != nil {
		return nil, fmt.Errorf("search components: %w", err)
	}
	defer rows.Close()

	var out []Component
	for rows.Next() {
		var c Component
		if err := rows.Scan(
			&c.ID, &c.PartNumber, &c.Name, &c.Description, &c.Category,
			&c.Manufacturer, &c.Status, &c.UnitCost, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *componentService) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, COUNT(*)
		FROM components
		GROUP BY category
		ORDER BY category`,
	)
	if err != nil {
		return nil, fmt.Errorf("count components by category: %w", err)
	}
	defer rows.Close()

	var out []CategoryCount
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
