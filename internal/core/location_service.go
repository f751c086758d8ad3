package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type locationService struct {
	pool *pgxpool.Pool
}

// NewLocationService constructs a LocationService backed by PostgreSQL.
func NewLocationService(pool *pgxpool.Pool) LocationService {
	return &locationService{pool: pool}
}

const locationColumns = `id, code, name, parent_id, is_active, created_at`

func scanLocation(row pgx.Row) (*Location, error) {
	l := &Location{}
	if err := row.Scan(&l.ID, &l.Code, &l.Name, &l.ParentID, &l.IsActive, &l.CreatedAt); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *locationService) CreateLocation(ctx context.Context, input LocationInput) (*Location, error) {
	if strings.TrimSpace(input.Code) == "" {
		return nil, fmt.Errorf("location code is required")
	}
	if input.ParentID != nil {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1)", *input.ParentID,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("validate parent location: %w", err)
		}
		if !exists {
			return nil, &NotFoundError{Entity: "location", Key: fmt.Sprint(*input.ParentID)}
		}
	}

	l, err := scanLocation(s.pool.QueryRow(ctx, `
		INSERT INTO locations (code, name, parent_id)
		VALUES ($1, $2, $3)
		RETURNING `+locationColumns,
		input.Code, input.Name, input.ParentID,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateKeyError{Entity: "location", Key: input.Code}
		}
		return nil, fmt.Errorf("create location %q: %w", input.Code, err)
	}
	return l, nil
}

func (s *locationService) UpdateLocation(ctx context.Context, id int, update LocationUpdate) (*Location, error) {
	l, err := scanLocation(s.pool.QueryRow(ctx, `
		UPDATE locations
		SET name      = COALESCE($1, name),
		    parent_id = COALESCE($2, parent_id),
		    is_active = COALESCE($3, is_active)
		WHERE id = $4
		RETURNING `+locationColumns,
		update.Name, update.ParentID, update.IsActive, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "location", Key: fmt.Sprint(id)}
		}
		return nil, fmt.Errorf("update location %d: %w", id, err)
	}
	return l, nil
}

func (s *locationService) DeleteLocation(ctx context.Context, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var code string
	if err := tx.QueryRow(ctx,
		"SELECT code FROM locations WHERE id = $1 FOR UPDATE", id,
	).Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Entity: "location", Key: fmt.Sprint(id)}
		}
		return fmt.Errorf("fetch location %d: %w", id, err)
	}

	var stocked, children int
	if err := tx.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM stock_records WHERE location_id = $1 AND quantity > 0),
		       (SELECT COUNT(*) FROM locations WHERE parent_id = $1)`,
		id,
	).Scan(&stocked, &children); err != nil {
		return fmt.Errorf("count references for location %d: %w", id, err)
	}
	if stocked > 0 || children > 0 {
		return &ReferentialIntegrityError{
			Entity:     "location",
			Key:        code,
			Dependents: fmt.Sprintf("%d stocked record(s), %d child location(s)", stocked, children),
		}
	}

	// Empty stock records for this location go with it.
	if _, err := tx.Exec(ctx, "DELETE FROM stock_records WHERE location_id = $1", id); err != nil {
		return fmt.Errorf("delete empty stock records for location %d: %w", id, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM locations WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete location %d: %w", id, err)
	}
	return tx.Commit(ctx)
}

func (s *locationService) GetLocation(ctx context.Context, id int) (*Location, error) {
	l, err := scanLocation(s.pool.QueryRow(ctx,
		"SELECT "+locationColumns+" FROM locations WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "location", Key: fmt.Sprint(id)}
		}
		return nil, fmt.Errorf("get location %d: %w", id, err)
	}
	return l, nil
}

func (s *locationService) GetLocationByCode(ctx context.Context, code string) (*Location, error) {
	l, err := scanLocation(s.pool.QueryRow(ctx,
		"SELECT "+locationColumns+" FROM locations WHERE code = $1", code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "location", Key: code}
		}
		return nil, fmt.Errorf("get location %q: %w", code, err)
	}
	return l, nil
}

func (s *locationService) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+locationColumns+" FROM locations WHERE is_active = true ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Code, &l.Name, &l.ParentID, &l.IsActive, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
