package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type bomService struct {
	pool *pgxpool.Pool
}

// NewBOMService constructs a BOMService backed by PostgreSQL.
func NewBOMService(pool *pgxpool.Pool) BOMService {
	return &bomService{pool: pool}
}

func (s *bomService) UpsertEntry(ctx context.Context, input BOMEntryInput) (*BOMEntry, error) {
	if input.ProductName == "" || input.PartNumber == "" {
		return nil, fmt.Errorf("product name and part number are required")
	}
	if input.QuantityPerUnit <= 0 {
		return nil, fmt.Errorf("quantity per unit must be positive, got %d", input.QuantityPerUnit)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	componentID, err := resolveComponentTx(ctx, tx, input.PartNumber)
	if err != nil {
		return nil, err
	}

	var entryID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO bom_entries (product_name, component_id, quantity_per_unit,
		                         is_optional, reference_designators, bom_version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_name, component_id) DO UPDATE
		SET quantity_per_unit     = EXCLUDED.quantity_per_unit,
		    is_optional           = EXCLUDED.is_optional,
		    reference_designators = EXCLUDED.reference_designators,
		    bom_version           = EXCLUDED.bom_version
		RETURNING id`,
		input.ProductName, componentID, input.QuantityPerUnit,
		input.IsOptional, input.ReferenceDesignators, input.BOMVersion,
	).Scan(&entryID); err != nil {
		return nil, fmt.Errorf("upsert BOM entry for %s/%s: %w", input.ProductName, input.PartNumber, err)
	}

	// Substitutes are replaced wholesale.
	if _, err := tx.Exec(ctx, "DELETE FROM bom_substitutes WHERE bom_entry_id = $1", entryID); err != nil {
		return nil, fmt.Errorf("clear substitutes: %w", err)
	}
	for _, sub := range input.SubstitutePartNumbers {
		subID, err := resolveComponentTx(ctx, tx, sub)
		if err != nil {
			return nil, err
		}
		if subID == componentID {
			return nil, &InvalidOperationError{Reason: fmt.Sprintf(
				"%s cannot be a substitute for itself", input.PartNumber)}
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO bom_substitutes (bom_entry_id, component_id) VALUES ($1, $2)",
			entryID, subID); err != nil {
			return nil, fmt.Errorf("insert substitute %s: %w", sub, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit BOM entry: %w", err)
	}

	entries, err := s.ListEntries(ctx, input.ProductName)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == entryID {
			return &entries[i], nil
		}
	}
	return nil, &NotFoundError{Entity: "BOM entry", Key: fmt.Sprint(entryID)}
}

func (s *bomService) RemoveEntry(ctx context.Context, productName, partNumber string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM bom_entries
		WHERE product_name = $1
		  AND component_id = (SELECT id FROM components WHERE part_number = $2)`,
		productName, partNumber,
	)
	if err != nil {
		return fmt.Errorf("remove BOM entry %s/%s: %w", productName, partNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "BOM entry", Key: productName + "/" + partNumber}
	}
	return nil
}

func (s *bomService) ListEntries(ctx context.Context, productName string) ([]BOMEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.product_name, b.component_id, c.part_number, c.name,
		       b.quantity_per_unit, b.is_optional, b.reference_designators, b.bom_version,
		       COALESCE(ARRAY_AGG(sc.part_number ORDER BY sc.part_number)
		                FILTER (WHERE sc.part_number IS NOT NULL), '{}')
		FROM bom_entries b
		JOIN components c ON c.id = b.component_id
		LEFT JOIN bom_substitutes bs ON bs.bom_entry_id = b.id
		LEFT JOIN components sc ON sc.id = bs.component_id
		WHERE b.product_name = $1
		GROUP BY b.id, c.part_number, c.name
		ORDER BY c.part_number`,
		productName,
	)
	if err != nil {
		return nil, fmt.Errorf("list BOM for %q: %w", productName, err)
	}
	defer rows.Close()

	var entries []BOMEntry
	for rows.Next() {
		var e BOMEntry
		if err := rows.Scan(
			&e.ID, &e.ProductName, &e.ComponentID, &e.PartNumber, &e.ComponentName,
			&e.QuantityPerUnit, &e.IsOptional, &e.ReferenceDesignators, &e.BOMVersion,
			&e.SubstitutePartNumbers,
		); err != nil {
			return nil, fmt.Errorf("scan BOM entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *bomService) Products(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT product_name FROM bom_entries ORDER BY product_name")
	if err != nil {
		return nil, fmt.Errorf("list BOM products: %w", err)
	}
	defer rows.Close()

	var products []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan product name: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *bomService) CheckFeasibility(ctx context.Context, productName string, quantity int64) (*FeasibilityResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("feasibility quantity must be positive, got %d", quantity)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT b.component_id, c.part_number, c.name, b.quantity_per_unit, b.is_optional,
		       COALESCE(SUM(sr.quantity - sr.reserved_qty), 0)
		FROM bom_entries b
		JOIN components c ON c.id = b.component_id
		LEFT JOIN stock_records sr ON sr.component_id = b.component_id
		WHERE b.product_name = $1
		GROUP BY b.component_id, c.part_number, c.name, b.quantity_per_unit, b.is_optional
		ORDER BY c.part_number`,
		productName,
	)
	if err != nil {
		return nil, fmt.Errorf("load BOM availability for %q: %w", productName, err)
	}
	defer rows.Close()

	var lines []BOMLine
	for rows.Next() {
		var line BOMLine
		if err := rows.Scan(&line.ComponentID, &line.PartNumber, &line.ComponentName,
			&line.QuantityPerUnit, &line.IsOptional, &line.Available); err != nil {
			return nil, fmt.Errorf("scan BOM availability: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate BOM availability: %w", err)
	}
	if len(lines) == 0 {
		return nil, &NotFoundError{Entity: "BOM", Key: productName}
	}

	return EvaluateFeasibility(productName, quantity, lines), nil
}

// resolveComponentTx maps a part number to its component id.
func resolveComponentTx(ctx context.Context, tx pgx.Tx, partNumber string) (int, error) {
	var id int
	if err := tx.QueryRow(ctx,
		"SELECT id FROM components WHERE part_number = $1", partNumber,
	).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &NotFoundError{Entity: "component", Key: partNumber}
		}
		return 0, fmt.Errorf("resolve component %q: %w", partNumber, err)
	}
	return id, nil
}
