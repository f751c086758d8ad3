package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// nextSequence bumps the (scope, year) counter inside the caller's transaction
// and returns the new value. The upsert takes a row lock, so concurrent creates
// in the same scope serialize and can never hand out the same number.
func nextSequence(ctx context.Context, tx pgx.Tx, scope string, year int) (int64, error) {
	var n int64
	err := tx.QueryRow(ctx, `
		INSERT INTO order_sequences (scope, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (scope, year)
		DO UPDATE SET last_number = order_sequences.last_number + 1
		RETURNING last_number`,
		scope, year,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next sequence for %s/%d: %w", scope, year, err)
	}
	return n, nil
}

// formatPONumber renders "PO-2026-001".
func formatPONumber(year int, n int64) string {
	return fmt.Sprintf("PO-%d-%03d", year, n)
}

// formatBuildNumber renders "BO-WIDGET-2026-001". Build sequences are scoped
// per product so each product line counts independently.
func formatBuildNumber(product string, year int, n int64) string {
	return fmt.Sprintf("BO-%s-%d-%03d", productSlug(product), year, n)
}

// productSlug normalizes a product name into a short upper-case token for use
// in build numbers and sequence scopes.
func productSlug(product string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(product)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "PRODUCT"
	}
	if len(slug) > 16 {
		slug = slug[:16]
	}
	return slug
}
