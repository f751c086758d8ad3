package core_test

import (
	"context"
	"os"
	"testing"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set: skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE alerts, tasks, bom_substitutes, bom_entries, build_orders,
			purchase_order_lines, purchase_orders, stock_transactions, stock_records,
			suppliers, locations, components, order_sequences
		RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}

	t.Cleanup(pool.Close)
	return pool
}

// seedComponent inserts a catalog entry and returns its id.
func seedComponent(t *testing.T, pool *pgxpool.Pool, partNumber, name string) int {
	t.Helper()
	ctx := context.Background()
	c, err := core.NewComponentService(pool).CreateComponent(ctx, core.ComponentInput{
		PartNumber: partNumber,
		Name:       name,
		Category:   "passives",
		UnitCost:   decimal.NewFromFloat(0.10),
	})
	if err != nil {
		t.Fatalf("seed component %s: %v", partNumber, err)
	}
	return c.ID
}

// seedLocation inserts a warehouse location and returns its id.
func seedLocation(t *testing.T, pool *pgxpool.Pool, code, name string) int {
	t.Helper()
	ctx := context.Background()
	loc, err := core.NewLocationService(pool).CreateLocation(ctx, core.LocationInput{
		Code: code,
		Name: name,
	})
	if err != nil {
		t.Fatalf("seed location %s: %v", code, err)
	}
	return loc.ID
}

// seedSupplier inserts an active supplier and returns its id.
func seedSupplier(t *testing.T, pool *pgxpool.Pool, code, name string) int {
	t.Helper()
	ctx := context.Background()
	sup, err := core.NewSupplierService(pool).CreateSupplier(ctx, core.SupplierInput{
		Code:             code,
		Name:             name,
		PaymentTermsDays: 30,
		LeadTimeDays:     14,
	})
	if err != nil {
		t.Fatalf("seed supplier %s: %v", code, err)
	}
	return sup.ID
}

// seedStock puts qty units of a component at a location through the ledger so
// the transaction log stays consistent.
func seedStock(t *testing.T, pool *pgxpool.Pool, stock core.StockService, componentID, locationID int, qty int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := stock.Adjust(ctx, componentID, locationID, qty, core.TxAdjust, "test seed", "tester"); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}
