package core_test

import (
	"context"
	"testing"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"
)

func TestEvaluateFeasibility(t *testing.T) {
	tests := []struct {
		name         string
		quantity     int64
		lines        []core.BOMLine
		wantFeasible bool
		wantShortage map[string]int64
	}{
		{
			name:     "Shortage on required component",
			quantity: 10,
			lines: []core.BOMLine{
				{PartNumber: "C1", QuantityPerUnit: 2, Available: 15},
			},
			wantFeasible: false,
			wantShortage: map[string]int64{"C1": 5},
		},
		{
			name:     "Exactly enough",
			quantity: 10,
			lines: []core.BOMLine{
				{PartNumber: "C1", QuantityPerUnit: 2, Available: 20},
			},
			wantFeasible: true,
			wantShortage: map[string]int64{"C1": 0},
		},
		{
			name:     "Optional shortage never blocks",
			quantity: 4,
			lines: []core.BOMLine{
				{PartNumber: "C1", QuantityPerUnit: 1, Available: 4},
				{PartNumber: "LED", QuantityPerUnit: 1, Available: 0, IsOptional: true},
			},
			wantFeasible: true,
			wantShortage: map[string]int64{"C1": 0, "LED": 4},
		},
		{
			name:     "Multiple required shortages all reported",
			quantity: 3,
			lines: []core.BOMLine{
				{PartNumber: "C1", QuantityPerUnit: 2, Available: 1},
				{PartNumber: "C2", QuantityPerUnit: 5, Available: 0},
			},
			wantFeasible: false,
			wantShortage: map[string]int64{"C1": 5, "C2": 15},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := core.EvaluateFeasibility("Widget", tc.quantity, tc.lines)
			if result.Feasible != tc.wantFeasible {
				t.Errorf("feasible = %v, want %v", result.Feasible, tc.wantFeasible)
			}
			if len(result.Items) != len(tc.lines) {
				t.Fatalf("items = %d, want one per BOM line (%d)", len(result.Items), len(tc.lines))
			}
			for _, item := range result.Items {
				if want := tc.wantShortage[item.PartNumber]; item.Shortage != want {
					t.Errorf("%s: shortage = %d, want %d", item.PartNumber, item.Shortage, want)
				}
				if wantRequired := tc.quantity * item.QuantityPerUnit; item.TotalRequired != wantRequired {
					t.Errorf("%s: total_required = %d, want %d", item.PartNumber, item.TotalRequired, wantRequired)
				}
			}
		})
	}
}

func TestDeriveStockStatus(t *testing.T) {
	min10, max50 := int64(10), int64(50)
	tests := []struct {
		name     string
		quantity int64
		minimum  *int64
		maximum  *int64
		want     core.StockStatus
	}{
		{"Zero is out of stock", 0, &min10, &max50, core.OutOfStock},
		{"At minimum is low", 10, &min10, nil, core.LowStock},
		{"Above maximum is overstock", 51, &min10, &max50, core.Overstock},
		{"Healthy middle", 30, &min10, &max50, core.InStock},
		{"No thresholds", 1, nil, nil, core.InStock},
		{"Out of stock wins over thresholds", 0, nil, nil, core.OutOfStock},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := core.DeriveStockStatus(tc.quantity, tc.minimum, tc.maximum)
			if got != tc.want {
				t.Errorf("DeriveStockStatus(%d) = %s, want %s", tc.quantity, got, tc.want)
			}
		})
	}
}

func TestCheckFeasibility_NetsOutReservations(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	stock := core.NewStockService(pool)
	bom := core.NewBOMService(pool)

	c1 := seedComponent(t, pool, "C1", "Ceramic Capacitor")
	l1 := seedLocation(t, pool, "L1", "Main Warehouse")
	l2 := seedLocation(t, pool, "L2", "Overflow Shelf")
	seedStock(t, pool, stock, c1, l1, 12)
	seedStock(t, pool, stock, c1, l2, 8)

	if _, err := bom.UpsertEntry(ctx, core.BOMEntryInput{
		ProductName: "Widget", PartNumber: "C1", QuantityPerUnit: 2,
	}); err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}

	// 20 on hand across both locations: 10 units feasible.
	result, err := bom.CheckFeasibility(ctx, "Widget", 10)
	if err != nil {
		t.Fatalf("CheckFeasibility: %v", err)
	}
	if !result.Feasible {
		t.Errorf("expected feasible with 20 available, got %+v", result)
	}

	// A reservation reduces availability even though on-hand is unchanged.
	ref := &core.TxReference{Type: "manual", ID: "tester"}
	if _, err := stock.Reserve(ctx, c1, l1, 5, ref, "tester"); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	result, err = bom.CheckFeasibility(ctx, "Widget", 10)
	if err != nil {
		t.Fatalf("CheckFeasibility after reserve: %v", err)
	}
	if result.Feasible {
		t.Error("expected infeasible once reservations are netted out")
	}
	if result.Items[0].Shortage != 5 {
		t.Errorf("shortage = %d, want 5", result.Items[0].Shortage)
	}
}

func TestCheckFeasibility_UnknownProduct(t *testing.T) {
	pool := setupTestDB(t)
	bom := core.NewBOMService(pool)

	_, err := bom.CheckFeasibility(context.Background(), "Nonexistent", 1)
	if !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
