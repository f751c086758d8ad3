package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"
)

func TestStockLedger_AdjustAndReplay(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	stock := core.NewStockService(pool)

	componentID := seedComponent(t, pool, "RES-10K", "10k Resistor")
	locationID := seedLocation(t, pool, "MAIN", "Main Warehouse")

	// A mixed sequence of mutations on one record.
	steps := []struct {
		delta  int64
		txType core.TransactionType
	}{
		{100, core.TxAdjust},
		{-30, core.TxConsume},
		{25, core.TxReturn},
		{-5, core.TxScrap},
	}
	var want int64
	for _, step := range steps {
		result, err := stock.Adjust(ctx, componentID, locationID, step.delta, step.txType, "test", "tester")
		if err != nil {
			t.Fatalf("Adjust(%+d, %s): %v", step.delta, step.txType, err)
		}
		if result.PreviousQty != want {
			t.Errorf("Adjust(%+d): previous_qty = %d, want %d", step.delta, result.PreviousQty, want)
		}
		want += step.delta
		if result.NewQty != want {
			t.Errorf("Adjust(%+d): new_qty = %d, want %d", step.delta, result.NewQty, want)
		}
	}

	// Replaying the log reproduces the final quantity, and each entry's
	// previous_qty equals the prior entry's new_qty.
	history, err := stock.History(ctx, componentID, locationID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != len(steps) {
		t.Fatalf("expected %d log entries, got %d", len(steps), len(history))
	}
	var replayed int64
	var prevNew *int64
	for _, entry := range history {
		if prevNew != nil && entry.PreviousQty != *prevNew {
			t.Errorf("entry %d: previous_qty = %d, want %d (prior entry's new_qty)",
				entry.ID, entry.PreviousQty, *prevNew)
		}
		replayed += entry.Quantity
		if entry.NewQty != replayed {
			t.Errorf("entry %d: new_qty = %d, replay says %d", entry.ID, entry.NewQty, replayed)
		}
		n := entry.NewQty
		prevNew = &n
	}
	if replayed != want {
		t.Errorf("replayed quantity = %d, want %d", replayed, want)
	}
}

func TestStockLedger_NegativeStockRejected(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	stock := core.NewStockService(pool)

	componentID := seedComponent(t, pool, "CAP-100N", "100n Capacitor")
	locationID := seedLocation(t, pool, "MAIN", "Main Warehouse")
	seedStock(t, pool, stock, componentID, locationID, 10)

	_, err := stock.Adjust(ctx, componentID, locationID, -11, core.TxConsume, "too much", "tester")
	var invalidOp *core.InvalidOperationError
	if !errors.As(err, &invalidOp) {
		t.Fatalf("expected InvalidOperationError, got %v", err)
	}

	// The failed call must leave no trace in the ledger.
	history, err := stock.History(ctx, componentID, locationID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected only the seed entry, got %d entries", len(history))
	}
}

func TestStockLedger_ReserveReleaseBounds(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	stock := core.NewStockService(pool)

	componentID := seedComponent(t, pool, "MCU-STM32", "STM32 MCU")
	locationID := seedLocation(t, pool, "MAIN", "Main Warehouse")
	seedStock(t, pool, stock, componentID, locationID, 50)

	ref := &core.TxReference{Type: "manual", ID: "tester"}

	if _, err := stock.Reserve(ctx, componentID, locationID, 30, ref, "tester"); err != nil {
		t.Fatalf("Reserve 30: %v", err)
	}

	// Only 20 available now.
	_, err := stock.Reserve(ctx, componentID, locationID, 21, ref, "tester")
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 20 {
		t.Errorf("InsufficientStockError.Available = %d, want 20", insufficient.Available)
	}

	// Release clamps to the live reservation, never negative.
	if _, err := stock.Release(ctx, componentID, locationID, 100, ref, "tester"); err != nil {
		t.Fatalf("Release 100 (clamped): %v", err)
	}

	levels, err := stock.GetStockLevels(ctx)
	if err != nil {
		t.Fatalf("GetStockLevels: %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("expected one stock record, got %d", len(levels))
	}
	lvl := levels[0]
	if lvl.ReservedQty != 0 {
		t.Errorf("reserved_qty = %d, want 0 after clamped release", lvl.ReservedQty)
	}
	if lvl.Available != lvl.Quantity-lvl.ReservedQty {
		t.Errorf("available = %d, want quantity-reserved = %d", lvl.Available, lvl.Quantity-lvl.ReservedQty)
	}
	if lvl.Quantity != 50 {
		t.Errorf("quantity = %d, reservations must not change on-hand", lvl.Quantity)
	}
}

func TestStockLedger_RecordCount(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	stock := core.NewStockService(pool)

	componentID := seedComponent(t, pool, "LED-RED", "Red LED")
	locationID := seedLocation(t, pool, "MAIN", "Main Warehouse")
	seedStock(t, pool, stock, componentID, locationID, 80)

	ref := &core.TxReference{Type: "manual", ID: "tester"}
	if _, err := stock.Reserve(ctx, componentID, locationID, 40, ref, "tester"); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	// Count finds fewer units than reserved: quantity overwritten, reservation
	// clamped so reserved <= quantity keeps holding.
	result, err := stock.RecordCount(ctx, componentID, locationID, 25, "auditor")
	if err != nil {
		t.Fatalf("RecordCount: %v", err)
	}
	if result.PreviousQty != 80 || result.CountedQty != 25 || result.Discrepancy != -55 {
		t.Errorf("count result = %+v, want previous 80, counted 25, discrepancy -55", result)
	}

	levels, err := stock.GetStockLevels(ctx)
	if err != nil {
		t.Fatalf("GetStockLevels: %v", err)
	}
	if levels[0].Quantity != 25 || levels[0].ReservedQty != 25 {
		t.Errorf("after count: quantity = %d reserved = %d, want 25/25",
			levels[0].Quantity, levels[0].ReservedQty)
	}
}

func TestStockLedger_Transfer(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	stock := core.NewStockService(pool)

	componentID := seedComponent(t, pool, "PCB-MAIN", "Main PCB")
	mainID := seedLocation(t, pool, "MAIN", "Main Warehouse")
	benchID := seedLocation(t, pool, "BENCH", "Assembly Bench")
	seedStock(t, pool, stock, componentID, mainID, 40)

	if err := stock.Transfer(ctx, componentID, mainID, benchID, 15, "tester"); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	levels, err := stock.GetStockLevels(ctx)
	if err != nil {
		t.Fatalf("GetStockLevels: %v", err)
	}
	byLocation := map[string]int64{}
	for _, lvl := range levels {
		byLocation[lvl.LocationCode] = lvl.Quantity
	}
	if byLocation["MAIN"] != 25 || byLocation["BENCH"] != 15 {
		t.Errorf("after transfer: MAIN = %d BENCH = %d, want 25/15", byLocation["MAIN"], byLocation["BENCH"])
	}

	// Two transfer-typed entries, one per side.
	outHistory, err := stock.History(ctx, componentID, mainID)
	if err != nil {
		t.Fatalf("History MAIN: %v", err)
	}
	last := outHistory[len(outHistory)-1]
	if last.Type != core.TxTransfer || last.Quantity != -15 {
		t.Errorf("outbound entry = %s %+d, want transfer -15", last.Type, last.Quantity)
	}
	inHistory, err := stock.History(ctx, componentID, benchID)
	if err != nil {
		t.Fatalf("History BENCH: %v", err)
	}
	if inHistory[0].Type != core.TxTransfer || inHistory[0].Quantity != 15 {
		t.Errorf("inbound entry = %s %+d, want transfer +15", inHistory[0].Type, inHistory[0].Quantity)
	}
}
