package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func setupPOTest(t *testing.T) (*pgxpool.Pool, core.StockService, core.PurchaseOrderService, int, int, int, context.Context) {
	t.Helper()
	pool := setupTestDB(t)
	ctx := context.Background()

	stock := core.NewStockService(pool)
	orders := core.NewPurchaseOrderService(pool, stock)

	supplierID := seedSupplier(t, pool, "SUP-01", "Shenzhen Components Ltd")
	componentID := seedComponent(t, pool, "C1", "Ceramic Capacitor")
	locationID := seedLocation(t, pool, "L1", "Main Warehouse")

	return pool, stock, orders, supplierID, componentID, locationID, ctx
}

func createDraftPO(t *testing.T, orders core.PurchaseOrderService, ctx context.Context,
	supplierID int, qty int64) *core.PurchaseOrder {
	t.Helper()
	po, err := orders.Create(ctx, supplierID, nil, []core.POLineInput{
		{PartNumber: "C1", QuantityOrdered: qty, UnitPrice: decimal.NewFromFloat(0.50)},
	}, "")
	if err != nil {
		t.Fatalf("Create PO: %v", err)
	}
	return po
}

// advancePO walks a PO through the given statuses in order.
func advancePO(t *testing.T, orders core.PurchaseOrderService, ctx context.Context,
	poID int, statuses ...core.POStatus) *core.PurchaseOrder {
	t.Helper()
	var po *core.PurchaseOrder
	var err error
	for _, status := range statuses {
		po, err = orders.UpdateStatus(ctx, poID, status)
		if err != nil {
			t.Fatalf("UpdateStatus to %s: %v", status, err)
		}
	}
	return po
}

func TestPurchaseOrder_CreateDraft(t *testing.T) {
	_, _, orders, supplierID, _, _, ctx := setupPOTest(t)

	po := createDraftPO(t, orders, ctx, supplierID, 100)

	if po.Status != core.PODraft {
		t.Errorf("status = %s, want draft", po.Status)
	}
	prefix := "PO-" + time.Now().UTC().Format("2006") + "-"
	if !strings.HasPrefix(po.PONumber, prefix) {
		t.Errorf("po_number = %q, want prefix %q", po.PONumber, prefix)
	}
	if len(po.Lines) != 1 || po.Lines[0].LineNumber != 1 {
		t.Fatalf("expected one line numbered 1, got %+v", po.Lines)
	}
	wantTotal := decimal.NewFromInt(50)
	if !po.Subtotal.Equal(wantTotal) || !po.Total.Equal(wantTotal) {
		t.Errorf("subtotal = %s total = %s, want both 50", po.Subtotal, po.Total)
	}
	if po.OrderDate != nil {
		t.Error("draft PO must not have order_date stamped")
	}
}

func TestPurchaseOrder_AddLineOnlyWhileDraft(t *testing.T) {
	pool, _, orders, supplierID, _, _, ctx := setupPOTest(t)
	seedComponent(t, pool, "C2", "Shift Register")

	po := createDraftPO(t, orders, ctx, supplierID, 10)

	updated, err := orders.AddLine(ctx, po.ID, core.POLineInput{
		PartNumber: "C2", QuantityOrdered: 5, UnitPrice: decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("AddLine on draft: %v", err)
	}
	if len(updated.Lines) != 2 || updated.Lines[1].LineNumber != 2 {
		t.Fatalf("expected two numbered lines, got %+v", updated.Lines)
	}
	// Totals recomputed: 10*0.50 + 5*2 = 15.
	if !updated.Total.Equal(decimal.NewFromInt(15)) {
		t.Errorf("total = %s, want 15", updated.Total)
	}

	advancePO(t, orders, ctx, po.ID, core.POSubmitted)
	_, err = orders.AddLine(ctx, po.ID, core.POLineInput{
		PartNumber: "C2", QuantityOrdered: 1, UnitPrice: decimal.NewFromInt(2),
	})
	var invalidOp *core.InvalidOperationError
	if !errors.As(err, &invalidOp) {
		t.Fatalf("expected InvalidOperationError adding line to submitted PO, got %v", err)
	}
}

func TestPurchaseOrder_UpdateLineRecomputesTotals(t *testing.T) {
	_, _, orders, supplierID, _, _, ctx := setupPOTest(t)

	po := createDraftPO(t, orders, ctx, supplierID, 100)

	qty := int64(20)
	updated, err := orders.UpdateLine(ctx, po.ID, 1, core.POLineUpdate{QuantityOrdered: &qty})
	if err != nil {
		t.Fatalf("UpdateLine: %v", err)
	}
	if updated.Lines[0].QuantityOrdered != 20 {
		t.Errorf("quantity_ordered = %d, want 20", updated.Lines[0].QuantityOrdered)
	}
	// Totals recomputed: 20*0.50 = 10.
	if !updated.Total.Equal(decimal.NewFromInt(10)) {
		t.Errorf("total = %s, want 10", updated.Total)
	}

	price := decimal.NewFromInt(2)
	updated, err = orders.UpdateLine(ctx, po.ID, 1, core.POLineUpdate{UnitPrice: &price})
	if err != nil {
		t.Fatalf("UpdateLine price: %v", err)
	}
	if !updated.Total.Equal(decimal.NewFromInt(40)) {
		t.Errorf("total = %s, want 40 after price change", updated.Total)
	}

	if _, err := orders.UpdateLine(ctx, po.ID, 99, core.POLineUpdate{UnitPrice: &price}); !core.IsNotFound(err) {
		t.Errorf("expected not-found for unknown line number, got %v", err)
	}

	advancePO(t, orders, ctx, po.ID, core.POSubmitted)
	_, err = orders.UpdateLine(ctx, po.ID, 1, core.POLineUpdate{QuantityOrdered: &qty})
	var invalidOp *core.InvalidOperationError
	if !errors.As(err, &invalidOp) {
		t.Fatalf("expected InvalidOperationError editing line of submitted PO, got %v", err)
	}
}

func TestPurchaseOrder_TransitionTable(t *testing.T) {
	_, _, orders, supplierID, _, _, ctx := setupPOTest(t)

	t.Run("DraftToReceivedRejected", func(t *testing.T) {
		po := createDraftPO(t, orders, ctx, supplierID, 10)
		_, err := orders.UpdateStatus(ctx, po.ID, core.POReceived)
		var invalid *core.InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
		if invalid.From != "draft" || invalid.To != "received" {
			t.Errorf("error edge = %s to %s, want draft to received", invalid.From, invalid.To)
		}
		if len(invalid.Allowed) != 2 {
			t.Errorf("allowed targets = %v, want [submitted cancelled]", invalid.Allowed)
		}
	})

	t.Run("HappyPathEndToEnd", func(t *testing.T) {
		po := createDraftPO(t, orders, ctx, supplierID, 10)
		final := advancePO(t, orders, ctx, po.ID,
			core.POSubmitted, core.POConfirmed, core.POShipped, core.POReceived)
		if final.Status != core.POReceived {
			t.Errorf("final status = %s, want received", final.Status)
		}
		if final.OrderDate == nil {
			t.Error("submitted must stamp order_date")
		}
		if final.ActualDelivery == nil {
			t.Error("received must stamp actual_delivery")
		}
	})

	t.Run("TerminalStatesRejectEverything", func(t *testing.T) {
		po := createDraftPO(t, orders, ctx, supplierID, 10)
		advancePO(t, orders, ctx, po.ID, core.POCancelled)
		_, err := orders.UpdateStatus(ctx, po.ID, core.POSubmitted)
		var invalid *core.InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidTransitionError out of cancelled, got %v", err)
		}
		if len(invalid.Allowed) != 0 {
			t.Errorf("cancelled is terminal, allowed = %v", invalid.Allowed)
		}
	})
}

func TestPurchaseOrder_ReceiveShipmentFull(t *testing.T) {
	_, stock, orders, supplierID, componentID, locationID, ctx := setupPOTest(t)

	po := createDraftPO(t, orders, ctx, supplierID, 100)
	advancePO(t, orders, ctx, po.ID, core.POSubmitted, core.POConfirmed, core.POShipped)

	received, err := orders.ReceiveShipment(ctx, po.ID, []core.LineReceipt{
		{LineID: po.Lines[0].ID, Qty: 100, LocationID: locationID},
	}, "receiver")
	if err != nil {
		t.Fatalf("ReceiveShipment: %v", err)
	}

	if received.Status != core.POReceived {
		t.Errorf("PO status = %s, want received", received.Status)
	}
	if received.Lines[0].Status != core.POLineReceived {
		t.Errorf("line status = %s, want received", received.Lines[0].Status)
	}
	if received.Lines[0].QuantityReceived != 100 {
		t.Errorf("quantity_received = %d, want 100", received.Lines[0].QuantityReceived)
	}
	if received.ActualDelivery == nil {
		t.Error("fully received PO must stamp actual_delivery")
	}

	levels, err := stock.GetStockLevels(ctx)
	if err != nil {
		t.Fatalf("GetStockLevels: %v", err)
	}
	if len(levels) != 1 || levels[0].Quantity != 100 {
		t.Fatalf("expected one record with 100 on hand, got %+v", levels)
	}
	if !levels[0].CostPerUnit.Equal(decimal.NewFromFloat(0.50)) {
		t.Errorf("cost_per_unit = %s, want refreshed to 0.50", levels[0].CostPerUnit)
	}

	history, err := stock.History(ctx, componentID, locationID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(history))
	}
	entry := history[0]
	if entry.Type != core.TxReceive || entry.Quantity != 100 {
		t.Errorf("entry = %s %+d, want receive +100", entry.Type, entry.Quantity)
	}
	if entry.ReferenceType == nil || *entry.ReferenceType != "purchase_order" ||
		entry.ReferenceID == nil || *entry.ReferenceID != received.PONumber {
		t.Errorf("entry reference = %v/%v, want purchase_order/%s",
			entry.ReferenceType, entry.ReferenceID, received.PONumber)
	}
}

func TestPurchaseOrder_ReceiveShipmentPartial(t *testing.T) {
	_, _, orders, supplierID, _, locationID, ctx := setupPOTest(t)

	po := createDraftPO(t, orders, ctx, supplierID, 100)
	advancePO(t, orders, ctx, po.ID, core.POSubmitted, core.POConfirmed, core.POShipped)

	received, err := orders.ReceiveShipment(ctx, po.ID, []core.LineReceipt{
		{LineID: po.Lines[0].ID, Qty: 40, LocationID: locationID},
	}, "receiver")
	if err != nil {
		t.Fatalf("ReceiveShipment: %v", err)
	}
	if received.Status != core.POPartialReceived {
		t.Errorf("PO status = %s, want partial_received", received.Status)
	}
	if received.Lines[0].Status != core.POLinePartial {
		t.Errorf("line status = %s, want partial", received.Lines[0].Status)
	}

	// Second shipment completes the line.
	received, err = orders.ReceiveShipment(ctx, po.ID, []core.LineReceipt{
		{LineID: po.Lines[0].ID, Qty: 60, LocationID: locationID},
	}, "receiver")
	if err != nil {
		t.Fatalf("second ReceiveShipment: %v", err)
	}
	if received.Status != core.POReceived {
		t.Errorf("PO status after completion = %s, want received", received.Status)
	}
}

func TestPurchaseOrder_ReceiveShipmentAtomicity(t *testing.T) {
	pool, stock, orders, supplierID, componentID, locationID, ctx := setupPOTest(t)
	seedComponent(t, pool, "C2", "Shift Register")

	po, err := orders.Create(ctx, supplierID, nil, []core.POLineInput{
		{PartNumber: "C1", QuantityOrdered: 50, UnitPrice: decimal.NewFromFloat(0.50)},
		{PartNumber: "C2", QuantityOrdered: 20, UnitPrice: decimal.NewFromInt(2)},
	}, "")
	if err != nil {
		t.Fatalf("Create PO: %v", err)
	}
	advancePO(t, orders, ctx, po.ID, core.POSubmitted, core.POConfirmed, core.POShipped)

	// One valid receipt, one over-receipt. Nothing may stick.
	_, err = orders.ReceiveShipment(ctx, po.ID, []core.LineReceipt{
		{LineID: po.Lines[0].ID, Qty: 50, LocationID: locationID},
		{LineID: po.Lines[1].ID, Qty: 21, LocationID: locationID},
	}, "receiver")
	var overReceipt *core.OverReceiptError
	if !errors.As(err, &overReceipt) {
		t.Fatalf("expected OverReceiptError, got %v", err)
	}
	if overReceipt.Ordered != 20 || overReceipt.Attempted != 21 {
		t.Errorf("over-receipt detail = %+v, want ordered 20 attempted 21", overReceipt)
	}

	after, err := orders.Get(ctx, po.ID)
	if err != nil {
		t.Fatalf("Get after failed receive: %v", err)
	}
	if after.Status != core.POShipped {
		t.Errorf("PO status = %s, must stay shipped", after.Status)
	}
	for _, line := range after.Lines {
		if line.QuantityReceived != 0 || line.Status != core.POLinePending {
			t.Errorf("line %d: received = %d status = %s, must stay 0/pending",
				line.LineNumber, line.QuantityReceived, line.Status)
		}
	}

	levels, err := stock.GetStockLevels(ctx)
	if err != nil {
		t.Fatalf("GetStockLevels: %v", err)
	}
	if len(levels) != 0 {
		t.Errorf("expected no stock records after rolled-back receive, got %+v", levels)
	}
	history, err := stock.History(ctx, componentID, locationID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected no log entries after rolled-back receive, got %d", len(history))
	}
}

func TestPurchaseOrder_ReceiveRequiresShippedState(t *testing.T) {
	_, _, orders, supplierID, _, locationID, ctx := setupPOTest(t)

	po := createDraftPO(t, orders, ctx, supplierID, 10)
	_, err := orders.ReceiveShipment(ctx, po.ID, []core.LineReceipt{
		{LineID: po.Lines[0].ID, Qty: 10, LocationID: locationID},
	}, "receiver")
	var invalidOp *core.InvalidOperationError
	if !errors.As(err, &invalidOp) {
		t.Fatalf("expected InvalidOperationError receiving a draft PO, got %v", err)
	}
}

func TestPurchaseOrder_ReceiveResolvesStockAlerts(t *testing.T) {
	pool, stock, orders, supplierID, componentID, locationID, ctx := setupPOTest(t)

	// Component is below minimum with a live system alert.
	seedStock(t, pool, stock, componentID, locationID, 2)
	minimum := int64(10)
	if _, err := stock.SetThresholds(ctx, componentID, locationID,
		core.StockThresholds{MinimumStock: &minimum}); err != nil {
		t.Fatalf("SetThresholds: %v", err)
	}
	monitor := core.NewMonitorService(pool, orders, &notifyRecorder{}, nil)
	if _, err := monitor.RunStockSweep(ctx); err != nil {
		t.Fatalf("RunStockSweep: %v", err)
	}
	alerts := core.NewAlertService(pool)
	active := core.AlertActive
	before, err := alerts.List(ctx, &active)
	if err != nil {
		t.Fatalf("List alerts: %v", err)
	}
	if len(before) != 1 {
		t.Fatalf("expected one live stock alert before receiving, got %d", len(before))
	}

	po := createDraftPO(t, orders, ctx, supplierID, 100)
	advancePO(t, orders, ctx, po.ID, core.POSubmitted, core.POConfirmed, core.POShipped)
	if _, err := orders.ReceiveShipment(ctx, po.ID, []core.LineReceipt{
		{LineID: po.Lines[0].ID, Qty: 100, LocationID: locationID},
	}, "receiver"); err != nil {
		t.Fatalf("ReceiveShipment: %v", err)
	}

	after, err := alerts.List(ctx, &active)
	if err != nil {
		t.Fatalf("List alerts after receive: %v", err)
	}
	if len(after) != 0 {
		t.Errorf("stock alert must auto-resolve once on-hand exceeds minimum, still active: %+v", after)
	}
}

func TestPurchaseOrder_SequenceNumbersAreMonotonic(t *testing.T) {
	_, _, orders, supplierID, _, _, ctx := setupPOTest(t)

	first := createDraftPO(t, orders, ctx, supplierID, 1)
	second := createDraftPO(t, orders, ctx, supplierID, 1)
	if first.PONumber == second.PONumber {
		t.Fatalf("duplicate PO numbers: %s", first.PONumber)
	}
	if !(second.PONumber > first.PONumber) {
		t.Errorf("PO numbers not monotonic: %s then %s", first.PONumber, second.PONumber)
	}
}
