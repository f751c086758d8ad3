package core_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/notify"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// notifyRecorder captures every event a sweep dispatches.
type notifyRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *notifyRecorder) Notify(_ context.Context, event notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *notifyRecorder) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

func setupMonitorTest(t *testing.T) (*pgxpool.Pool, core.StockService, core.PurchaseOrderService,
	core.MonitorService, core.AlertService, *notifyRecorder, int, int, context.Context) {
	t.Helper()
	pool := setupTestDB(t)
	ctx := context.Background()

	stock := core.NewStockService(pool)
	orders := core.NewPurchaseOrderService(pool, stock)
	recorder := &notifyRecorder{}
	monitor := core.NewMonitorService(pool, orders, recorder, nil)
	alerts := core.NewAlertService(pool)

	componentID := seedComponent(t, pool, "C1", "Ceramic Capacitor")
	locationID := seedLocation(t, pool, "L1", "Main Warehouse")

	return pool, stock, orders, monitor, alerts, recorder, componentID, locationID, ctx
}

func activeAlerts(t *testing.T, alerts core.AlertService, ctx context.Context) []core.Alert {
	t.Helper()
	active := core.AlertActive
	list, err := alerts.List(ctx, &active)
	if err != nil {
		t.Fatalf("List active alerts: %v", err)
	}
	return list
}

func setMinimum(t *testing.T, stock core.StockService, ctx context.Context,
	componentID, locationID int, minimum int64) {
	t.Helper()
	if _, err := stock.SetThresholds(ctx, componentID, locationID,
		core.StockThresholds{MinimumStock: &minimum}); err != nil {
		t.Fatalf("SetThresholds: %v", err)
	}
}

func adjustStock(t *testing.T, stock core.StockService, ctx context.Context,
	componentID, locationID int, delta int64) {
	t.Helper()
	if _, err := stock.Adjust(ctx, componentID, locationID, delta,
		core.TxAdjust, "test adjustment", "tester"); err != nil {
		t.Fatalf("Adjust by %d: %v", delta, err)
	}
}

func TestStockSweep_LowStockLifecycle(t *testing.T) {
	pool, stock, _, monitor, alerts, recorder, componentID, locationID, ctx := setupMonitorTest(t)

	seedStock(t, pool, stock, componentID, locationID, 8)
	setMinimum(t, stock, ctx, componentID, locationID, 10)

	report, err := monitor.RunStockSweep(ctx)
	if err != nil {
		t.Fatalf("RunStockSweep: %v", err)
	}
	if report.Checked != 1 || report.Alerted != 1 {
		t.Fatalf("first sweep: want checked=1 alerted=1, got %+v", report)
	}
	active := activeAlerts(t, alerts, ctx)
	if len(active) != 1 {
		t.Fatalf("expected one live alert, got %d", len(active))
	}
	first := active[0]
	if first.Type != core.AlertTypeLowStock || first.Severity != core.SeverityWarning {
		t.Errorf("want warning low_stock alert, got %s/%s", first.Type, first.Severity)
	}
	if !first.IsSystem {
		t.Error("sweep alerts must be system alerts")
	}
	if first.ComponentID == nil || *first.ComponentID != componentID {
		t.Errorf("alert not linked to component %d: %+v", componentID, first.ComponentID)
	}
	if len(recorder.Events()) != 0 {
		t.Errorf("warning alerts must not notify, got %+v", recorder.Events())
	}

	// Re-running with no state change is a no-op.
	report, err = monitor.RunStockSweep(ctx)
	if err != nil {
		t.Fatalf("second RunStockSweep: %v", err)
	}
	if report.Alerted != 0 || report.Escalated != 0 {
		t.Fatalf("second sweep must not alert again, got %+v", report)
	}
	if got := activeAlerts(t, alerts, ctx); len(got) != 1 {
		t.Fatalf("second sweep duplicated the alert: %d live", len(got))
	}

	// Dropping to half the minimum escalates the existing alert in place.
	adjustStock(t, stock, ctx, componentID, locationID, -4)
	report, err = monitor.RunStockSweep(ctx)
	if err != nil {
		t.Fatalf("escalation RunStockSweep: %v", err)
	}
	if report.Escalated != 1 || report.Alerted != 0 {
		t.Fatalf("want escalated=1 alerted=0, got %+v", report)
	}
	active = activeAlerts(t, alerts, ctx)
	if len(active) != 1 {
		t.Fatalf("escalation must reuse the alert, got %d live", len(active))
	}
	if active[0].ID != first.ID {
		t.Errorf("escalation opened a new alert: %d then %d", first.ID, active[0].ID)
	}
	if active[0].Severity != core.SeverityCritical {
		t.Errorf("want critical severity after escalation, got %s", active[0].Severity)
	}
	events := recorder.Events()
	if len(events) != 1 || events[0].AlertID != first.ID || events[0].Severity != string(core.SeverityCritical) {
		t.Errorf("escalation must notify once with the critical event, got %+v", events)
	}

	// Restocking auto-resolves on the next sweep.
	adjustStock(t, stock, ctx, componentID, locationID, 50)
	report, err = monitor.RunStockSweep(ctx)
	if err != nil {
		t.Fatalf("recovery RunStockSweep: %v", err)
	}
	if report.Resolved != 1 {
		t.Fatalf("want resolved=1 after restock, got %+v", report)
	}
	if got := activeAlerts(t, alerts, ctx); len(got) != 0 {
		t.Errorf("alert must auto-resolve once healthy, still live: %+v", got)
	}
}

func TestStockSweep_OutOfStockSupersedesLow(t *testing.T) {
	pool, stock, _, monitor, alerts, recorder, componentID, locationID, ctx := setupMonitorTest(t)

	seedStock(t, pool, stock, componentID, locationID, 6)
	setMinimum(t, stock, ctx, componentID, locationID, 10)

	if _, err := monitor.RunStockSweep(ctx); err != nil {
		t.Fatalf("RunStockSweep: %v", err)
	}
	adjustStock(t, stock, ctx, componentID, locationID, -6)

	report, err := monitor.RunStockSweep(ctx)
	if err != nil {
		t.Fatalf("RunStockSweep at zero: %v", err)
	}
	if report.Resolved != 1 || report.Alerted != 1 {
		t.Fatalf("want the low alert resolved and one out-of-stock opened, got %+v", report)
	}
	active := activeAlerts(t, alerts, ctx)
	if len(active) != 1 {
		t.Fatalf("expected exactly one live alert, got %d", len(active))
	}
	if active[0].Type != core.AlertTypeOutOfStock || active[0].Severity != core.SeverityCritical {
		t.Errorf("want critical out_of_stock, got %s/%s", active[0].Type, active[0].Severity)
	}
	events := recorder.Events()
	if len(events) != 1 || events[0].Type != core.AlertTypeOutOfStock {
		t.Errorf("out-of-stock must notify, got %+v", events)
	}
}

func TestStockSweep_MessageAnnotatesIncomingQuantity(t *testing.T) {
	pool, stock, orders, monitor, alerts, _, componentID, locationID, ctx := setupMonitorTest(t)

	seedStock(t, pool, stock, componentID, locationID, 3)
	setMinimum(t, stock, ctx, componentID, locationID, 10)

	supplierID := seedSupplier(t, pool, "SUP-01", "Shenzhen Components Ltd")
	po, err := orders.Create(ctx, supplierID, nil, []core.POLineInput{
		{PartNumber: "C1", QuantityOrdered: 200, UnitPrice: decimal.NewFromFloat(0.10)},
	}, "")
	if err != nil {
		t.Fatalf("Create PO: %v", err)
	}
	advancePO(t, orders, ctx, po.ID, core.POSubmitted, core.POConfirmed)

	if _, err := monitor.RunStockSweep(ctx); err != nil {
		t.Fatalf("RunStockSweep: %v", err)
	}
	active := activeAlerts(t, alerts, ctx)
	if len(active) != 1 || active[0].Message == nil {
		t.Fatalf("expected one live alert with a message, got %+v", active)
	}
	if !strings.Contains(*active[0].Message, "200 on order") {
		t.Errorf("alert message must mention quantity on order, got %q", *active[0].Message)
	}
}

func TestPOOverdueSweep(t *testing.T) {
	pool, _, orders, monitor, alerts, recorder, _, _, ctx := setupMonitorTest(t)

	supplierID := seedSupplier(t, pool, "SUP-01", "Shenzhen Components Ltd")
	po := createDraftPO(t, orders, ctx, supplierID, 10)
	advancePO(t, orders, ctx, po.ID, core.POSubmitted, core.POConfirmed)

	// Overdue by three days: a warning.
	if _, err := pool.Exec(ctx,
		"UPDATE purchase_orders SET expected_delivery = CURRENT_DATE - 3 WHERE id = $1",
		po.ID); err != nil {
		t.Fatalf("set expected_delivery: %v", err)
	}
	report, err := monitor.RunPOOverdueSweep(ctx)
	if err != nil {
		t.Fatalf("RunPOOverdueSweep: %v", err)
	}
	if report.Checked != 1 || report.Alerted != 1 {
		t.Fatalf("want checked=1 alerted=1, got %+v", report)
	}
	active := activeAlerts(t, alerts, ctx)
	if len(active) != 1 {
		t.Fatalf("expected one live alert, got %d", len(active))
	}
	first := active[0]
	if first.Type != core.AlertTypePOOverdue || first.Severity != core.SeverityWarning {
		t.Errorf("want warning po_overdue, got %s/%s", first.Type, first.Severity)
	}
	if first.PurchaseOrderID == nil || *first.PurchaseOrderID != po.ID {
		t.Errorf("alert not linked to PO %d: %+v", po.ID, first.PurchaseOrderID)
	}

	// Re-running never duplicates.
	report, err = monitor.RunPOOverdueSweep(ctx)
	if err != nil {
		t.Fatalf("second RunPOOverdueSweep: %v", err)
	}
	if report.Alerted != 0 || report.Escalated != 0 {
		t.Fatalf("second sweep must be a no-op, got %+v", report)
	}

	// More than a week late escalates the same alert to critical.
	if _, err := pool.Exec(ctx,
		"UPDATE purchase_orders SET expected_delivery = CURRENT_DATE - 10 WHERE id = $1",
		po.ID); err != nil {
		t.Fatalf("push expected_delivery back: %v", err)
	}
	report, err = monitor.RunPOOverdueSweep(ctx)
	if err != nil {
		t.Fatalf("escalation RunPOOverdueSweep: %v", err)
	}
	if report.Escalated != 1 || report.Alerted != 0 {
		t.Fatalf("want escalated=1, got %+v", report)
	}
	active = activeAlerts(t, alerts, ctx)
	if len(active) != 1 || active[0].ID != first.ID || active[0].Severity != core.SeverityCritical {
		t.Fatalf("escalation must raise the existing alert to critical, got %+v", active)
	}
	if len(recorder.Events()) != 1 {
		t.Errorf("escalation to critical must notify once, got %+v", recorder.Events())
	}
}

func TestPOOverdueSweep_IgnoresTerminalOrders(t *testing.T) {
	pool, _, orders, monitor, alerts, _, _, _, ctx := setupMonitorTest(t)

	supplierID := seedSupplier(t, pool, "SUP-01", "Shenzhen Components Ltd")
	po := createDraftPO(t, orders, ctx, supplierID, 10)
	if _, err := orders.UpdateStatus(ctx, po.ID, core.POCancelled); err != nil {
		t.Fatalf("cancel PO: %v", err)
	}
	if _, err := pool.Exec(ctx,
		"UPDATE purchase_orders SET expected_delivery = CURRENT_DATE - 30 WHERE id = $1",
		po.ID); err != nil {
		t.Fatalf("set expected_delivery: %v", err)
	}

	report, err := monitor.RunPOOverdueSweep(ctx)
	if err != nil {
		t.Fatalf("RunPOOverdueSweep: %v", err)
	}
	if report.Checked != 0 || report.Alerted != 0 {
		t.Fatalf("cancelled POs are never overdue, got %+v", report)
	}
	if got := activeAlerts(t, alerts, ctx); len(got) != 0 {
		t.Errorf("no alert expected for a cancelled PO, got %+v", got)
	}
}

func TestTaskSLASweep_EscalationLadder(t *testing.T) {
	pool, _, _, monitor, alerts, recorder, _, _, ctx := setupMonitorTest(t)
	tasks := core.NewTaskService(pool)

	sla := 8
	task, err := tasks.Create(ctx, core.TaskInput{
		Title:    "Restock solder paste",
		Priority: core.PriorityNormal,
		SLAHours: &sla,
	})
	if err != nil {
		t.Fatalf("Create task: %v", err)
	}
	setDueAgo := func(hours int) {
		t.Helper()
		if _, err := pool.Exec(ctx,
			"UPDATE tasks SET due_at = NOW() - make_interval(hours => $1) WHERE id = $2",
			hours, task.ID); err != nil {
			t.Fatalf("set due_at: %v", err)
		}
	}

	// Under 24h overdue: no escalation yet.
	setDueAgo(2)
	report, err := monitor.RunTaskSLASweep(ctx)
	if err != nil {
		t.Fatalf("RunTaskSLASweep: %v", err)
	}
	if report.Checked != 1 || report.Escalated != 0 || report.Alerted != 0 {
		t.Fatalf("under-threshold task must not escalate, got %+v", report)
	}

	// Past 24h: level 1, priority bumped, warning alert.
	setDueAgo(30)
	report, err = monitor.RunTaskSLASweep(ctx)
	if err != nil {
		t.Fatalf("RunTaskSLASweep at 30h: %v", err)
	}
	if report.Escalated != 1 || report.Alerted != 1 {
		t.Fatalf("want escalated=1 alerted=1, got %+v", report)
	}
	got, err := tasks.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get task: %v", err)
	}
	if got.EscalationLevel != 1 || got.Priority != core.PriorityHigh {
		t.Errorf("want level 1 / high priority, got %d / %s", got.EscalationLevel, got.Priority)
	}
	active := activeAlerts(t, alerts, ctx)
	if len(active) != 1 || active[0].Type != core.AlertTypeTaskSLA ||
		active[0].Severity != core.SeverityWarning {
		t.Fatalf("want one warning task_sla alert, got %+v", active)
	}
	slaAlertID := active[0].ID

	// Re-running at the same level changes nothing.
	report, err = monitor.RunTaskSLASweep(ctx)
	if err != nil {
		t.Fatalf("repeat RunTaskSLASweep: %v", err)
	}
	if report.Escalated != 0 || report.Alerted != 0 {
		t.Fatalf("repeat sweep must be a no-op, got %+v", report)
	}
	got, _ = tasks.Get(ctx, task.ID)
	if got.EscalationLevel != 1 || got.Priority != core.PriorityHigh {
		t.Errorf("repeat sweep changed the task: level %d priority %s", got.EscalationLevel, got.Priority)
	}

	// Past 48h: level 2, priority urgent, same alert now critical.
	setDueAgo(50)
	report, err = monitor.RunTaskSLASweep(ctx)
	if err != nil {
		t.Fatalf("RunTaskSLASweep at 50h: %v", err)
	}
	if report.Escalated != 1 {
		t.Fatalf("want escalated=1 at level 2, got %+v", report)
	}
	got, _ = tasks.Get(ctx, task.ID)
	if got.EscalationLevel != 2 || got.Priority != core.PriorityUrgent {
		t.Errorf("want level 2 / urgent, got %d / %s", got.EscalationLevel, got.Priority)
	}
	active = activeAlerts(t, alerts, ctx)
	if len(active) != 1 || active[0].ID != slaAlertID || active[0].Severity != core.SeverityCritical {
		t.Fatalf("level 2 must raise the existing alert to critical, got %+v", active)
	}
	if len(recorder.Events()) != 1 {
		t.Errorf("level 2 escalation must notify once, got %+v", recorder.Events())
	}

	// Escalation never goes back down, even if the task becomes less overdue.
	setDueAgo(26)
	report, err = monitor.RunTaskSLASweep(ctx)
	if err != nil {
		t.Fatalf("RunTaskSLASweep after due_at moved: %v", err)
	}
	if report.Escalated != 0 {
		t.Fatalf("level must be monotonic, got %+v", report)
	}
	got, _ = tasks.Get(ctx, task.ID)
	if got.EscalationLevel != 2 || got.Priority != core.PriorityUrgent {
		t.Errorf("escalation regressed: level %d priority %s", got.EscalationLevel, got.Priority)
	}
}

func TestTaskSLASweep_IgnoresClosedTasks(t *testing.T) {
	pool, _, _, monitor, alerts, _, _, _, ctx := setupMonitorTest(t)
	tasks := core.NewTaskService(pool)

	sla := 8
	task, err := tasks.Create(ctx, core.TaskInput{Title: "Archive old builds", SLAHours: &sla})
	if err != nil {
		t.Fatalf("Create task: %v", err)
	}
	done := core.TaskDone
	if _, err := tasks.Update(ctx, task.ID, core.TaskUpdate{Status: &done}); err != nil {
		t.Fatalf("close task: %v", err)
	}
	if _, err := pool.Exec(ctx,
		"UPDATE tasks SET due_at = NOW() - INTERVAL '72 hours' WHERE id = $1", task.ID); err != nil {
		t.Fatalf("set due_at: %v", err)
	}

	report, err := monitor.RunTaskSLASweep(ctx)
	if err != nil {
		t.Fatalf("RunTaskSLASweep: %v", err)
	}
	if report.Checked != 0 {
		t.Fatalf("closed tasks are never swept, got %+v", report)
	}
	if got := activeAlerts(t, alerts, ctx); len(got) != 0 {
		t.Errorf("no alert expected for a closed task, got %+v", got)
	}
}
