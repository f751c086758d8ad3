package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/notify"
)

// SweepReport summarizes one sweep run for observability.
type SweepReport struct {
	Checked   int `json:"checked"`
	Alerted   int `json:"alerted"`
	Escalated int `json:"escalated"`
	Resolved  int `json:"resolved"`
	Skipped   int `json:"skipped"`
}

// MonitorService runs the periodic reconciliation sweeps. Each sweep is
// independently invocable, idempotent, and best-effort: a failure on one
// entity is logged and the rest of the sweep proceeds.
type MonitorService interface {
	RunStockSweep(ctx context.Context) (*SweepReport, error)
	RunPOOverdueSweep(ctx context.Context) (*SweepReport, error)
	RunTaskSLASweep(ctx context.Context) (*SweepReport, error)
}

type monitorService struct {
	pool     *pgxpool.Pool
	po       PurchaseOrderService
	notifier notify.Notifier
	logger   *log.Logger
}

// NewMonitorService constructs a MonitorService. The PO service supplies the
// incoming-quantity annotation on low-stock alerts; the notifier receives
// newly created and escalated critical alerts.
func NewMonitorService(pool *pgxpool.Pool, po PurchaseOrderService,
	notifier notify.Notifier, logger *log.Logger) MonitorService {
	if logger == nil {
		logger = log.Default()
	}
	return &monitorService{pool: pool, po: po, notifier: notifier, logger: logger}
}

// ── Stock sweep ───────────────────────────────────────────────────────────────

type stockCondition int

const (
	stockHealthy stockCondition = iota
	stockLow
	stockOut
)

// stockObservation is one monitored stock record: a quantity against its
// configured minimum.
type stockObservation struct {
	Quantity int64
	Minimum  int64
}

// classifyStock folds a component's monitored records into one condition.
// Any empty record puts the component out of stock; otherwise any record at
// or under its minimum makes it low, critical once at or under half the
// minimum.
func classifyStock(records []stockObservation) (stockCondition, AlertSeverity) {
	condition := stockHealthy
	severity := SeverityWarning
	for _, r := range records {
		if r.Quantity <= 0 {
			return stockOut, SeverityCritical
		}
		if r.Quantity <= r.Minimum {
			condition = stockLow
			if r.Quantity*2 <= r.Minimum {
				severity = SeverityCritical
			}
		}
	}
	if condition == stockHealthy {
		return stockHealthy, SeverityInfo
	}
	return condition, severity
}

func (s *monitorService) RunStockSweep(ctx context.Context) (*SweepReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.part_number, sr.quantity, sr.minimum_stock
		FROM stock_records sr
		JOIN components c ON c.id = sr.component_id
		WHERE sr.minimum_stock IS NOT NULL
		ORDER BY c.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list monitored stock records: %w", err)
	}

	type candidate struct {
		componentID int
		partNumber  string
		records     []stockObservation
	}
	var candidates []candidate
	for rows.Next() {
		var componentID int
		var partNumber string
		var obs stockObservation
		if err := rows.Scan(&componentID, &partNumber, &obs.Quantity, &obs.Minimum); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan monitored stock record: %w", err)
		}
		if len(candidates) == 0 || candidates[len(candidates)-1].componentID != componentID {
			candidates = append(candidates, candidate{componentID: componentID, partNumber: partNumber})
		}
		last := &candidates[len(candidates)-1]
		last.records = append(last.records, obs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitored stock records: %w", err)
	}

	report := &SweepReport{}
	for _, c := range candidates {
		report.Checked++
		if err := s.sweepComponent(ctx, c.componentID, c.partNumber, c.records, report); err != nil {
			s.logger.Printf("stock sweep: component %s: %v", c.partNumber, err)
			report.Skipped++
		}
	}
	return report, nil
}

func (s *monitorService) sweepComponent(ctx context.Context, componentID int,
	partNumber string, records []stockObservation, report *SweepReport) error {

	condition, severity := classifyStock(records)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var event *notify.Event

	switch condition {
	case stockHealthy:
		n, err := resolveStockAlertsIfHealthyTx(ctx, tx, componentID, "stock back above minimum")
		if err != nil {
			return err
		}
		report.Resolved += n

	case stockOut:
		// Out-of-stock supersedes a live low-stock alert.
		n, err := resolveSystemAlertsTx(ctx, tx, []string{AlertTypeLowStock},
			TriggerComponent, componentID, "superseded by out-of-stock")
		if err != nil {
			return err
		}
		report.Resolved += n

		_, _, found, err := liveSystemAlertTx(ctx, tx, AlertTypeOutOfStock, TriggerComponent, componentID)
		if err != nil {
			return err
		}
		if found {
			report.Skipped++
			break
		}
		title := fmt.Sprintf("%s is out of stock", partNumber)
		message := s.stockAlertMessage(ctx, componentID, records)
		alertID, err := openSystemAlertTx(ctx, tx, AlertTypeOutOfStock, SeverityCritical,
			title, message, TriggerComponent, componentID)
		if err != nil {
			return err
		}
		report.Alerted++
		event = &notify.Event{AlertID: alertID, Type: AlertTypeOutOfStock,
			Severity: string(SeverityCritical), Title: title, Message: message}

	case stockLow:
		// A live out-of-stock alert means stock came back but is still low.
		n, err := resolveSystemAlertsTx(ctx, tx, []string{AlertTypeOutOfStock},
			TriggerComponent, componentID, "stock back above zero")
		if err != nil {
			return err
		}
		report.Resolved += n

		title := fmt.Sprintf("%s is low on stock", partNumber)
		message := s.stockAlertMessage(ctx, componentID, records)

		alertID, liveSeverity, found, err := liveSystemAlertTx(ctx, tx, AlertTypeLowStock, TriggerComponent, componentID)
		if err != nil {
			return err
		}
		switch {
		case found && liveSeverity != SeverityCritical && severity == SeverityCritical:
			if err := escalateAlertTx(ctx, tx, alertID, severity, message); err != nil {
				return err
			}
			report.Escalated++
			event = &notify.Event{AlertID: alertID, Type: AlertTypeLowStock,
				Severity: string(severity), Title: title, Message: message}
		case found:
			report.Skipped++
		default:
			alertID, err := openSystemAlertTx(ctx, tx, AlertTypeLowStock, severity,
				title, message, TriggerComponent, componentID)
			if err != nil {
				return err
			}
			report.Alerted++
			if severity == SeverityCritical {
				event = &notify.Event{AlertID: alertID, Type: AlertTypeLowStock,
					Severity: string(severity), Title: title, Message: message}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit sweep step: %w", err)
	}
	if event != nil {
		s.notifier.Notify(ctx, *event)
	}
	return nil
}

// stockAlertMessage summarizes the breach and annotates it with quantity
// already on order. The annotation is informational and never gates alerting,
// so a lookup failure degrades to omitting it.
func (s *monitorService) stockAlertMessage(ctx context.Context, componentID int,
	records []stockObservation) string {

	var onHand, minimum int64
	for _, r := range records {
		onHand += r.Quantity
		minimum += r.Minimum
	}
	message := fmt.Sprintf("on hand %d across monitored locations (minimum %d)", onHand, minimum)
	if incoming, err := s.po.IncomingQuantity(ctx, componentID); err == nil && incoming > 0 {
		message += fmt.Sprintf("; %d on order", incoming)
	}
	return message
}

// ── PO overdue sweep ──────────────────────────────────────────────────────────

// poOverdueSeverity is warning until the order is more than a week late.
func poOverdueSeverity(daysOverdue int) AlertSeverity {
	if daysOverdue > 7 {
		return SeverityCritical
	}
	return SeverityWarning
}

func (s *monitorService) RunPOOverdueSweep(ctx context.Context) (*SweepReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, po_number, CURRENT_DATE - expected_delivery
		FROM purchase_orders
		WHERE status NOT IN ('received', 'cancelled')
		  AND expected_delivery IS NOT NULL
		  AND expected_delivery < CURRENT_DATE
		ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list overdue purchase orders: %w", err)
	}

	type overduePO struct {
		id          int
		poNumber    string
		daysOverdue int
	}
	var overdue []overduePO
	for rows.Next() {
		var o overduePO
		if err := rows.Scan(&o.id, &o.poNumber, &o.daysOverdue); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan overdue PO: %w", err)
		}
		overdue = append(overdue, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overdue POs: %w", err)
	}

	report := &SweepReport{}
	for _, o := range overdue {
		report.Checked++
		if err := s.sweepOverduePO(ctx, o.id, o.poNumber, o.daysOverdue, report); err != nil {
			s.logger.Printf("PO overdue sweep: %s: %v", o.poNumber, err)
			report.Skipped++
		}
	}
	return report, nil
}

func (s *monitorService) sweepOverduePO(ctx context.Context, poID int,
	poNumber string, daysOverdue int, report *SweepReport) error {

	severity := poOverdueSeverity(daysOverdue)
	title := fmt.Sprintf("%s is overdue", poNumber)
	message := fmt.Sprintf("expected delivery passed %d day(s) ago", daysOverdue)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var event *notify.Event

	alertID, liveSeverity, found, err := liveSystemAlertTx(ctx, tx, AlertTypePOOverdue, TriggerPurchaseOrder, poID)
	if err != nil {
		return err
	}
	switch {
	case found && liveSeverity != SeverityCritical && severity == SeverityCritical:
		if err := escalateAlertTx(ctx, tx, alertID, severity, message); err != nil {
			return err
		}
		report.Escalated++
		event = &notify.Event{AlertID: alertID, Type: AlertTypePOOverdue,
			Severity: string(severity), Title: title, Message: message}
	case found:
		report.Skipped++
	default:
		alertID, err := openSystemAlertTx(ctx, tx, AlertTypePOOverdue, severity,
			title, message, TriggerPurchaseOrder, poID)
		if err != nil {
			return err
		}
		report.Alerted++
		if severity == SeverityCritical {
			event = &notify.Event{AlertID: alertID, Type: AlertTypePOOverdue,
				Severity: string(severity), Title: title, Message: message}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit sweep step: %w", err)
	}
	if event != nil {
		s.notifier.Notify(ctx, *event)
	}
	return nil
}

// ── Task SLA sweep ────────────────────────────────────────────────────────────

// slaEscalationLevel maps overdue time onto the escalation ladder.
func slaEscalationLevel(overdue time.Duration) int {
	switch {
	case overdue >= 48*time.Hour:
		return 2
	case overdue >= 24*time.Hour:
		return 1
	default:
		return 0
	}
}

func (s *monitorService) RunTaskSLASweep(ctx context.Context) (*SweepReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, due_at
		FROM tasks
		WHERE status IN ('open', 'in_progress')
		  AND sla_hours IS NOT NULL
		  AND due_at IS NOT NULL
		  AND due_at < NOW()
		ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list overdue SLA tasks: %w", err)
	}

	type overdueTask struct {
		id    int
		title string
		dueAt time.Time
	}
	var overdue []overdueTask
	for rows.Next() {
		var o overdueTask
		if err := rows.Scan(&o.id, &o.title, &o.dueAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan overdue task: %w", err)
		}
		overdue = append(overdue, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overdue tasks: %w", err)
	}

	report := &SweepReport{}
	now := time.Now()
	for _, o := range overdue {
		report.Checked++
		if err := s.sweepOverdueTask(ctx, o.id, o.title, now.Sub(o.dueAt), report); err != nil {
			s.logger.Printf("task SLA sweep: task %d: %v", o.id, err)
			report.Skipped++
		}
	}
	return report, nil
}

func (s *monitorService) sweepOverdueTask(ctx context.Context, taskID int,
	title string, overdue time.Duration, report *SweepReport) error {

	target := slaEscalationLevel(overdue)
	if target == 0 {
		report.Skipped++
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentLevel int
	var priority TaskPriority
	if err := tx.QueryRow(ctx,
		"SELECT escalation_level, priority FROM tasks WHERE id = $1 FOR UPDATE", taskID,
	).Scan(&currentLevel, &priority); err != nil {
		return fmt.Errorf("lock task %d: %w", taskID, err)
	}

	// Escalation only ever moves up, and never re-runs a level.
	if target <= currentLevel {
		report.Skipped++
		return tx.Commit(ctx)
	}

	for level := currentLevel; level < target; level++ {
		priority = RaisePriority(priority)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE tasks SET escalation_level = $1, priority = $2, updated_at = NOW() WHERE id = $3",
		target, priority, taskID); err != nil {
		return fmt.Errorf("escalate task %d: %w", taskID, err)
	}

	severity := SeverityWarning
	if target >= 2 {
		severity = SeverityCritical
	}
	alertTitle := fmt.Sprintf("task overdue: %s", title)
	message := fmt.Sprintf("%.0f hours past due, escalation level %d", overdue.Hours(), target)

	var event *notify.Event
	alertID, liveSeverity, found, err := liveSystemAlertTx(ctx, tx, AlertTypeTaskSLA, TriggerTask, taskID)
	if err != nil {
		return err
	}
	switch {
	case found && liveSeverity != severity:
		if err := escalateAlertTx(ctx, tx, alertID, severity, message); err != nil {
			return err
		}
		if severity == SeverityCritical {
			event = &notify.Event{AlertID: alertID, Type: AlertTypeTaskSLA,
				Severity: string(severity), Title: alertTitle, Message: message}
		}
	case !found:
		alertID, err := openSystemAlertTx(ctx, tx, AlertTypeTaskSLA, severity,
			alertTitle, message, TriggerTask, taskID)
		if err != nil {
			return err
		}
		report.Alerted++
		if severity == SeverityCritical {
			event = &notify.Event{AlertID: alertID, Type: AlertTypeTaskSLA,
				Severity: string(severity), Title: alertTitle, Message: message}
		}
	}
	report.Escalated++

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit sweep step: %w", err)
	}
	if event != nil {
		s.notifier.Notify(ctx, *event)
	}
	return nil
}
