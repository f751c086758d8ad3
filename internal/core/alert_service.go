package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type alertService struct {
	pool *pgxpool.Pool
}

// NewAlertService constructs an AlertService backed by PostgreSQL.
func NewAlertService(pool *pgxpool.Pool) AlertService {
	return &alertService{pool: pool}
}

func (s *alertService) CreateManual(ctx context.Context, input ManualAlertInput) (*Alert, error) {
	if input.Type == "" || input.Title == "" {
		return nil, fmt.Errorf("alert type and title are required")
	}
	severity := input.Severity
	if severity == "" {
		severity = SeverityInfo
	}
	var message *string
	if input.Message != "" {
		message = &input.Message
	}

	var alertID int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO alerts (alert_type, severity, title, message, is_system)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id`,
		input.Type, severity, input.Title, message,
	).Scan(&alertID)
	if err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	return s.Get(ctx, alertID)
}

const alertColumns = `id, alert_type, severity, status, title, message,
	       trigger_kind, component_id, purchase_order_id, build_order_id, task_id,
	       is_system, created_at, acknowledged_at, resolved_at`

func scanAlert(row pgx.Row) (*Alert, error) {
	a := &Alert{}
	err := row.Scan(
		&a.ID, &a.Type, &a.Severity, &a.Status, &a.Title, &a.Message,
		&a.TriggerKind, &a.ComponentID, &a.PurchaseOrderID, &a.BuildOrderID, &a.TaskID,
		&a.IsSystem, &a.CreatedAt, &a.AcknowledgedAt, &a.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *alertService) Get(ctx context.Context, alertID int) (*Alert, error) {
	a, err := scanAlert(s.pool.QueryRow(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE id = $1", alertID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "alert", Key: fmt.Sprint(alertID)}
		}
		return nil, fmt.Errorf("get alert %d: %w", alertID, err)
	}
	return a, nil
}

func (s *alertService) List(ctx context.Context, status *AlertStatus) ([]Alert, error) {
	query := "SELECT " + alertColumns + " FROM alerts"
	args := []any{}
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(
			&a.ID, &a.Type, &a.Severity, &a.Status, &a.Title, &a.Message,
			&a.TriggerKind, &a.ComponentID, &a.PurchaseOrderID, &a.BuildOrderID, &a.TaskID,
			&a.IsSystem, &a.CreatedAt, &a.AcknowledgedAt, &a.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *alertService) Acknowledge(ctx context.Context, alertID int) (*Alert, error) {
	return s.setStatus(ctx, alertID, AlertAcknowledged, "acknowledged_at", []AlertStatus{AlertActive})
}

func (s *alertService) Resolve(ctx context.Context, alertID int, note string) (*Alert, error) {
	if note != "" {
		if _, err := s.pool.Exec(ctx, `
			UPDATE alerts SET message = COALESCE(message || E'\n', '') || $1 WHERE id = $2`,
			note, alertID); err != nil {
			return nil, fmt.Errorf("append resolution note: %w", err)
		}
	}
	return s.setStatus(ctx, alertID, AlertResolved, "resolved_at", []AlertStatus{AlertActive, AlertAcknowledged})
}

func (s *alertService) Dismiss(ctx context.Context, alertID int) (*Alert, error) {
	return s.setStatus(ctx, alertID, AlertDismissed, "resolved_at", []AlertStatus{AlertActive, AlertAcknowledged})
}

func (s *alertService) setStatus(ctx context.Context, alertID int, to AlertStatus,
	stampColumn string, from []AlertStatus) (*Alert, error) {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status AlertStatus
	if err := tx.QueryRow(ctx,
		"SELECT status FROM alerts WHERE id = $1 FOR UPDATE", alertID,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "alert", Key: fmt.Sprint(alertID)}
		}
		return nil, fmt.Errorf("lock alert %d: %w", alertID, err)
	}

	legal := false
	allowed := make([]string, 0, len(from))
	for _, f := range from {
		allowed = append(allowed, string(f))
		if f == status {
			legal = true
		}
	}
	if !legal {
		return nil, &InvalidTransitionError{
			Entity: "alert", Key: fmt.Sprint(alertID),
			From: string(status), To: string(to), Allowed: allowed,
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE alerts SET status = $1, "+stampColumn+" = NOW() WHERE id = $2",
		to, alertID); err != nil {
		return nil, fmt.Errorf("update alert %d: %w", alertID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit alert update: %w", err)
	}
	return s.Get(ctx, alertID)
}

// ── System alert helpers ──────────────────────────────────────────────────────
//
// Package-level, Tx-scoped so reconciliation runs inside the transaction that
// changed the underlying condition (shipment receipt, sweep step).

// triggerColumns maps a trigger kind to the alerts column carrying its id.
var triggerColumns = map[TriggerKind]string{
	TriggerComponent:     "component_id",
	TriggerPurchaseOrder: "purchase_order_id",
	TriggerBuildOrder:    "build_order_id",
	TriggerTask:          "task_id",
}

// liveSystemAlertTx looks up the live (active or acknowledged) system alert
// for (type, entity), locking it if found.
func liveSystemAlertTx(ctx context.Context, tx pgx.Tx, alertType string,
	kind TriggerKind, entityID int) (alertID int, severity AlertSeverity, found bool, err error) {

	column, ok := triggerColumns[kind]
	if !ok {
		return 0, "", false, fmt.Errorf("unknown trigger kind %q", kind)
	}
	err = tx.QueryRow(ctx, `
		SELECT id, severity FROM alerts
		WHERE alert_type = $1 AND `+column+` = $2
		  AND status IN ('active', 'acknowledged') AND is_system
		FOR UPDATE`,
		alertType, entityID,
	).Scan(&alertID, &severity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, fmt.Errorf("look up live %s alert for %s %d: %w", alertType, kind, entityID, err)
	}
	return alertID, severity, true, nil
}

// openSystemAlertTx inserts a live system alert for (type, entity). The
// partial unique index backstops concurrent sweeps; a collision surfaces as
// DuplicateKeyError for the caller to treat as already-alerted.
func openSystemAlertTx(ctx context.Context, tx pgx.Tx, alertType string,
	severity AlertSeverity, title, message string, kind TriggerKind, entityID int) (int, error) {

	column, ok := triggerColumns[kind]
	if !ok {
		return 0, fmt.Errorf("unknown trigger kind %q", kind)
	}
	var msg *string
	if message != "" {
		msg = &message
	}
	var alertID int
	err := tx.QueryRow(ctx, `
		INSERT INTO alerts (alert_type, severity, title, message, trigger_kind, `+column+`, is_system)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id`,
		alertType, severity, title, msg, kind, entityID,
	).Scan(&alertID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, &DuplicateKeyError{Entity: "alert",
				Key: fmt.Sprintf("%s/%s/%d", alertType, kind, entityID)}
		}
		return 0, fmt.Errorf("open %s alert for %s %d: %w", alertType, kind, entityID, err)
	}
	return alertID, nil
}

// escalateAlertTx raises a live alert's severity and refreshes its message.
func escalateAlertTx(ctx context.Context, tx pgx.Tx, alertID int,
	severity AlertSeverity, message string) error {

	if _, err := tx.Exec(ctx,
		"UPDATE alerts SET severity = $1, message = $2 WHERE id = $3",
		severity, message, alertID); err != nil {
		return fmt.Errorf("escalate alert %d: %w", alertID, err)
	}
	return nil
}

// resolveSystemAlertsTx resolves every live system alert of the given types
// for one trigger entity, appending the note. Returns the number resolved.
func resolveSystemAlertsTx(ctx context.Context, tx pgx.Tx, alertTypes []string,
	kind TriggerKind, entityID int, note string) (int, error) {

	column, ok := triggerColumns[kind]
	if !ok {
		return 0, fmt.Errorf("unknown trigger kind %q", kind)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE alerts
		SET status = 'resolved', resolved_at = NOW(),
		    message = COALESCE(message || E'\n', '') || $1
		WHERE alert_type = ANY($2) AND `+column+` = $3
		  AND status IN ('active', 'acknowledged') AND is_system`,
		note, alertTypes, entityID,
	)
	if err != nil {
		return 0, fmt.Errorf("resolve %v alerts for %s %d: %w", alertTypes, kind, entityID, err)
	}
	return int(tag.RowsAffected()), nil
}

// resolveStockAlertsIfHealthyTx resolves a component's live stock alerts when
// its ledger no longer shows a low or out-of-stock record. Used by the post-
// receipt reconciliation pass and by the stock sweep.
func resolveStockAlertsIfHealthyTx(ctx context.Context, tx pgx.Tx, componentID int, note string) (int, error) {
	var total int64
	var strained bool
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0),
		       COALESCE(BOOL_OR(minimum_stock IS NOT NULL AND quantity <= minimum_stock), FALSE)
		FROM stock_records
		WHERE component_id = $1`,
		componentID,
	).Scan(&total, &strained)
	if err != nil {
		return 0, fmt.Errorf("check stock health for component %d: %w", componentID, err)
	}
	if total <= 0 || strained {
		return 0, nil
	}
	return resolveSystemAlertsTx(ctx, tx,
		[]string{AlertTypeLowStock, AlertTypeOutOfStock}, TriggerComponent, componentID, note)
}

// resolvePOAlertsTx resolves a purchase order's live overdue alert.
func resolvePOAlertsTx(ctx context.Context, tx pgx.Tx, poID int, note string) (int, error) {
	return resolveSystemAlertsTx(ctx, tx, []string{AlertTypePOOverdue}, TriggerPurchaseOrder, poID, note)
}
