package core

import (
	"context"
	"time"
)

// AlertSeverity ranks how urgent an alert is.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertStatus is the alert lifecycle state.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertDismissed    AlertStatus = "dismissed"
)

// System alert types raised by the monitor sweeps.
const (
	AlertTypeLowStock   = "low_stock"
	AlertTypeOutOfStock = "out_of_stock"
	AlertTypePOOverdue  = "po_overdue"
	AlertTypeTaskSLA    = "task_sla"
)

// TriggerKind names which entity column carries an alert's provenance.
type TriggerKind string

const (
	TriggerComponent     TriggerKind = "component"
	TriggerPurchaseOrder TriggerKind = "purchase_order"
	TriggerBuildOrder    TriggerKind = "build_order"
	TriggerTask          TriggerKind = "task"
)

// Alert is a derived operational fact. System alerts carry structured
// provenance (trigger kind plus one entity id) and are idempotently keyed
// so the same condition never holds two live alerts.
type Alert struct {
	ID              int           `json:"id"`
	Type            string        `json:"type"`
	Severity        AlertSeverity `json:"severity"`
	Status          AlertStatus   `json:"status"`
	Title           string        `json:"title"`
	Message         *string       `json:"message,omitempty"`
	TriggerKind     *TriggerKind  `json:"trigger_kind,omitempty"`
	ComponentID     *int          `json:"component_id,omitempty"`
	PurchaseOrderID *int          `json:"purchase_order_id,omitempty"`
	BuildOrderID    *int          `json:"build_order_id,omitempty"`
	TaskID          *int          `json:"task_id,omitempty"`
	IsSystem        bool          `json:"is_system"`
	CreatedAt       time.Time     `json:"created_at"`
	AcknowledgedAt  *time.Time    `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
}

// ManualAlertInput holds the fields for a human-created alert.
type ManualAlertInput struct {
	Type     string
	Severity AlertSeverity
	Title    string
	Message  string
}

// AlertService manages the alert lifecycle. System alerts are raised by the
// monitor sweeps and by in-transaction reconciliation; this service covers
// reads and the human-facing lifecycle actions.
type AlertService interface {
	// CreateManual records a human-created alert. It is never subject to the
	// system idempotency key.
	CreateManual(ctx context.Context, input ManualAlertInput) (*Alert, error)

	Get(ctx context.Context, alertID int) (*Alert, error)

	// List returns alerts, optionally filtered by status (nil = all),
	// newest first.
	List(ctx context.Context, status *AlertStatus) ([]Alert, error)

	Acknowledge(ctx context.Context, alertID int) (*Alert, error)
	Resolve(ctx context.Context, alertID int, note string) (*Alert, error)
	Dismiss(ctx context.Context, alertID int) (*Alert, error)
}
