package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// POStatus is the lifecycle state of a purchase order.
type POStatus string

const (
	PODraft           POStatus = "draft"
	POSubmitted       POStatus = "submitted"
	POConfirmed       POStatus = "confirmed"
	POShipped         POStatus = "shipped"
	POPartialReceived POStatus = "partial_received"
	POReceived        POStatus = "received"
	POCancelled       POStatus = "cancelled"
)

// poTransitions is the complete edge table. The lifecycle is forward-only
// except to cancelled, which is reachable from any non-terminal state.
var poTransitions = map[POStatus][]POStatus{
	PODraft:           {POSubmitted, POCancelled},
	POSubmitted:       {POConfirmed, POCancelled},
	POConfirmed:       {POShipped, POCancelled},
	POShipped:         {POPartialReceived, POReceived},
	POPartialReceived: {POReceived},
	POReceived:        {},
	POCancelled:       {},
}

// AllowedPOTransitions returns the targets reachable from a status.
func AllowedPOTransitions(from POStatus) []POStatus {
	return poTransitions[from]
}

// CanTransitionPO reports whether from → to is a legal edge.
func CanTransitionPO(from, to POStatus) bool {
	for _, t := range poTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// POLineStatus is the receipt state of a single purchase order line.
type POLineStatus string

const (
	POLinePending     POLineStatus = "pending"
	POLinePartial     POLineStatus = "partial"
	POLineReceived    POLineStatus = "received"
	POLineCancelled   POLineStatus = "cancelled"
	POLineBackordered POLineStatus = "backordered"
)

// PurchaseOrder is a purchase order header with its lines.
type PurchaseOrder struct {
	ID               int                 `json:"id"`
	PONumber         string              `json:"po_number"`
	SupplierID       int                 `json:"supplier_id"`
	SupplierCode     string              `json:"supplier_code"`
	SupplierName     string              `json:"supplier_name"`
	Status           POStatus            `json:"status"`
	OrderDate        *time.Time          `json:"order_date,omitempty"`
	ExpectedDelivery *time.Time          `json:"expected_delivery,omitempty"`
	ActualDelivery   *time.Time          `json:"actual_delivery,omitempty"`
	Shipping         decimal.Decimal     `json:"shipping"`
	Tax              decimal.Decimal     `json:"tax"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	Total            decimal.Decimal     `json:"total"`
	Notes            *string             `json:"notes,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	Lines            []PurchaseOrderLine `json:"lines"`
}

// PurchaseOrderLine is a single line on a purchase order.
type PurchaseOrderLine struct {
	ID               int             `json:"id"`
	POID             int             `json:"po_id"`
	LineNumber       int             `json:"line_number"`
	ComponentID      int             `json:"component_id"`
	PartNumber       string          `json:"part_number"`
	ComponentName    string          `json:"component_name"`
	QuantityOrdered  int64           `json:"quantity_ordered"`
	QuantityReceived int64           `json:"quantity_received"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	LineTotal        decimal.Decimal `json:"line_total"`
	Status           POLineStatus    `json:"status"`
}

// POLineInput holds the fields required to add a purchase order line.
type POLineInput struct {
	PartNumber      string
	QuantityOrdered int64
	UnitPrice       decimal.Decimal
}

// POUpdate is a partial header update: nil fields are left untouched.
type POUpdate struct {
	ExpectedDelivery *time.Time
	Shipping         *decimal.Decimal
	Tax              *decimal.Decimal
	Notes            *string
}

// POLineUpdate is a partial line update: nil fields are left untouched.
type POLineUpdate struct {
	QuantityOrdered *int64
	UnitPrice       *decimal.Decimal
}

// LineReceipt is one line of an inbound shipment: qty units against a PO line,
// landing at a location.
type LineReceipt struct {
	LineID     int
	Qty        int64
	LocationID int
}

// PurchaseOrderService provides the purchase order lifecycle.
type PurchaseOrderService interface {
	// Create creates a draft PO with a generated PO number and computed totals.
	Create(ctx context.Context, supplierID int, expectedDelivery *time.Time,
		lines []POLineInput, notes string) (*PurchaseOrder, error)

	// AddLine appends a line. Lines may only be added while the PO is draft.
	AddLine(ctx context.Context, poID int, input POLineInput) (*PurchaseOrder, error)

	// UpdateLine applies a partial update to a line, identified by its line
	// number, and recomputes totals. Lines may only be edited while the PO
	// is draft.
	UpdateLine(ctx context.Context, poID, lineNumber int, update POLineUpdate) (*PurchaseOrder, error)

	// Update applies a partial header update and recomputes totals.
	Update(ctx context.Context, poID int, update POUpdate) (*PurchaseOrder, error)

	// UpdateStatus moves the PO along the lifecycle. A disallowed edge returns
	// InvalidTransitionError naming the allowed targets. Entering submitted
	// stamps the order date; entering received stamps the actual delivery.
	UpdateStatus(ctx context.Context, poID int, to POStatus) (*PurchaseOrder, error)

	// ReceiveShipment processes an inbound shipment against the PO:
	// per-line over-receipt validation, line and stock updates with audit
	// entries, alert reconciliation, and PO status recompute.
	// All-or-nothing: any line failure leaves the PO and every stock record
	// untouched.
	ReceiveShipment(ctx context.Context, poID int, receipts []LineReceipt, actor string) (*PurchaseOrder, error)

	// Get returns a PO with lines by internal ID.
	Get(ctx context.Context, poID int) (*PurchaseOrder, error)

	// GetByNumber returns a PO with lines by its PO number.
	GetByNumber(ctx context.Context, poNumber string) (*PurchaseOrder, error)

	// List returns POs, optionally filtered by status (nil = all), newest first.
	List(ctx context.Context, status *POStatus) ([]PurchaseOrder, error)

	// IncomingQuantity sums quantity still on order (ordered − received) across
	// open POs for a component. Informational: used to annotate low-stock
	// alerts, never to gate them.
	IncomingQuantity(ctx context.Context, componentID int) (int64, error)
}
