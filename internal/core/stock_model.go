package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// StockStatus is the derived health of a stock record.
type StockStatus string

const (
	OutOfStock StockStatus = "out_of_stock"
	LowStock   StockStatus = "low_stock"
	Overstock  StockStatus = "overstock"
	InStock    StockStatus = "in_stock"
)

// DeriveStockStatus computes the status of a record from its quantity and
// optional thresholds. Out-of-stock wins over everything; low beats overstock.
func DeriveStockStatus(quantity int64, minimum, maximum *int64) StockStatus {
	switch {
	case quantity <= 0:
		return OutOfStock
	case minimum != nil && quantity <= *minimum:
		return LowStock
	case maximum != nil && quantity > *maximum:
		return Overstock
	default:
		return InStock
	}
}

// TransactionType classifies a stock ledger entry.
type TransactionType string

const (
	TxReceive   TransactionType = "receive"
	TxConsume   TransactionType = "consume"
	TxAdjust    TransactionType = "adjust"
	TxTransfer  TransactionType = "transfer"
	TxScrap     TransactionType = "scrap"
	TxReturn    TransactionType = "return"
	TxReserve   TransactionType = "reserve"
	TxUnreserve TransactionType = "unreserve"
	TxCount     TransactionType = "count"
)

// StockRecord is the per (component, location) unit of truth for on-hand stock.
// Available is always Quantity − ReservedQty; Status is derived on every read
// and mutation from Quantity and the optional thresholds.
type StockRecord struct {
	ID           int             `json:"id"`
	ComponentID  int             `json:"component_id"`
	LocationID   int             `json:"location_id"`
	Quantity     int64           `json:"quantity"`
	ReservedQty  int64           `json:"reserved_qty"`
	Available    int64           `json:"available"`
	MinimumStock *int64          `json:"minimum_stock,omitempty"`
	MaximumStock *int64          `json:"maximum_stock,omitempty"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit"`
	Status       StockStatus     `json:"status"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// StockTransaction is one append-only audit entry. PreviousQty and NewQty
// bracket the mutation exactly; replaying entries in id order reproduces the
// record's current quantity.
type StockTransaction struct {
	ID            int             `json:"id"`
	Type          TransactionType `json:"type"`
	ComponentID   int             `json:"component_id"`
	LocationID    int             `json:"location_id"`
	Quantity      int64           `json:"quantity"` // signed delta (reserve/unreserve: signed reservation delta)
	PreviousQty   int64           `json:"previous_qty"`
	NewQty        int64           `json:"new_qty"`
	ReferenceType *string         `json:"reference_type,omitempty"`
	ReferenceID   *string         `json:"reference_id,omitempty"`
	Actor         string          `json:"actor"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AdjustResult reports the outcome of a quantity mutation.
type AdjustResult struct {
	PreviousQty int64       `json:"previous_qty"`
	NewQty      int64       `json:"new_qty"`
	Status      StockStatus `json:"status"`
}

// CountResult reports the outcome of a physical count. Discrepancy is
// counted − previous, signed.
type CountResult struct {
	PreviousQty int64       `json:"previous_qty"`
	CountedQty  int64       `json:"counted_qty"`
	Discrepancy int64       `json:"discrepancy"`
	Status      StockStatus `json:"status"`
}

// StockLevel is a read view of a stock record joined with component and
// location identity.
type StockLevel struct {
	ComponentID  int             `json:"component_id"`
	PartNumber   string          `json:"part_number"`
	Name         string          `json:"name"`
	LocationID   int             `json:"location_id"`
	LocationCode string          `json:"location_code"`
	Quantity     int64           `json:"quantity"`
	ReservedQty  int64           `json:"reserved_qty"`
	Available    int64           `json:"available"`
	MinimumStock *int64          `json:"minimum_stock,omitempty"`
	MaximumStock *int64          `json:"maximum_stock,omitempty"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit"`
	Status       StockStatus     `json:"status"`
}

// StockThresholds sets the low/high watermarks on a record. Nil clears a bound.
type StockThresholds struct {
	MinimumStock *int64
	MaximumStock *int64
}

// StockService is the stock ledger: every mutation updates the record and
// appends exactly one StockTransaction in the same database transaction, so a
// partial write (record updated, log entry missing, or vice versa) cannot
// occur. Tx-suffixed variants run inside a caller-supplied pgx.Tx so composite
// operations (receiving a shipment, reserving build materials) stay atomic.
type StockService interface {
	// Adjust applies a signed delta to the on-hand quantity. txType must be one
	// of adjust, consume, scrap, return. Fails with InvalidOperationError if the
	// result would be negative.
	Adjust(ctx context.Context, componentID, locationID int, delta int64,
		txType TransactionType, reason, actor string) (*AdjustResult, error)

	// Reserve places a soft hold on stock. Fails with InsufficientStockError if
	// qty exceeds availability.
	Reserve(ctx context.Context, componentID, locationID int, qty int64,
		reference *TxReference, actor string) (*AdjustResult, error)

	// Release removes a soft hold. The released amount is clamped to the current
	// reservation, never driving it negative.
	Release(ctx context.Context, componentID, locationID int, qty int64,
		reference *TxReference, actor string) (*AdjustResult, error)

	// RecordCount treats a physical count as authoritative, overwriting the
	// on-hand quantity, and reports the signed discrepancy.
	RecordCount(ctx context.Context, componentID, locationID int, countedQty int64,
		counter string) (*CountResult, error)

	// Transfer moves qty between two locations of the same component in one
	// atomic operation, appending paired transfer entries.
	Transfer(ctx context.Context, componentID, fromLocationID, toLocationID int,
		qty int64, actor string) error

	// SetThresholds updates the minimum/maximum watermarks on a record.
	SetThresholds(ctx context.Context, componentID, locationID int, t StockThresholds) (*StockRecord, error)

	// Tx-scoped variants used by the PO and build order lifecycles.

	// ReceiveTx adds qty on hand (creating the record on first receipt),
	// refreshes cost per unit, and appends a receive entry, all within tx.
	ReceiveTx(ctx context.Context, tx pgx.Tx, componentID, locationID int, qty int64,
		costPerUnit decimal.Decimal, reference *TxReference, actor string) (*AdjustResult, error)

	// ReserveTx is Reserve within a caller-supplied transaction.
	ReserveTx(ctx context.Context, tx pgx.Tx, componentID, locationID int, qty int64,
		reference *TxReference, actor string) (*AdjustResult, error)

	// ReleaseTx is Release within a caller-supplied transaction.
	ReleaseTx(ctx context.Context, tx pgx.Tx, componentID, locationID int, qty int64,
		reference *TxReference, actor string) (*AdjustResult, error)

	// ConsumeTx deducts on-hand and reserved stock together (material leaving
	// the ledger for a completed build) within tx.
	ConsumeTx(ctx context.Context, tx pgx.Tx, componentID, locationID int, qty int64,
		reference *TxReference, actor string) (*AdjustResult, error)

	// Queries.

	// GetRecord returns the stock record for (component, location).
	GetRecord(ctx context.Context, componentID, locationID int) (*StockRecord, error)

	// GetStockLevels returns all stock records joined with identity, ordered by
	// part number then location code.
	GetStockLevels(ctx context.Context) ([]StockLevel, error)

	// TotalOnHand sums quantity and availability for a component across all
	// locations.
	TotalOnHand(ctx context.Context, componentID int) (onHand, available int64, err error)

	// LowStockReport returns records at or below their minimum.
	LowStockReport(ctx context.Context) ([]StockLevel, error)

	// History returns the transaction log for (component, location) in append
	// order.
	History(ctx context.Context, componentID, locationID int) ([]StockTransaction, error)
}

// TxReference links a ledger entry to the operation that caused it, as a typed
// pair rather than free-form text.
type TxReference struct {
	Type string // "purchase_order", "build_order", "manual", ...
	ID   string // e.g. the PO number or build number
}
