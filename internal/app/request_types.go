package app

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateComponentRequest carries the fields for a new catalog entry.
type CreateComponentRequest struct {
	PartNumber   string
	Name         string
	Category     string
	Description  string
	Manufacturer string
	UnitCost     decimal.Decimal
}

// CreateLocationRequest carries the fields for a new storage location.
// ParentCode, when set, must name an existing location.
type CreateLocationRequest struct {
	Code       string
	Name       string
	ParentCode string
}

// CreateSupplierRequest carries the fields for a new supplier record.
type CreateSupplierRequest struct {
	Code             string
	Name             string
	ContactName      string
	Email            string
	Phone            string
	Address          string
	PaymentTermsDays int
	LeadTimeDays     int
}

// AdjustStockRequest applies a signed quantity delta to one stock record.
// TxType must be adjust, consume, scrap, or return.
type AdjustStockRequest struct {
	PartNumber   string
	LocationCode string
	Delta        int64
	TxType       string
	Reason       string
	Actor        string
}

// HoldStockRequest reserves or releases stock for a manual hold.
type HoldStockRequest struct {
	PartNumber   string
	LocationCode string
	Qty          int64
	Actor        string
}

// StockCountRequest records a physical count as the authoritative quantity.
type StockCountRequest struct {
	PartNumber   string
	LocationCode string
	CountedQty   int64
	Counter      string
}

// TransferStockRequest moves stock between two locations of one component.
type TransferStockRequest struct {
	PartNumber   string
	FromLocation string
	ToLocation   string
	Qty          int64
	Actor        string
}

// POLineRequest is one line of a purchase order being created or extended.
type POLineRequest struct {
	PartNumber      string
	QuantityOrdered int64
	UnitPrice       decimal.Decimal
}

// CreatePurchaseOrderRequest carries the fields for a new draft PO.
type CreatePurchaseOrderRequest struct {
	SupplierCode     string
	ExpectedDelivery *time.Time
	Lines            []POLineRequest
	Notes            string
}

// ReceiptLine is one line of an inbound shipment.
type ReceiptLine struct {
	LineID       int
	Qty          int64
	LocationCode string
}

// ReceiveShipmentRequest records an inbound shipment against a PO.
type ReceiveShipmentRequest struct {
	PONumber string
	Receipts []ReceiptLine
	Actor    string
}

// CreateBuildOrderRequest carries the fields for a new planned build.
type CreateBuildOrderRequest struct {
	ProductName  string
	Quantity     int64
	PlannedStart *time.Time
	BOMVersion   string
	Notes        string
}
