package app

import (
	"context"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/ai"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"
)

// ApplicationService is the single interface all outer adapters (Web, CLI,
// assistant tools) call. It decouples presentation from the core: callers
// pass natural keys (part number, location code, PO number, build number)
// and the facade resolves them to internal ids. Implementations must contain
// no display logic of any kind.
type ApplicationService interface {
	// Catalog.

	CreateComponent(ctx context.Context, req CreateComponentRequest) (*core.Component, error)
	UpdateComponent(ctx context.Context, partNumber string, update core.ComponentUpdate) (*core.Component, error)

	// DeleteComponent removes a catalog entry. Refused while stock records or
	// BOM entries reference it.
	DeleteComponent(ctx context.Context, partNumber string) error

	GetComponent(ctx context.Context, partNumber string) (*core.Component, error)
	SearchComponents(ctx context.Context, query string) ([]core.Component, error)
	ComponentCategoryCounts(ctx context.Context) ([]core.CategoryCount, error)

	CreateLocation(ctx context.Context, req CreateLocationRequest) (*core.Location, error)
	DeleteLocation(ctx context.Context, code string) error
	ListLocations(ctx context.Context) ([]core.Location, error)

	CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*core.Supplier, error)
	DeactivateSupplier(ctx context.Context, code string) error
	ListSuppliers(ctx context.Context) ([]core.Supplier, error)

	// Stock ledger.

	AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.AdjustResult, error)
	ReserveStock(ctx context.Context, req HoldStockRequest) (*core.AdjustResult, error)
	ReleaseStock(ctx context.Context, req HoldStockRequest) (*core.AdjustResult, error)
	RecordStockCount(ctx context.Context, req StockCountRequest) (*core.CountResult, error)
	TransferStock(ctx context.Context, req TransferStockRequest) error
	SetStockThresholds(ctx context.Context, partNumber, locationCode string,
		t core.StockThresholds) (*core.StockRecord, error)

	GetStockLevels(ctx context.Context) ([]core.StockLevel, error)
	LowStockReport(ctx context.Context) ([]core.StockLevel, error)
	StockHistory(ctx context.Context, partNumber, locationCode string) ([]core.StockTransaction, error)

	// GetComponentStockSummary rolls a component's stock up across locations
	// and annotates it with quantity still on order.
	GetComponentStockSummary(ctx context.Context, partNumber string) (*ComponentStockSummary, error)

	// Purchase orders.

	CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*core.PurchaseOrder, error)
	AddPurchaseOrderLine(ctx context.Context, poNumber string, line POLineRequest) (*core.PurchaseOrder, error)
	UpdatePurchaseOrderLine(ctx context.Context, poNumber string, lineNumber int, update core.POLineUpdate) (*core.PurchaseOrder, error)
	UpdatePurchaseOrder(ctx context.Context, poNumber string, update core.POUpdate) (*core.PurchaseOrder, error)
	UpdatePurchaseOrderStatus(ctx context.Context, poNumber string, to string) (*core.PurchaseOrder, error)

	// ReceiveShipment is the atomic receiving operation of the PO lifecycle.
	ReceiveShipment(ctx context.Context, req ReceiveShipmentRequest) (*core.PurchaseOrder, error)

	GetPurchaseOrder(ctx context.Context, poNumber string) (*core.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, status string) ([]core.PurchaseOrder, error)

	// Build orders.

	CreateBuildOrder(ctx context.Context, req CreateBuildOrderRequest) (*core.BuildOrder, error)
	UpdateBuildOrderStatus(ctx context.Context, buildNumber, to, actor string) (*core.BuildOrder, error)
	ReserveBuildMaterials(ctx context.Context, buildNumber, actor string) (*core.BuildOrder, error)
	GetBuildOrder(ctx context.Context, buildNumber string) (*core.BuildOrder, error)
	GetBuildHolds(ctx context.Context, buildNumber string) ([]core.MaterialHold, error)
	ListBuildOrders(ctx context.Context, status string) ([]core.BuildOrder, error)

	// Bill of materials.

	UpsertBOMEntry(ctx context.Context, input core.BOMEntryInput) (*core.BOMEntry, error)
	RemoveBOMEntry(ctx context.Context, productName, partNumber string) error
	ListBOM(ctx context.Context, productName string) ([]core.BOMEntry, error)
	ListBOMProducts(ctx context.Context) ([]string, error)

	// CheckFeasibility reports whether current stock covers a build of the
	// product. Read-only.
	CheckFeasibility(ctx context.Context, productName string, quantity int64) (*core.FeasibilityResult, error)

	// Alerts and tasks.

	ListAlerts(ctx context.Context, status string) ([]core.Alert, error)
	AcknowledgeAlert(ctx context.Context, alertID int) (*core.Alert, error)
	ResolveAlert(ctx context.Context, alertID int, note string) (*core.Alert, error)
	DismissAlert(ctx context.Context, alertID int) (*core.Alert, error)
	CreateManualAlert(ctx context.Context, input core.ManualAlertInput) (*core.Alert, error)

	CreateTask(ctx context.Context, input core.TaskInput) (*core.Task, error)
	UpdateTask(ctx context.Context, taskID int, update core.TaskUpdate) (*core.Task, error)
	ListTasks(ctx context.Context, status string) ([]core.Task, error)

	// Monitor.

	// RunSweep executes one named sweep ("stock", "po", "sla") or "all".
	RunSweep(ctx context.Context, name string) (*SweepRunResult, error)

	// Assistant.

	// AskAssistant answers an operational question from live stock, order and
	// alert data. Read-only.
	AskAssistant(ctx context.Context, question string) (*ai.Briefing, error)
}
