package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/ai"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"
)

// AppService implements ApplicationService over the core services.
type AppService struct {
	components core.ComponentService
	locations  core.LocationService
	suppliers  core.SupplierService
	stock      core.StockService
	orders     core.PurchaseOrderService
	builds     core.BuildOrderService
	bom        core.BOMService
	alerts     core.AlertService
	tasks      core.TaskService
	monitor    core.MonitorService
	agent      ai.AgentService
}

// NewAppService wires the facade. agent may be nil; the assistant endpoint
// then reports itself unconfigured.
func NewAppService(
	components core.ComponentService,
	locations core.LocationService,
	suppliers core.SupplierService,
	stock core.StockService,
	orders core.PurchaseOrderService,
	builds core.BuildOrderService,
	bom core.BOMService,
	alerts core.AlertService,
	tasks core.TaskService,
	monitor core.MonitorService,
	agent ai.AgentService,
) *AppService {
	return &AppService{
		components: components,
		locations:  locations,
		suppliers:  suppliers,
		stock:      stock,
		orders:     orders,
		builds:     builds,
		bom:        bom,
		alerts:     alerts,
		tasks:      tasks,
		monitor:    monitor,
		agent:      agent,
	}
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *AppService) CreateComponent(ctx context.Context, req CreateComponentRequest) (*core.Component, error) {
	return s.components.CreateComponent(ctx, core.ComponentInput{
		PartNumber:   req.PartNumber,
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		Manufacturer: req.Manufacturer,
		UnitCost:     req.UnitCost,
	})
}

func (s *AppService) UpdateComponent(ctx context.Context, partNumber string, update core.ComponentUpdate) (*core.Component, error) {
	c, err := s.components.GetComponentByPartNumber(ctx, partNumber)
	if err != nil {
		return nil, err
	}
	return s.components.UpdateComponent(ctx, c.ID, update)
}

func (s *AppService) DeleteComponent(ctx context.Context, partNumber string) error {
	c, err := s.components.GetComponentByPartNumber(ctx, partNumber)
	if err != nil {
		return err
	}
	return s.components.DeleteComponent(ctx, c.ID)
}

func (s *AppService) GetComponent(ctx context.Context, partNumber string) (*core.Component, error) {
	return s.components.GetComponentByPartNumber(ctx, partNumber)
}

func (s *AppService) SearchComponents(ctx context.Context, query string) ([]core.Component, error) {
	return s.components.SearchComponents(ctx, query)
}

func (s *AppService) ComponentCategoryCounts(ctx context.Context) ([]core.CategoryCount, error) {
	return s.components.CountByCategory(ctx)
}

func (s *AppService) CreateLocation(ctx context.Context, req CreateLocationRequest) (*core.Location, error) {
	input := core.LocationInput{Code: req.Code, Name: req.Name}
	if req.ParentCode != "" {
		parent, err := s.locations.GetLocationByCode(ctx, req.ParentCode)
		if err != nil {
			return nil, err
		}
		input.ParentID = &parent.ID
	}
	return s.locations.CreateLocation(ctx, input)
}

func (s *AppService) DeleteLocation(ctx context.Context, code string) error {
	loc, err := s.locations.GetLocationByCode(ctx, code)
	if err != nil {
		return err
	}
	return s.locations.DeleteLocation(ctx, loc.ID)
}

func (s *AppService) ListLocations(ctx context.Context) ([]core.Location, error) {
	return s.locations.ListLocations(ctx)
}

func (s *AppService) CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*core.Supplier, error) {
	return s.suppliers.CreateSupplier(ctx, core.SupplierInput{
		Code:             req.Code,
		Name:             req.Name,
		ContactPerson:    req.ContactName,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		PaymentTermsDays: req.PaymentTermsDays,
		LeadTimeDays:     req.LeadTimeDays,
	})
}

func (s *AppService) DeactivateSupplier(ctx context.Context, code string) error {
	sup, err := s.suppliers.GetSupplierByCode(ctx, code)
	if err != nil {
		return err
	}
	return s.suppliers.DeactivateSupplier(ctx, sup.ID)
}

func (s *AppService) ListSuppliers(ctx context.Context) ([]core.Supplier, error) {
	return s.suppliers.GetSuppliers(ctx)
}

// ── Stock ledger ──────────────────────────────────────────────────────────────

// resolveRecordKeys maps (part number, location code) to internal ids.
func (s *AppService) resolveRecordKeys(ctx context.Context, partNumber, locationCode string) (int, int, error) {
	c, err := s.components.GetComponentByPartNumber(ctx, partNumber)
	if err != nil {
		return 0, 0, err
	}
	loc, err := s.locations.GetLocationByCode(ctx, locationCode)
	if err != nil {
		return 0, 0, err
	}
	return c.ID, loc.ID, nil
}

func (s *AppService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.AdjustResult, error) {
	componentID, locationID, err := s.resolveRecordKeys(ctx, req.PartNumber, req.LocationCode)
	if err != nil {
		return nil, err
	}
	return s.stock.Adjust(ctx, componentID, locationID, req.Delta,
		core.TransactionType(req.TxType), req.Reason, req.Actor)
}

func (s *AppService) ReserveStock(ctx context.Context, req HoldStockRequest) (*core.AdjustResult, error) {
	componentID, locationID, err := s.resolveRecordKeys(ctx, req.PartNumber, req.LocationCode)
	if err != nil {
		return nil, err
	}
	ref := &core.TxReference{Type: "manual", ID: req.Actor}
	return s.stock.Reserve(ctx, componentID, locationID, req.Qty, ref, req.Actor)
}

func (s *AppService) ReleaseStock(ctx context.Context, req HoldStockRequest) (*core.AdjustResult, error) {
	componentID, locationID, err := s.resolveRecordKeys(ctx, req.PartNumber, req.LocationCode)
	if err != nil {
		return nil, err
	}
	ref := &core.TxReference{Type: "manual", ID: req.Actor}
	return s.stock.Release(ctx, componentID, locationID, req.Qty, ref, req.Actor)
}

func (s *AppService) RecordStockCount(ctx context.Context, req StockCountRequest) (*core.CountResult, error) {
	componentID, locationID, err := s.resolveRecordKeys(ctx, req.PartNumber, req.LocationCode)
	if err != nil {
		return nil, err
	}
	return s.stock.RecordCount(ctx, componentID, locationID, req.CountedQty, req.Counter)
}

func (s *AppService) TransferStock(ctx context.Context, req TransferStockRequest) error {
	c, err := s.components.GetComponentByPartNumber(ctx, req.PartNumber)
	if err != nil {
		return err
	}
	from, err := s.locations.GetLocationByCode(ctx, req.FromLocation)
	if err != nil {
		return err
	}
	to, err := s.locations.GetLocationByCode(ctx, req.ToLocation)
	if err != nil {
		return err
	}
	return s.stock.Transfer(ctx, c.ID, from.ID, to.ID, req.Qty, req.Actor)
}

func (s *AppService) SetStockThresholds(ctx context.Context, partNumber, locationCode string,
	t core.StockThresholds) (*core.StockRecord, error) {

	componentID, locationID, err := s.resolveRecordKeys(ctx, partNumber, locationCode)
	if err != nil {
		return nil, err
	}
	return s.stock.SetThresholds(ctx, componentID, locationID, t)
}

func (s *AppService) GetStockLevels(ctx context.Context) ([]core.StockLevel, error) {
	return s.stock.GetStockLevels(ctx)
}

func (s *AppService) LowStockReport(ctx context.Context) ([]core.StockLevel, error) {
	return s.stock.LowStockReport(ctx)
}

func (s *AppService) StockHistory(ctx context.Context, partNumber, locationCode string) ([]core.StockTransaction, error) {
	componentID, locationID, err := s.resolveRecordKeys(ctx, partNumber, locationCode)
	if err != nil {
		return nil, err
	}
	return s.stock.History(ctx, componentID, locationID)
}

func (s *AppService) GetComponentStockSummary(ctx context.Context, partNumber string) (*ComponentStockSummary, error) {
	c, err := s.components.GetComponentByPartNumber(ctx, partNumber)
	if err != nil {
		return nil, err
	}
	onHand, available, err := s.stock.TotalOnHand(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	incoming, err := s.orders.IncomingQuantity(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	levels, err := s.stock.GetStockLevels(ctx)
	if err != nil {
		return nil, err
	}
	summary := &ComponentStockSummary{
		Component: c,
		OnHand:    onHand,
		Available: available,
		Incoming:  incoming,
	}
	for _, lvl := range levels {
		if lvl.ComponentID == c.ID {
			summary.Records = append(summary.Records, lvl)
		}
	}
	return summary, nil
}

// ── Purchase orders ───────────────────────────────────────────────────────────

func (s *AppService) CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*core.PurchaseOrder, error) {
	sup, err := s.suppliers.GetSupplierByCode(ctx, req.SupplierCode)
	if err != nil {
		return nil, err
	}
	lines := make([]core.POLineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, core.POLineInput{
			PartNumber:      l.PartNumber,
			QuantityOrdered: l.QuantityOrdered,
			UnitPrice:       l.UnitPrice,
		})
	}
	return s.orders.Create(ctx, sup.ID, req.ExpectedDelivery, lines, req.Notes)
}

func (s *AppService) AddPurchaseOrderLine(ctx context.Context, poNumber string, line POLineRequest) (*core.PurchaseOrder, error) {
	po, err := s.orders.GetByNumber(ctx, poNumber)
	if err != nil {
		return nil, err
	}
	return s.orders.AddLine(ctx, po.ID, core.POLineInput{
		PartNumber:      line.PartNumber,
		QuantityOrdered: line.QuantityOrdered,
		UnitPrice:       line.UnitPrice,
	})
}

func (s *AppService) UpdatePurchaseOrderLine(ctx context.Context, poNumber string, lineNumber int,
	update core.POLineUpdate) (*core.PurchaseOrder, error) {
	po, err := s.orders.GetByNumber(ctx, poNumber)
	if err != nil {
		return nil, err
	}
	return s.orders.UpdateLine(ctx, po.ID, lineNumber, update)
}

func (s *AppService) UpdatePurchaseOrder(ctx context.Context, poNumber string, update core.POUpdate) (*core.PurchaseOrder, error) {
	po, err := s.orders.GetByNumber(ctx, poNumber)
	if err != nil {
		return nil, err
	}
	return s.orders.Update(ctx, po.ID, update)
}

func (s *AppService) UpdatePurchaseOrderStatus(ctx context.Context, poNumber string, to string) (*core.PurchaseOrder, error) {
	po, err := s.orders.GetByNumber(ctx, poNumber)
	if err != nil {
		return nil, err
	}
	return s.orders.UpdateStatus(ctx, po.ID, core.POStatus(to))
}

func (s *AppService) ReceiveShipment(ctx context.Context, req ReceiveShipmentRequest) (*core.PurchaseOrder, error) {
	po, err := s.orders.GetByNumber(ctx, req.PONumber)
	if err != nil {
		return nil, err
	}
	receipts := make([]core.LineReceipt, 0, len(req.Receipts))
	for _, r := range req.Receipts {
		loc, err := s.locations.GetLocationByCode(ctx, r.LocationCode)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, core.LineReceipt{
			LineID:     r.LineID,
			Qty:        r.Qty,
			LocationID: loc.ID,
		})
	}
	return s.orders.ReceiveShipment(ctx, po.ID, receipts, req.Actor)
}

func (s *AppService) GetPurchaseOrder(ctx context.Context, poNumber string) (*core.PurchaseOrder, error) {
	return s.orders.GetByNumber(ctx, poNumber)
}

func (s *AppService) ListPurchaseOrders(ctx context.Context, status string) ([]core.PurchaseOrder, error) {
	var filter *core.POStatus
	if status != "" {
		st := core.POStatus(status)
		filter = &st
	}
	return s.orders.List(ctx, filter)
}

// ── Build orders ──────────────────────────────────────────────────────────────

func (s *AppService) CreateBuildOrder(ctx context.Context, req CreateBuildOrderRequest) (*core.BuildOrder, error) {
	var bomVersion *string
	if req.BOMVersion != "" {
		bomVersion = &req.BOMVersion
	}
	return s.builds.Create(ctx, req.ProductName, req.Quantity, req.PlannedStart, bomVersion, req.Notes)
}

func (s *AppService) UpdateBuildOrderStatus(ctx context.Context, buildNumber, to, actor string) (*core.BuildOrder, error) {
	b, err := s.builds.GetByNumber(ctx, buildNumber)
	if err != nil {
		return nil, err
	}
	return s.builds.UpdateStatus(ctx, b.ID, core.BuildStatus(to), actor)
}

func (s *AppService) ReserveBuildMaterials(ctx context.Context, buildNumber, actor string) (*core.BuildOrder, error) {
	b, err := s.builds.GetByNumber(ctx, buildNumber)
	if err != nil {
		return nil, err
	}
	return s.builds.ReserveMaterials(ctx, b.ID, actor)
}

func (s *AppService) GetBuildOrder(ctx context.Context, buildNumber string) (*core.BuildOrder, error) {
	return s.builds.GetByNumber(ctx, buildNumber)
}

func (s *AppService) GetBuildHolds(ctx context.Context, buildNumber string) ([]core.MaterialHold, error) {
	b, err := s.builds.GetByNumber(ctx, buildNumber)
	if err != nil {
		return nil, err
	}
	return s.builds.Holds(ctx, b.ID)
}

func (s *AppService) ListBuildOrders(ctx context.Context, status string) ([]core.BuildOrder, error) {
	var filter *core.BuildStatus
	if status != "" {
		st := core.BuildStatus(status)
		filter = &st
	}
	return s.builds.List(ctx, filter)
}

// ── Bill of materials ─────────────────────────────────────────────────────────

func (s *AppService) UpsertBOMEntry(ctx context.Context, input core.BOMEntryInput) (*core.BOMEntry, error) {
	return s.bom.UpsertEntry(ctx, input)
}

func (s *AppService) RemoveBOMEntry(ctx context.Context, productName, partNumber string) error {
	return s.bom.RemoveEntry(ctx, productName, partNumber)
}

func (s *AppService) ListBOM(ctx context.Context, productName string) ([]core.BOMEntry, error) {
	return s.bom.ListEntries(ctx, productName)
}

func (s *AppService) ListBOMProducts(ctx context.Context) ([]string, error) {
	return s.bom.Products(ctx)
}

func (s *AppService) CheckFeasibility(ctx context.Context, productName string, quantity int64) (*core.FeasibilityResult, error) {
	return s.bom.CheckFeasibility(ctx, productName, quantity)
}

// ── Alerts and tasks ──────────────────────────────────────────────────────────

func (s *AppService) ListAlerts(ctx context.Context, status string) ([]core.Alert, error) {
	var filter *core.AlertStatus
	if status != "" {
		st := core.AlertStatus(status)
		filter = &st
	}
	return s.alerts.List(ctx, filter)
}

func (s *AppService) AcknowledgeAlert(ctx context.Context, alertID int) (*core.Alert, error) {
	return s.alerts.Acknowledge(ctx, alertID)
}

func (s *AppService) ResolveAlert(ctx context.Context, alertID int, note string) (*core.Alert, error) {
	return s.alerts.Resolve(ctx, alertID, note)
}

func (s *AppService) DismissAlert(ctx context.Context, alertID int) (*core.Alert, error) {
	return s.alerts.Dismiss(ctx, alertID)
}

func (s *AppService) CreateManualAlert(ctx context.Context, input core.ManualAlertInput) (*core.Alert, error) {
	return s.alerts.CreateManual(ctx, input)
}

func (s *AppService) CreateTask(ctx context.Context, input core.TaskInput) (*core.Task, error) {
	return s.tasks.Create(ctx, input)
}

func (s *AppService) UpdateTask(ctx context.Context, taskID int, update core.TaskUpdate) (*core.Task, error) {
	return s.tasks.Update(ctx, taskID, update)
}

func (s *AppService) ListTasks(ctx context.Context, status string) ([]core.Task, error) {
	var filter *core.TaskStatus
	if status != "" {
		st := core.TaskStatus(status)
		filter = &st
	}
	return s.tasks.List(ctx, filter)
}

// ── Assistant ─────────────────────────────────────────────────────────────────

// AskAssistant answers an operational question from live data. The registry
// exposes read-only queries; the assistant cannot change state.
func (s *AppService) AskAssistant(ctx context.Context, question string) (*ai.Briefing, error) {
	if s.agent == nil {
		return nil, &core.InvalidOperationError{Reason: "assistant is not configured (set OPENAI_API_KEY)"}
	}

	registry := ai.NewToolRegistry()
	registry.Register(ai.ToolDefinition{
		Name:        "stock_levels",
		Description: "Per-location stock records with on-hand, reserved and derived status.",
		Handler:     jsonTool(s.stock.GetStockLevels),
	})
	registry.Register(ai.ToolDefinition{
		Name:        "low_stock",
		Description: "Stock records at or below their minimum threshold.",
		Handler:     jsonTool(s.stock.LowStockReport),
	})
	registry.Register(ai.ToolDefinition{
		Name:        "purchase_orders",
		Description: "All purchase orders with status, expected delivery and totals.",
		Handler: jsonTool(func(ctx context.Context) ([]core.PurchaseOrder, error) {
			return s.orders.List(ctx, nil)
		}),
	})
	registry.Register(ai.ToolDefinition{
		Name:        "build_orders",
		Description: "All build orders with status and quantities.",
		Handler: jsonTool(func(ctx context.Context) ([]core.BuildOrder, error) {
			return s.builds.List(ctx, nil)
		}),
	})
	registry.Register(ai.ToolDefinition{
		Name:        "active_alerts",
		Description: "Currently active alerts.",
		Handler: jsonTool(func(ctx context.Context) ([]core.Alert, error) {
			status := core.AlertActive
			return s.alerts.List(ctx, &status)
		}),
	})

	return s.agent.Brief(ctx, question, registry)
}

// jsonTool adapts a query returning a slice into a JSON-producing tool handler.
func jsonTool[T any](query func(context.Context) ([]T, error)) ai.ToolHandler {
	return func(ctx context.Context) (string, error) {
		rows, err := query(ctx)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(rows)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// ── Monitor ───────────────────────────────────────────────────────────────────

func (s *AppService) RunSweep(ctx context.Context, name string) (*SweepRunResult, error) {
	result := &SweepRunResult{Reports: map[string]*core.SweepReport{}}

	run := func(key string, fn func(context.Context) (*core.SweepReport, error)) error {
		report, err := fn(ctx)
		if err != nil {
			return fmt.Errorf("%s sweep: %w", key, err)
		}
		result.Reports[key] = report
		return nil
	}

	switch name {
	case "stock":
		if err := run("stock", s.monitor.RunStockSweep); err != nil {
			return nil, err
		}
	case "po":
		if err := run("po", s.monitor.RunPOOverdueSweep); err != nil {
			return nil, err
		}
	case "sla":
		if err := run("sla", s.monitor.RunTaskSLASweep); err != nil {
			return nil, err
		}
	case "all":
		if err := run("stock", s.monitor.RunStockSweep); err != nil {
			return nil, err
		}
		if err := run("po", s.monitor.RunPOOverdueSweep); err != nil {
			return nil, err
		}
		if err := run("sla", s.monitor.RunTaskSLASweep); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown sweep %q (want stock, po, sla, or all)", name)
	}
	return result, nil
}
