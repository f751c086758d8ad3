package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type purchaseOrderService struct {
	pool  *pgxpool.Pool
	stock StockService
}

// NewPurchaseOrderService constructs a PurchaseOrderService backed by
// PostgreSQL. The stock service is used for the Tx-scoped receiving writes.
func NewPurchaseOrderService(pool *pgxpool.Pool, stock StockService) PurchaseOrderService {
	return &purchaseOrderService{pool: pool, stock: stock}
}

func (s *purchaseOrderService) Create(ctx context.Context, supplierID int, expectedDelivery *time.Time,
	lines []POLineInput, notes string) (*PurchaseOrder, error) {

	if len(lines) == 0 {
		return nil, fmt.Errorf("purchase order must have at least one line")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var supplierActive bool
	if err := tx.QueryRow(ctx,
		"SELECT is_active FROM suppliers WHERE id = $1", supplierID,
	).Scan(&supplierActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "supplier", Key: fmt.Sprint(supplierID)}
		}
		return nil, fmt.Errorf("validate supplier: %w", err)
	}
	if !supplierActive {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf("supplier %d is inactive", supplierID)}
	}

	type resolvedLine struct {
		componentID int
		qty         int64
		unitPrice   decimal.Decimal
		lineTotal   decimal.Decimal
	}
	var resolved []resolvedLine
	var subtotal decimal.Decimal
	for i, input := range lines {
		if input.QuantityOrdered <= 0 {
			return nil, fmt.Errorf("line %d: ordered quantity must be positive", i+1)
		}
		componentID, err := resolveComponentTx(ctx, tx, input.PartNumber)
		if err != nil {
			return nil, err
		}
		lineTotal := input.UnitPrice.Mul(decimal.NewFromInt(input.QuantityOrdered))
		subtotal = subtotal.Add(lineTotal)
		resolved = append(resolved, resolvedLine{
			componentID: componentID,
			qty:         input.QuantityOrdered,
			unitPrice:   input.UnitPrice,
			lineTotal:   lineTotal,
		})
	}

	year := time.Now().Year()
	seq, err := nextSequence(ctx, tx, "po", year)
	if err != nil {
		return nil, err
	}
	poNumber := formatPONumber(year, seq)

	var toNotes *string
	if notes != "" {
		toNotes = &notes
	}

	var poID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (po_number, supplier_id, status, expected_delivery,
		                             subtotal, total, notes)
		VALUES ($1, $2, 'draft', $3, $4, $4, $5)
		RETURNING id`,
		poNumber, supplierID, expectedDelivery, subtotal, toNotes,
	).Scan(&poID); err != nil {
		return nil, fmt.Errorf("insert purchase order: %w", err)
	}

	for i, rl := range resolved {
		if _, err := tx.Exec(ctx, `
			INSERT INTO purchase_order_lines
			            (po_id, line_number, component_id, quantity_ordered, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			poID, i+1, rl.componentID, rl.qty, rl.unitPrice, rl.lineTotal,
		); err != nil {
			return nil, fmt.Errorf("insert PO line %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase order: %w", err)
	}
	return s.Get(ctx, poID)
}

func (s *purchaseOrderService) AddLine(ctx context.Context, poID int, input POLineInput) (*PurchaseOrder, error) {
	if input.QuantityOrdered <= 0 {
		return nil, fmt.Errorf("ordered quantity must be positive")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	poNumber, status, err := lockPO(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	if status != PODraft {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf(
			"lines can only be added to a draft PO; %s is %s", poNumber, status)}
	}

	componentID, err := resolveComponentTx(ctx, tx, input.PartNumber)
	if err != nil {
		return nil, err
	}

	lineTotal := input.UnitPrice.Mul(decimal.NewFromInt(input.QuantityOrdered))
	if _, err := tx.Exec(ctx, `
		INSERT INTO purchase_order_lines
		            (po_id, line_number, component_id, quantity_ordered, unit_price, line_total)
		VALUES ($1, (SELECT COALESCE(MAX(line_number), 0) + 1 FROM purchase_order_lines WHERE po_id = $1),
		        $2, $3, $4, $5)`,
		poID, componentID, input.QuantityOrdered, input.UnitPrice, lineTotal,
	); err != nil {
		return nil, fmt.Errorf("insert PO line: %w", err)
	}

	if err := recomputePOTotals(ctx, tx, poID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit line add: %w", err)
	}
	return s.Get(ctx, poID)
}

func (s *purchaseOrderService) UpdateLine(ctx context.Context, poID, lineNumber int,
	update POLineUpdate) (*PurchaseOrder, error) {

	if update.QuantityOrdered != nil && *update.QuantityOrdered <= 0 {
		return nil, fmt.Errorf("ordered quantity must be positive")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	poNumber, status, err := lockPO(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	if status != PODraft {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf(
			"lines can only be edited on a draft PO; %s is %s", poNumber, status)}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE purchase_order_lines
		SET quantity_ordered = COALESCE($1, quantity_ordered),
		    unit_price       = COALESCE($2, unit_price),
		    line_total       = COALESCE($1, quantity_ordered) * COALESCE($2, unit_price)
		WHERE po_id = $3 AND line_number = $4`,
		update.QuantityOrdered, update.UnitPrice, poID, lineNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("update line %d of %s: %w", lineNumber, poNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, &NotFoundError{Entity: "purchase order line",
			Key: fmt.Sprintf("%s line %d", poNumber, lineNumber)}
	}

	if err := recomputePOTotals(ctx, tx, poID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit line update: %w", err)
	}
	return s.Get(ctx, poID)
}

func (s *purchaseOrderService) Update(ctx context.Context, poID int, update POUpdate) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	poNumber, status, err := lockPO(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	if status == POReceived || status == POCancelled {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf("PO %s is %s and cannot be updated", poNumber, status)}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE purchase_orders
		SET expected_delivery = COALESCE($1, expected_delivery),
		    shipping          = COALESCE($2, shipping),
		    tax               = COALESCE($3, tax),
		    notes             = COALESCE($4, notes),
		    updated_at        = NOW()
		WHERE id = $5`,
		update.ExpectedDelivery, update.Shipping, update.Tax, update.Notes, poID,
	); err != nil {
		return nil, fmt.Errorf("update PO %s: %w", poNumber, err)
	}
	if err := recomputePOTotals(ctx, tx, poID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit PO update: %w", err)
	}
	return s.Get(ctx, poID)
}

func (s *purchaseOrderService) UpdateStatus(ctx context.Context, poID int, to POStatus) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	poNumber, status, err := lockPO(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionPO(status, to) {
		return nil, invalidPOTransition(poNumber, status, to)
	}

	if err := applyPOTransition(ctx, tx, poID, to); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit status change: %w", err)
	}
	return s.Get(ctx, poID)
}

// applyPOTransition writes the status change plus its on-entry side effects:
// submitted stamps order_date, received stamps actual_delivery.
func applyPOTransition(ctx context.Context, tx pgx.Tx, poID int, to POStatus) error {
	query := "UPDATE purchase_orders SET status = $1, updated_at = NOW()"
	switch to {
	case POSubmitted:
		query += ", order_date = CURRENT_DATE"
	case POReceived:
		query += ", actual_delivery = CURRENT_DATE"
	}
	query += " WHERE id = $2"
	if _, err := tx.Exec(ctx, query, to, poID); err != nil {
		return fmt.Errorf("transition PO %d to %s: %w", poID, to, err)
	}
	return nil
}

func invalidPOTransition(poNumber string, from, to POStatus) error {
	allowed := make([]string, 0, len(poTransitions[from]))
	for _, t := range poTransitions[from] {
		allowed = append(allowed, string(t))
	}
	return &InvalidTransitionError{
		Entity: "purchase order", Key: poNumber,
		From: string(from), To: string(to), Allowed: allowed,
	}
}

// ReceiveShipment is the composite receiving operation. Line validation and
// updates, stock record writes, audit entries, alert reconciliation, and the
// PO-level status recompute all happen inside one transaction, so a failed
// line receipt retains nothing from the call.
func (s *purchaseOrderService) ReceiveShipment(ctx context.Context, poID int,
	receipts []LineReceipt, actor string) (*PurchaseOrder, error) {

	if len(receipts) == 0 {
		return nil, fmt.Errorf("at least one line receipt is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	poNumber, status, err := lockPO(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	switch status {
	case POShipped, POConfirmed, POPartialReceived:
	default:
		return nil, &InvalidOperationError{Reason: fmt.Sprintf(
			"PO %s cannot receive a shipment: status is %s (must be confirmed, shipped, or partial_received)",
			poNumber, status)}
	}

	// Lock the lines so the cumulative received counts cannot move under us.
	type poLine struct {
		id          int
		lineNumber  int
		componentID int
		ordered     int64
		received    int64
		unitPrice   decimal.Decimal
	}
	lineByID := make(map[int]*poLine)
	rows, err := tx.Query(ctx, `
		SELECT id, line_number, component_id, quantity_ordered, quantity_received, unit_price
		FROM purchase_order_lines
		WHERE po_id = $1 AND status <> 'cancelled'
		FOR UPDATE`,
		poID,
	)
	if err != nil {
		return nil, fmt.Errorf("lock PO lines: %w", err)
	}
	for rows.Next() {
		l := &poLine{}
		if err := rows.Scan(&l.id, &l.lineNumber, &l.componentID, &l.ordered, &l.received, &l.unitPrice); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan PO line: %w", err)
		}
		lineByID[l.id] = l
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate PO lines: %w", err)
	}

	ref := &TxReference{Type: "purchase_order", ID: poNumber}
	touchedComponents := make(map[int]bool)

	for _, rcpt := range receipts {
		if rcpt.Qty <= 0 {
			return nil, fmt.Errorf("line %d: received quantity must be positive", rcpt.LineID)
		}
		l, ok := lineByID[rcpt.LineID]
		if !ok {
			return nil, &NotFoundError{Entity: "purchase order line",
				Key: fmt.Sprintf("%d on PO %s", rcpt.LineID, poNumber)}
		}

		if l.received+rcpt.Qty > l.ordered {
			return nil, &OverReceiptError{
				PONumber:        poNumber,
				LineNumber:      l.lineNumber,
				Ordered:         l.ordered,
				AlreadyReceived: l.received,
				Attempted:       rcpt.Qty,
			}
		}
		l.received += rcpt.Qty

		lineStatus := POLinePartial
		if l.received == l.ordered {
			lineStatus = POLineReceived
		}
		if _, err := tx.Exec(ctx, `
			UPDATE purchase_order_lines
			SET quantity_received = $1, status = $2
			WHERE id = $3`,
			l.received, lineStatus, l.id,
		); err != nil {
			return nil, fmt.Errorf("update PO line %d: %w", l.id, err)
		}

		if _, err := s.stock.ReceiveTx(ctx, tx, l.componentID, rcpt.LocationID,
			rcpt.Qty, l.unitPrice, ref, actor); err != nil {
			return nil, fmt.Errorf("receive stock for PO %s line %d: %w", poNumber, l.lineNumber, err)
		}
		touchedComponents[l.componentID] = true
	}

	// Reconciliation pass: receiving may have cured low-stock and out-of-stock
	// conditions, and an overdue PO that just delivered is overdue no more.
	for componentID := range touchedComponents {
		if _, err := resolveStockAlertsIfHealthyTx(ctx, tx, componentID,
			fmt.Sprintf("stock replenished by %s", poNumber)); err != nil {
			return nil, err
		}
	}
	if _, err := resolvePOAlertsTx(ctx, tx, poID, fmt.Sprintf("shipment received on %s", poNumber)); err != nil {
		return nil, err
	}

	// PO-level status recompute from the post-receipt line states.
	var active, fullyReceived, anyReceived int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status <> 'cancelled'),
		       COUNT(*) FILTER (WHERE status <> 'cancelled' AND quantity_received >= quantity_ordered),
		       COUNT(*) FILTER (WHERE status <> 'cancelled' AND quantity_received > 0)
		FROM purchase_order_lines
		WHERE po_id = $1`,
		poID,
	).Scan(&active, &fullyReceived, &anyReceived); err != nil {
		return nil, fmt.Errorf("recompute PO line tallies: %w", err)
	}
	switch {
	case active > 0 && fullyReceived == active:
		if err := applyPOTransition(ctx, tx, poID, POReceived); err != nil {
			return nil, err
		}
	case anyReceived > 0:
		if err := applyPOTransition(ctx, tx, poID, POPartialReceived); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit shipment receipt: %w", err)
	}
	return s.Get(ctx, poID)
}

// lockPO locks the PO header row and returns its number and status.
func lockPO(ctx context.Context, tx pgx.Tx, poID int) (string, POStatus, error) {
	var poNumber string
	var status POStatus
	err := tx.QueryRow(ctx,
		"SELECT po_number, status FROM purchase_orders WHERE id = $1 FOR UPDATE", poID,
	).Scan(&poNumber, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", &NotFoundError{Entity: "purchase order", Key: fmt.Sprint(poID)}
		}
		return "", "", fmt.Errorf("lock purchase order %d: %w", poID, err)
	}
	return poNumber, status, nil
}

// recomputePOTotals rederives subtotal and total from the non-cancelled lines.
func recomputePOTotals(ctx context.Context, tx pgx.Tx, poID int) error {
	_, err := tx.Exec(ctx, `
		UPDATE purchase_orders po
		SET subtotal   = x.line_sum,
		    total      = x.line_sum + po.shipping + po.tax,
		    updated_at = NOW()
		FROM (SELECT COALESCE(SUM(line_total), 0) AS line_sum
		      FROM purchase_order_lines
		      WHERE po_id = $1 AND status <> 'cancelled') x
		WHERE po.id = $1`,
		poID,
	)
	if err != nil {
		return fmt.Errorf("recompute totals for PO %d: %w", poID, err)
	}
	return nil
}

const poColumns = `po.id, po.po_number, po.supplier_id, s.code, s.name, po.status,
	       po.order_date, po.expected_delivery, po.actual_delivery,
	       po.shipping, po.tax, po.subtotal, po.total, po.notes,
	       po.created_at, po.updated_at`

func (s *purchaseOrderService) Get(ctx context.Context, poID int) (*PurchaseOrder, error) {
	return s.getWhere(ctx, "po.id = $1", poID)
}

func (s *purchaseOrderService) GetByNumber(ctx context.Context, poNumber string) (*PurchaseOrder, error) {
	return s.getWhere(ctx, "po.po_number = $1", poNumber)
}

func (s *purchaseOrderService) getWhere(ctx context.Context, where string, arg any) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	err := s.pool.QueryRow(ctx, `
		SELECT `+poColumns+`
		FROM purchase_orders po
		JOIN suppliers s ON s.id = po.supplier_id
		WHERE `+where,
		arg,
	).Scan(
		&po.ID, &po.PONumber, &po.SupplierID, &po.SupplierCode, &po.SupplierName, &po.Status,
		&po.OrderDate, &po.ExpectedDelivery, &po.ActualDelivery,
		&po.Shipping, &po.Tax, &po.Subtotal, &po.Total, &po.Notes,
		&po.CreatedAt, &po.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "purchase order", Key: fmt.Sprint(arg)}
		}
		return nil, fmt.Errorf("get purchase order %v: %w", arg, err)
	}

	lines, err := s.fetchLines(ctx, po.ID)
	if err != nil {
		return nil, err
	}
	po.Lines = lines
	return po, nil
}

func (s *purchaseOrderService) List(ctx context.Context, status *POStatus) ([]PurchaseOrder, error) {
	query := `
		SELECT ` + poColumns + `
		FROM purchase_orders po
		JOIN suppliers s ON s.id = po.supplier_id`
	args := []any{}
	if status != nil {
		query += " WHERE po.status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY po.created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := rows.Scan(
			&po.ID, &po.PONumber, &po.SupplierID, &po.SupplierCode, &po.SupplierName, &po.Status,
			&po.OrderDate, &po.ExpectedDelivery, &po.ActualDelivery,
			&po.Shipping, &po.Tax, &po.Subtotal, &po.Total, &po.Notes,
			&po.CreatedAt, &po.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

func (s *purchaseOrderService) IncomingQuantity(ctx context.Context, componentID int) (int64, error) {
	var incoming int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(pol.quantity_ordered - pol.quantity_received), 0)
		FROM purchase_order_lines pol
		JOIN purchase_orders po ON po.id = pol.po_id
		WHERE pol.component_id = $1
		  AND pol.status NOT IN ('cancelled', 'received')
		  AND po.status NOT IN ('draft', 'received', 'cancelled')`,
		componentID,
	).Scan(&incoming)
	if err != nil {
		return 0, fmt.Errorf("incoming quantity for component %d: %w", componentID, err)
	}
	return incoming, nil
}

func (s *purchaseOrderService) fetchLines(ctx context.Context, poID int) ([]PurchaseOrderLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pol.id, pol.po_id, pol.line_number,
		       pol.component_id, c.part_number, c.name,
		       pol.quantity_ordered, pol.quantity_received,
		       pol.unit_price, pol.line_total, pol.status
		FROM purchase_order_lines pol
		JOIN components c ON c.id = pol.component_id
		WHERE pol.po_id = $1
		ORDER BY pol.line_number`,
		poID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch lines for PO %d: %w", poID, err)
	}
	defer rows.Close()

	var lines []PurchaseOrderLine
	for rows.Next() {
		var l PurchaseOrderLine
		if err := rows.Scan(
			&l.ID, &l.POID, &l.LineNumber,
			&l.ComponentID, &l.PartNumber, &l.ComponentName,
			&l.QuantityOrdered, &l.QuantityReceived,
			&l.UnitPrice, &l.LineTotal, &l.Status,
		); err != nil {
			return nil, fmt.Errorf("scan PO line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
