package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type stockService struct {
	pool *pgxpool.Pool
}

// NewStockService constructs the stock ledger backed by PostgreSQL.
func NewStockService(pool *pgxpool.Pool) StockService {
	return &stockService{pool: pool}
}

// lockedRecord is a stock record row held under FOR UPDATE for the duration of
// the enclosing transaction.
type lockedRecord struct {
	id          int
	quantity    int64
	reserved    int64
	minimum     *int64
	maximum     *int64
	costPerUnit decimal.Decimal
	partNumber  string
}

// lockRecord locks the (component, location) row. Returns NotFoundError if no
// record exists yet.
func lockRecord(ctx context.Context, tx pgx.Tx, componentID, locationID int) (*lockedRecord, error) {
	r := &lockedRecord{}
	err := tx.QueryRow(ctx, `
		SELECT sr.id, sr.quantity, sr.reserved_qty, sr.minimum_stock, sr.maximum_stock,
		       sr.cost_per_unit, c.part_number
		FROM stock_records sr
		JOIN components c ON c.id = sr.component_id
		WHERE sr.component_id = $1 AND sr.location_id = $2
		FOR UPDATE OF sr`,
		componentID, locationID,
	).Scan(&r.id, &r.quantity, &r.reserved, &r.minimum, &r.maximum, &r.costPerUnit, &r.partNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{
				Entity: "stock record",
				Key:    fmt.Sprintf("component %d at location %d", componentID, locationID),
			}
		}
		return nil, fmt.Errorf("lock stock record (component %d, location %d): %w", componentID, locationID, err)
	}
	return r, nil
}

// upsertAndLockRecord creates the (component, location) row if it does not
// exist yet (first receipt) and locks it.
func upsertAndLockRecord(ctx context.Context, tx pgx.Tx, componentID, locationID int) (*lockedRecord, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_records (component_id, location_id, quantity, reserved_qty, cost_per_unit)
		VALUES ($1, $2, 0, 0, 0)
		ON CONFLICT (component_id, location_id) DO NOTHING`,
		componentID, locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert stock record (component %d, location %d): %w", componentID, locationID, err)
	}
	return lockRecord(ctx, tx, componentID, locationID)
}

// appendEntry writes one audit row. For reserve/unreserve the delta applies to
// the reservation while previousQty/newQty snapshot the unchanged on-hand
// quantity, keeping the previous→new chain contiguous across all entry types.
func appendEntry(ctx context.Context, tx pgx.Tx, txType TransactionType,
	componentID, locationID int, delta, previousQty, newQty int64,
	ref *TxReference, actor, notes string) error {

	var refType, refID *string
	if ref != nil {
		refType, refID = &ref.Type, &ref.ID
	}
	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	if actor == "" {
		actor = "system"
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO stock_transactions
		            (tx_type, component_id, location_id, quantity, previous_qty, new_qty,
		             reference_type, reference_id, actor, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		txType, componentID, locationID, delta, previousQty, newQty,
		refType, refID, actor, notesPtr,
	)
	if err != nil {
		return fmt.Errorf("append %s transaction: %w", txType, err)
	}
	return nil
}

func setRecordQuantities(ctx context.Context, tx pgx.Tx, recordID int, quantity, reserved int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE stock_records
		SET quantity = $1, reserved_qty = $2, updated_at = NOW()
		WHERE id = $3`,
		quantity, reserved, recordID,
	)
	if err != nil {
		return fmt.Errorf("update stock record %d: %w", recordID, err)
	}
	return nil
}

// ── Standalone mutations ──────────────────────────────────────────────────────

func (s *stockService) Adjust(ctx context.Context, componentID, locationID int, delta int64,
	txType TransactionType, reason, actor string) (*AdjustResult, error) {

	switch txType {
	case TxAdjust, TxConsume, TxScrap, TxReturn:
	default:
		return nil, fmt.Errorf("transaction type %q is not a manual adjustment type", txType)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Manual entry may be the first stock a pair ever sees.
	r, err := upsertAndLockRecord(ctx, tx, componentID, locationID)
	if err != nil {
		return nil, err
	}

	newQty := r.quantity + delta
	if newQty < 0 {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf(
			"adjustment of %+d would drive %s below zero (on hand %d)", delta, r.partNumber, r.quantity)}
	}
	if newQty < r.reserved {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf(
			"adjustment of %+d would leave %s with %d on hand but %d reserved", delta, r.partNumber, newQty, r.reserved)}
	}

	if err := setRecordQuantities(ctx, tx, r.id, newQty, r.reserved); err != nil {
		return nil, err
	}
	if err := appendEntry(ctx, tx, txType, componentID, locationID,
		delta, r.quantity, newQty, nil, actor, reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit adjustment: %w", err)
	}
	return &AdjustResult{
		PreviousQty: r.quantity,
		NewQty:      newQty,
		Status:      DeriveStockStatus(newQty, r.minimum, r.maximum),
	}, nil
}

func (s *stockService) Reserve(ctx context.Context, componentID, locationID int, qty int64,
	reference *TxReference, actor string) (*AdjustResult, error) {
	return s.inTx(ctx, func(tx pgx.Tx) (*AdjustResult, error) {
		return s.ReserveTx(ctx, tx, componentID, locationID, qty, reference, actor)
	})
}

func (s *stockService) Release(ctx context.Context, componentID, locationID int, qty int64,
	reference *TxReference, actor string) (*AdjustResult, error) {
	return s.inTx(ctx, func(tx pgx.Tx) (*AdjustResult, error) {
		return s.ReleaseTx(ctx, tx, componentID, locationID, qty, reference, actor)
	})
}

func (s *stockService) RecordCount(ctx context.Context, componentID, locationID int,
	countedQty int64, counter string) (*CountResult, error) {

	if countedQty < 0 {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf("counted quantity cannot be negative, got %d", countedQty)}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	r, err := lockRecord(ctx, tx, componentID, locationID)
	if err != nil {
		return nil, err
	}

	// The count is authoritative. If it falls below the current reservation the
	// reservation is clamped down: a hold on units that do not exist is void.
	newReserved := r.reserved
	if countedQty < newReserved {
		newReserved = countedQty
	}

	discrepancy := countedQty - r.quantity
	if err := setRecordQuantities(ctx, tx, r.id, countedQty, newReserved); err != nil {
		return nil, err
	}
	if err := appendEntry(ctx, tx, TxCount, componentID, locationID,
		discrepancy, r.quantity, countedQty, nil, counter,
		fmt.Sprintf("physical count: %d counted, discrepancy %+d", countedQty, discrepancy)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit count: %w", err)
	}
	return &CountResult{
		PreviousQty: r.quantity,
		CountedQty:  countedQty,
		Discrepancy: discrepancy,
		Status:      DeriveStockStatus(countedQty, r.minimum, r.maximum),
	}, nil
}

func (s *stockService) Transfer(ctx context.Context, componentID, fromLocationID, toLocationID int,
	qty int64, actor string) error {

	if qty <= 0 {
		return &InvalidOperationError{Reason: fmt.Sprintf("transfer quantity must be positive, got %d", qty)}
	}
	if fromLocationID == toLocationID {
		return &InvalidOperationError{Reason: "transfer source and destination are the same location"}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock in location-id order so two opposing transfers cannot deadlock.
	var src, dst *lockedRecord
	if fromLocationID < toLocationID {
		if src, err = lockRecord(ctx, tx, componentID, fromLocationID); err != nil {
			return err
		}
		if dst, err = upsertAndLockRecord(ctx, tx, componentID, toLocationID); err != nil {
			return err
		}
	} else {
		if dst, err = upsertAndLockRecord(ctx, tx, componentID, toLocationID); err != nil {
			return err
		}
		if src, err = lockRecord(ctx, tx, componentID, fromLocationID); err != nil {
			return err
		}
	}

	if src.quantity-src.reserved < qty {
		return &InsufficientStockError{PartNumber: src.partNumber, Requested: qty, Available: src.quantity - src.reserved}
	}

	if err := setRecordQuantities(ctx, tx, src.id, src.quantity-qty, src.reserved); err != nil {
		return err
	}
	newDstQty := dst.quantity + qty
	if err := setRecordQuantities(ctx, tx, dst.id, newDstQty, dst.reserved); err != nil {
		return err
	}
	// Destination inherits the source cost on its first stock.
	if dst.quantity == 0 && !src.costPerUnit.IsZero() {
		if _, err := tx.Exec(ctx,
			"UPDATE stock_records SET cost_per_unit = $1 WHERE id = $2", src.costPerUnit, dst.id); err != nil {
			return fmt.Errorf("set destination cost: %w", err)
		}
	}

	ref := &TxReference{Type: "transfer", ID: fmt.Sprintf("loc %d → loc %d", fromLocationID, toLocationID)}
	if err := appendEntry(ctx, tx, TxTransfer, componentID, fromLocationID,
		-qty, src.quantity, src.quantity-qty, ref, actor, ""); err != nil {
		return err
	}
	if err := appendEntry(ctx, tx, TxTransfer, componentID, toLocationID,
		qty, dst.quantity, newDstQty, ref, actor, ""); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *stockService) SetThresholds(ctx context.Context, componentID, locationID int, t StockThresholds) (*StockRecord, error) {
	if t.MinimumStock != nil && t.MaximumStock != nil && *t.MinimumStock > *t.MaximumStock {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf(
			"minimum stock %d exceeds maximum stock %d", *t.MinimumStock, *t.MaximumStock)}
	}
	ct, err := s.pool.Exec(ctx, `
		UPDATE stock_records
		SET minimum_stock = $1, maximum_stock = $2, updated_at = NOW()
		WHERE component_id = $3 AND location_id = $4`,
		t.MinimumStock, t.MaximumStock, componentID, locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("set thresholds: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, &NotFoundError{
			Entity: "stock record",
			Key:    fmt.Sprintf("component %d at location %d", componentID, locationID),
		}
	}
	return s.GetRecord(ctx, componentID, locationID)
}

// inTx runs fn inside a fresh pool transaction and commits on success.
func (s *stockService) inTx(ctx context.Context, fn func(pgx.Tx) (*AdjustResult, error)) (*AdjustResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := fn(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// ── Tx-scoped mutations ───────────────────────────────────────────────────────

func (s *stockService) ReceiveTx(ctx context.Context, tx pgx.Tx, componentID, locationID int,
	qty int64, costPerUnit decimal.Decimal, reference *TxReference, actor string) (*AdjustResult, error) {

	if qty <= 0 {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf("receive quantity must be positive, got %d", qty)}
	}

	r, err := upsertAndLockRecord(ctx, tx, componentID, locationID)
	if err != nil {
		return nil, err
	}

	newQty := r.quantity + qty
	if err := setRecordQuantities(ctx, tx, r.id, newQty, r.reserved); err != nil {
		return nil, err
	}
	if !costPerUnit.IsZero() {
		if _, err := tx.Exec(ctx,
			"UPDATE stock_records SET cost_per_unit = $1 WHERE id = $2", costPerUnit, r.id); err != nil {
			return nil, fmt.Errorf("refresh cost per unit: %w", err)
		}
	}
	if err := appendEntry(ctx, tx, TxReceive, componentID, locationID,
		qty, r.quantity, newQty, reference, actor, ""); err != nil {
		return nil, err
	}
	return &AdjustResult{
		PreviousQty: r.quantity,
		NewQty:      newQty,
		Status:      DeriveStockStatus(newQty, r.minimum, r.maximum),
	}, nil
}

func (s *stockService) ReserveTx(ctx context.Context, tx pgx.Tx, componentID, locationID int,
	qty int64, reference *TxReference, actor string) (*AdjustResult, error) {

	if qty <= 0 {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf("reserve quantity must be positive, got %d", qty)}
	}

	r, err := lockRecord(ctx, tx, componentID, locationID)
	if err != nil {
		return nil, err
	}

	available := r.quantity - r.reserved
	if qty > available {
		return nil, &InsufficientStockError{PartNumber: r.partNumber, Requested: qty, Available: available}
	}

	if err := setRecordQuantities(ctx, tx, r.id, r.quantity, r.reserved+qty); err != nil {
		return nil, err
	}
	if err := appendEntry(ctx, tx, TxReserve, componentID, locationID,
		qty, r.quantity, r.quantity, reference, actor, ""); err != nil {
		return nil, err
	}
	return &AdjustResult{
		PreviousQty: r.quantity,
		NewQty:      r.quantity,
		Status:      DeriveStockStatus(r.quantity, r.minimum, r.maximum),
	}, nil
}

func (s *stockService) ReleaseTx(ctx context.Context, tx pgx.Tx, componentID, locationID int,
	qty int64, reference *TxReference, actor string) (*AdjustResult, error) {

	if qty <= 0 {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf("release quantity must be positive, got %d", qty)}
	}

	r, err := lockRecord(ctx, tx, componentID, locationID)
	if err != nil {
		return nil, err
	}

	// Clamp: releasing more than is held releases what is held.
	released := qty
	if released > r.reserved {
		released = r.reserved
	}
	if released == 0 {
		return &AdjustResult{
			PreviousQty: r.quantity,
			NewQty:      r.quantity,
			Status:      DeriveStockStatus(r.quantity, r.minimum, r.maximum),
		}, nil
	}

	if err := setRecordQuantities(ctx, tx, r.id, r.quantity, r.reserved-released); err != nil {
		return nil, err
	}
	if err := appendEntry(ctx, tx, TxUnreserve, componentID, locationID,
		-released, r.quantity, r.quantity, reference, actor, ""); err != nil {
		return nil, err
	}
	return &AdjustResult{
		PreviousQty: r.quantity,
		NewQty:      r.quantity,
		Status:      DeriveStockStatus(r.quantity, r.minimum, r.maximum),
	}, nil
}

func (s *stockService) ConsumeTx(ctx context.Context, tx pgx.Tx, componentID, locationID int,
	qty int64, reference *TxReference, actor string) (*AdjustResult, error) {

	if qty <= 0 {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf("consume quantity must be positive, got %d", qty)}
	}

	r, err := lockRecord(ctx, tx, componentID, locationID)
	if err != nil {
		return nil, err
	}
	if qty > r.quantity {
		return nil, &InvalidOperationError{Reason: fmt.Sprintf(
			"consuming %d would drive %s below zero (on hand %d)", qty, r.partNumber, r.quantity)}
	}

	// Consumption eats the matching reservation first.
	releasedHold := qty
	if releasedHold > r.reserved {
		releasedHold = r.reserved
	}
	newQty := r.quantity - qty
	if err := setRecordQuantities(ctx, tx, r.id, newQty, r.reserved-releasedHold); err != nil {
		return nil, err
	}
	if err := appendEntry(ctx, tx, TxConsume, componentID, locationID,
		-qty, r.quantity, newQty, reference, actor, ""); err != nil {
		return nil, err
	}
	return &AdjustResult{
		PreviousQty: r.quantity,
		NewQty:      newQty,
		Status:      DeriveStockStatus(newQty, r.minimum, r.maximum),
	}, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *stockService) GetRecord(ctx context.Context, componentID, locationID int) (*StockRecord, error) {
	r := &StockRecord{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, component_id, location_id, quantity, reserved_qty,
		       minimum_stock, maximum_stock, cost_per_unit, updated_at
		FROM stock_records
		WHERE component_id = $1 AND location_id = $2`,
		componentID, locationID,
	).Scan(&r.ID, &r.ComponentID, &r.LocationID, &r.Quantity, &r.ReservedQty,
		&r.MinimumStock, &r.MaximumStock, &r.CostPerUnit, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{
				Entity: "stock record",
				Key:    fmt.Sprintf("component %d at location %d", componentID, locationID),
			}
		}
		return nil, fmt.Errorf("get stock record: %w", err)
	}
	r.Available = r.Quantity - r.ReservedQty
	r.Status = DeriveStockStatus(r.Quantity, r.MinimumStock, r.MaximumStock)
	return r, nil
}

const stockLevelQuery = `
	SELECT sr.component_id, c.part_number, c.name,
	       sr.location_id, l.code,
	       sr.quantity, sr.reserved_qty, sr.quantity - sr.reserved_qty,
	       sr.minimum_stock, sr.maximum_stock, sr.cost_per_unit
	FROM stock_records sr
	JOIN components c ON c.id = sr.component_id
	JOIN locations  l ON l.id = sr.location_id`

func (s *stockService) GetStockLevels(ctx context.Context) ([]StockLevel, error) {
	return s.queryLevels(ctx, stockLevelQuery+" ORDER BY c.part_number, l.code")
}

func (s *stockService) LowStockReport(ctx context.Context) ([]StockLevel, error) {
	return s.queryLevels(ctx, stockLevelQuery+`
	WHERE sr.quantity <= 0
	   OR (sr.minimum_stock IS NOT NULL AND sr.quantity <= sr.minimum_stock)
	ORDER BY c.part_number, l.code`)
}

func (s *stockService) queryLevels(ctx context.Context, query string) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(
			&sl.ComponentID, &sl.PartNumber, &sl.Name,
			&sl.LocationID, &sl.LocationCode,
			&sl.Quantity, &sl.ReservedQty, &sl.Available,
			&sl.MinimumStock, &sl.MaximumStock, &sl.CostPerUnit,
		); err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		sl.Status = DeriveStockStatus(sl.Quantity, sl.MinimumStock, sl.MaximumStock)
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

func (s *stockService) TotalOnHand(ctx context.Context, componentID int) (int64, int64, error) {
	var onHand, available int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0), COALESCE(SUM(quantity - reserved_qty), 0)
		FROM stock_records
		WHERE component_id = $1`,
		componentID,
	).Scan(&onHand, &available)
	if err != nil {
		return 0, 0, fmt.Errorf("total on hand for component %d: %w", componentID, err)
	}
	return onHand, available, nil
}

func (s *stockService) History(ctx context.Context, componentID, locationID int) ([]StockTransaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tx_type, component_id, location_id, quantity, previous_qty, new_qty,
		       reference_type, reference_id, actor, notes, created_at
		FROM stock_transactions
		WHERE component_id = $1 AND location_id = $2
		ORDER BY id`,
		componentID, locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stock history: %w", err)
	}
	defer rows.Close()

	var entries []StockTransaction
	for rows.Next() {
		var e StockTransaction
		if err := rows.Scan(
			&e.ID, &e.Type, &e.ComponentID, &e.LocationID, &e.Quantity,
			&e.PreviousQty, &e.NewQty, &e.ReferenceType, &e.ReferenceID,
			&e.Actor, &e.Notes, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock transaction: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
