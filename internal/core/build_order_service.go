package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type buildOrderService struct {
	pool  *pgxpool.Pool
	stock StockService
}

// NewBuildOrderService constructs a BuildOrderService backed by PostgreSQL.
// The stock service carries the reservation and consumption writes.
func NewBuildOrderService(pool *pgxpool.Pool, stock StockService) BuildOrderService {
	return &buildOrderService{pool: pool, stock: stock}
}

func (s *buildOrderService) Create(ctx context.Context, productName string, quantity int64,
	plannedStart *time.Time, bomVersion *string, notes string) (*BuildOrder, error) {

	if productName == "" {
		return nil, fmt.Errorf("product name is required")
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("build quantity must be positive, got %d", quantity)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	year := time.Now().Year()
	seq, err := nextSequence(ctx, tx, "build:"+productSlug(productName), year)
	if err != nil {
		return nil, err
	}
	buildNumber := formatBuildNumber(productName, year, seq)

	var toNotes *string
	if notes != "" {
		toNotes = &notes
	}

	var buildID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO build_orders (build_number, product_name, quantity, status,
		                          bom_version, planned_start, notes)
		VALUES ($1, $2, $3, 'planned', $4, $5, $6)
		RETURNING id`,
		buildNumber, productName, quantity, bomVersion, plannedStart, toNotes,
	).Scan(&buildID); err != nil {
		return nil, fmt.Errorf("insert build order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit build order: %w", err)
	}
	return s.Get(ctx, buildID)
}

func (s *buildOrderService) ReserveMaterials(ctx context.Context, buildID int, actor string) (*BuildOrder, error) {
	return s.UpdateStatus(ctx, buildID, BuildMaterialsReserved, actor)
}

func (s *buildOrderService) UpdateStatus(ctx context.Context, buildID int, to BuildStatus, actor string) (*BuildOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		buildNumber string
		productName string
		quantity    int64
		status      BuildStatus
		actualStart *time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT build_number, product_name, quantity, status, actual_start
		FROM build_orders WHERE id = $1 FOR UPDATE`,
		buildID,
	).Scan(&buildNumber, &productName, &quantity, &status, &actualStart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "build order", Key: fmt.Sprint(buildID)}
		}
		return nil, fmt.Errorf("lock build order %d: %w", buildID, err)
	}

	if !CanTransitionBuild(status, to) {
		allowed := make([]string, 0, len(buildTransitions[status]))
		for _, t := range buildTransitions[status] {
			allowed = append(allowed, string(t))
		}
		return nil, &InvalidTransitionError{
			Entity: "build order", Key: buildNumber,
			From: string(status), To: string(to), Allowed: allowed,
		}
	}

	ref := &TxReference{Type: "build_order", ID: buildNumber}

	switch to {
	case BuildMaterialsReserved:
		if err := s.reserveMaterialsTx(ctx, tx, buildNumber, productName, quantity, ref, actor); err != nil {
			return nil, err
		}
	case BuildPlanned, BuildCancelled:
		if err := s.releaseHoldsTx(ctx, tx, buildNumber, ref, actor); err != nil {
			return nil, err
		}
	case BuildComplete:
		if err := s.consumeHoldsTx(ctx, tx, buildNumber, ref, actor); err != nil {
			return nil, err
		}
	}

	query := "UPDATE build_orders SET status = $1, updated_at = NOW()"
	if to == BuildInProgress && actualStart == nil {
		query += ", actual_start = NOW()"
	}
	if to == BuildComplete {
		query += ", completed_at = NOW()"
	}
	query += " WHERE id = $2"
	if _, err := tx.Exec(ctx, query, to, buildID); err != nil {
		return nil, fmt.Errorf("transition build %s to %s: %w", buildNumber, to, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit status change: %w", err)
	}
	return s.Get(ctx, buildID)
}

// reserveMaterialsTx reserves quantity_per_unit × quantity for every required
// BOM entry of the product, allocated across locations with the most
// available stock first. Any shortfall aborts the caller's transaction.
func (s *buildOrderService) reserveMaterialsTx(ctx context.Context, tx pgx.Tx,
	buildNumber, productName string, quantity int64, ref *TxReference, actor string) error {

	type requirement struct {
		componentID int
		partNumber  string
		total       int64
	}
	var required []requirement
	rows, err := tx.Query(ctx, `
		SELECT b.component_id, c.part_number, b.quantity_per_unit
		FROM bom_entries b
		JOIN components c ON c.id = b.component_id
		WHERE b.product_name = $1 AND NOT b.is_optional
		ORDER BY b.component_id`,
		productName,
	)
	if err != nil {
		return fmt.Errorf("load BOM for %q: %w", productName, err)
	}
	for rows.Next() {
		var r requirement
		var perUnit int64
		if err := rows.Scan(&r.componentID, &r.partNumber, &perUnit); err != nil {
			rows.Close()
			return fmt.Errorf("scan BOM entry: %w", err)
		}
		r.total = perUnit * quantity
		required = append(required, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate BOM entries: %w", err)
	}
	if len(required) == 0 {
		return &InvalidOperationError{Reason: fmt.Sprintf(
			"no BOM defined for product %q; cannot reserve materials for %s", productName, buildNumber)}
	}

	for _, req := range required {
		remaining := req.total
		locRows, err := tx.Query(ctx, `
			SELECT location_id, quantity - reserved_qty
			FROM stock_records
			WHERE component_id = $1 AND quantity - reserved_qty > 0
			ORDER BY quantity - reserved_qty DESC, location_id`,
			req.componentID,
		)
		if err != nil {
			return fmt.Errorf("list stock for %s: %w", req.partNumber, err)
		}
		type allocation struct {
			locationID int
			qty        int64
		}
		var allocations []allocation
		for locRows.Next() {
			var locationID int
			var available int64
			if err := locRows.Scan(&locationID, &available); err != nil {
				locRows.Close()
				return fmt.Errorf("scan stock row: %w", err)
			}
			take := remaining
			if take > available {
				take = available
			}
			allocations = append(allocations, allocation{locationID, take})
			remaining -= take
			if remaining == 0 {
				break
			}
		}
		locRows.Close()
		if err := locRows.Err(); err != nil {
			return fmt.Errorf("iterate stock rows: %w", err)
		}

		if remaining > 0 {
			return &InsufficientStockError{
				PartNumber: req.partNumber,
				Requested:  req.total,
				Available:  req.total - remaining,
			}
		}
		for _, a := range allocations {
			if _, err := s.stock.ReserveTx(ctx, tx, req.componentID, a.locationID, a.qty, ref, actor); err != nil {
				return fmt.Errorf("reserve %d × %s for %s: %w", a.qty, req.partNumber, buildNumber, err)
			}
		}
	}
	return nil
}

func (s *buildOrderService) releaseHoldsTx(ctx context.Context, tx pgx.Tx,
	buildNumber string, ref *TxReference, actor string) error {

	holds, err := holdsForBuildTx(ctx, tx, buildNumber)
	if err != nil {
		return err
	}
	for _, h := range holds {
		if _, err := s.stock.ReleaseTx(ctx, tx, h.ComponentID, h.LocationID, h.Qty, ref, actor); err != nil {
			return fmt.Errorf("release hold of %d × %s for %s: %w", h.Qty, h.PartNumber, buildNumber, err)
		}
	}
	return nil
}

func (s *buildOrderService) consumeHoldsTx(ctx context.Context, tx pgx.Tx,
	buildNumber string, ref *TxReference, actor string) error {

	holds, err := holdsForBuildTx(ctx, tx, buildNumber)
	if err != nil {
		return err
	}
	for _, h := range holds {
		if _, err := s.stock.ConsumeTx(ctx, tx, h.ComponentID, h.LocationID, h.Qty, ref, actor); err != nil {
			return fmt.Errorf("consume %d × %s for %s: %w", h.Qty, h.PartNumber, buildNumber, err)
		}
	}
	return nil
}

// holdsQuery replays the build's reserve/unreserve entries into its live
// holds. Reserve entries carry a positive quantity, unreserve a negative one,
// so the sum per record is what the build still holds.
const holdsQuery = `
	SELECT st.component_id, c.part_number, st.location_id, SUM(st.quantity)
	FROM stock_transactions st
	JOIN components c ON c.id = st.component_id
	WHERE st.reference_type = 'build_order' AND st.reference_id = $1
	  AND st.tx_type IN ('reserve', 'unreserve')
	GROUP BY st.component_id, c.part_number, st.location_id
	HAVING SUM(st.quantity) > 0
	ORDER BY st.component_id, st.location_id`

func holdsForBuildTx(ctx context.Context, tx pgx.Tx, buildNumber string) ([]MaterialHold, error) {
	rows, err := tx.Query(ctx, holdsQuery, buildNumber)
	if err != nil {
		return nil, fmt.Errorf("replay holds for %s: %w", buildNumber, err)
	}
	defer rows.Close()
	return scanHolds(rows)
}

func scanHolds(rows pgx.Rows) ([]MaterialHold, error) {
	var holds []MaterialHold
	for rows.Next() {
		var h MaterialHold
		if err := rows.Scan(&h.ComponentID, &h.PartNumber, &h.LocationID, &h.Qty); err != nil {
			return nil, fmt.Errorf("scan hold: %w", err)
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

func (s *buildOrderService) Holds(ctx context.Context, buildID int) ([]MaterialHold, error) {
	build, err := s.Get(ctx, buildID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, holdsQuery, build.BuildNumber)
	if err != nil {
		return nil, fmt.Errorf("replay holds for %s: %w", build.BuildNumber, err)
	}
	defer rows.Close()
	return scanHolds(rows)
}

const buildColumns = `id, build_number, product_name, quantity, status, bom_version,
	       planned_start, actual_start, completed_at, notes, created_at, updated_at`

func scanBuildOrder(row pgx.Row) (*BuildOrder, error) {
	b := &BuildOrder{}
	err := row.Scan(
		&b.ID, &b.BuildNumber, &b.ProductName, &b.Quantity, &b.Status, &b.BOMVersion,
		&b.PlannedStart, &b.ActualStart, &b.CompletedAt, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *buildOrderService) Get(ctx context.Context, buildID int) (*BuildOrder, error) {
	b, err := scanBuildOrder(s.pool.QueryRow(ctx,
		"SELECT "+buildColumns+" FROM build_orders WHERE id = $1", buildID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "build order", Key: fmt.Sprint(buildID)}
		}
		return nil, fmt.Errorf("get build order %d: %w", buildID, err)
	}
	return b, nil
}

func (s *buildOrderService) GetByNumber(ctx context.Context, buildNumber string) (*BuildOrder, error) {
	b, err := scanBuildOrder(s.pool.QueryRow(ctx,
		"SELECT "+buildColumns+" FROM build_orders WHERE build_number = $1", buildNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "build order", Key: buildNumber}
		}
		return nil, fmt.Errorf("get build order %s: %w", buildNumber, err)
	}
	return b, nil
}

func (s *buildOrderService) List(ctx context.Context, status *BuildStatus) ([]BuildOrder, error) {
	query := "SELECT " + buildColumns + " FROM build_orders"
	args := []any{}
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list build orders: %w", err)
	}
	defer rows.Close()

	var builds []BuildOrder
	for rows.Next() {
		var b BuildOrder
		if err := rows.Scan(
			&b.ID, &b.BuildNumber, &b.ProductName, &b.Quantity, &b.Status, &b.BOMVersion,
			&b.PlannedStart, &b.ActualStart, &b.CompletedAt, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan build order: %w", err)
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}
