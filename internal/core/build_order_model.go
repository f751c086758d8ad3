package core

import (
	"context"
	"time"
)

// BuildStatus is the lifecycle state of a build order.
type BuildStatus string

const (
	BuildPlanned           BuildStatus = "planned"
	BuildMaterialsReserved BuildStatus = "materials_reserved"
	BuildInProgress        BuildStatus = "in_progress"
	BuildQC                BuildStatus = "qc"
	BuildComplete          BuildStatus = "complete"
	BuildCancelled         BuildStatus = "cancelled"
)

// buildTransitions is the complete edge table. Not strictly linear: qc may
// return to in_progress for rework, and materials_reserved may step back to
// planned (which releases the holds).
var buildTransitions = map[BuildStatus][]BuildStatus{
	BuildPlanned:           {BuildMaterialsReserved, BuildCancelled},
	BuildMaterialsReserved: {BuildInProgress, BuildPlanned, BuildCancelled},
	BuildInProgress:        {BuildQC, BuildCancelled},
	BuildQC:                {BuildComplete, BuildInProgress},
	BuildComplete:          {},
	BuildCancelled:         {},
}

// AllowedBuildTransitions returns the targets reachable from a status.
func AllowedBuildTransitions(from BuildStatus) []BuildStatus {
	return buildTransitions[from]
}

// CanTransitionBuild reports whether from → to is a legal edge.
func CanTransitionBuild(from, to BuildStatus) bool {
	for _, t := range buildTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// BuildOrder is a production run for a quantity of a product.
type BuildOrder struct {
	ID           int         `json:"id"`
	BuildNumber  string      `json:"build_number"`
	ProductName  string      `json:"product_name"`
	Quantity     int64       `json:"quantity"`
	Status       BuildStatus `json:"status"`
	BOMVersion   *string     `json:"bom_version,omitempty"`
	PlannedStart *time.Time  `json:"planned_start,omitempty"`
	ActualStart  *time.Time  `json:"actual_start,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// MaterialHold is a live reservation held by a build order against one
// stock record.
type MaterialHold struct {
	ComponentID int    `json:"component_id"`
	PartNumber  string `json:"part_number"`
	LocationID  int    `json:"location_id"`
	Qty         int64  `json:"qty"`
}

// BuildOrderService provides the build order lifecycle and its material
// reservation side effects.
type BuildOrderService interface {
	// Create creates a planned build with a generated build number. The
	// number sequence is scoped per product and year.
	Create(ctx context.Context, productName string, quantity int64,
		plannedStart *time.Time, bomVersion *string, notes string) (*BuildOrder, error)

	// UpdateStatus moves the build along the lifecycle graph, applying side
	// effects on entry: materials_reserved reserves BOM material, stepping
	// back to planned or cancelling releases it, the first in_progress
	// stamps actual_start, complete consumes the held material and stamps
	// completed_at. A disallowed edge returns InvalidTransitionError.
	UpdateStatus(ctx context.Context, buildID int, to BuildStatus, actor string) (*BuildOrder, error)

	// ReserveMaterials is the planned → materials_reserved transition:
	// one transaction reserving quantity_per_unit × quantity for every
	// required BOM entry, across locations. InsufficientStockError aborts
	// the whole reservation.
	ReserveMaterials(ctx context.Context, buildID int, actor string) (*BuildOrder, error)

	// Holds returns the build's live reservations, replayed from the
	// transaction log.
	Holds(ctx context.Context, buildID int) ([]MaterialHold, error)

	Get(ctx context.Context, buildID int) (*BuildOrder, error)
	GetByNumber(ctx context.Context, buildNumber string) (*BuildOrder, error)

	// List returns builds, optionally filtered by status (nil = all),
	// newest first.
	List(ctx context.Context, status *BuildStatus) ([]BuildOrder, error)
}
