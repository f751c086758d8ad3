package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ComponentStatus is the lifecycle state of a catalog entry.
type ComponentStatus string

const (
	ComponentActive        ComponentStatus = "active"
	ComponentDeprecated    ComponentStatus = "deprecated"
	ComponentEOL           ComponentStatus = "eol"
	ComponentPendingReview ComponentStatus = "pending_review"
)

// Component is a catalog entry. The part number is its immutable identity;
// everything else is mutable.
type Component struct {
	ID           int             `json:"id"`
	PartNumber   string          `json:"part_number"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	Category     string          `json:"category"`
	Manufacturer *string         `json:"manufacturer,omitempty"`
	Status       ComponentStatus `json:"status"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ComponentInput holds the fields required to create a component.
type ComponentInput struct {
	PartNumber   string
	Name         string
	Description  string
	Category     string
	Manufacturer string
	UnitCost     decimal.Decimal
}

// ComponentUpdate is a partial update: nil fields are left untouched.
// Field presence is structural (pointer set vs nil), never sentinel values.
type ComponentUpdate struct {
	Name         *string
	Description  *string
	Category     *string
	Manufacturer *string
	Status       *ComponentStatus
	UnitCost     *decimal.Decimal
}

// CategoryCount is one row of the category aggregate report.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ComponentService provides catalog operations for components.
type ComponentService interface {
	// CreateComponent inserts a new catalog entry. Part numbers are unique;
	// a collision returns DuplicateKeyError.
	CreateComponent(ctx context.Context, input ComponentInput) (*Component, error)

	// UpdateComponent applies a partial update. Nil fields are not touched.
	UpdateComponent(ctx context.Context, id int, update ComponentUpdate) (*Component, error)

	// DeleteComponent removes a component from the catalog. Deletion is refused
	// with ReferentialIntegrityError while any stock record or BOM entry
	// references it; transition to deprecated instead.
	DeleteComponent(ctx context.Context, id int) error

	// GetComponent returns a component by internal ID.
	GetComponent(ctx context.Context, id int) (*Component, error)

	// GetComponentByPartNumber returns a component by its natural key.
	GetComponentByPartNumber(ctx context.Context, partNumber string) (*Component, error)

	// SearchComponents matches part number, name, and manufacturer by substring.
	// An empty query returns all components.
	SearchComponents(ctx context.Context, query string) ([]Component, error)

	// CountByCategory returns component counts grouped by category.
	CountByCategory(ctx context.Context) ([]CategoryCount, error)
}
