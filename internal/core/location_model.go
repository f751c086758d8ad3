package core

import (
	"context"
	"time"
)

// Location is a warehouse node in the storage hierarchy. Codes are unique;
// a location may have a parent (building → room → shelf → bin).
type Location struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	ParentID  *int      `json:"parent_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// LocationInput holds the fields required to create a location.
type LocationInput struct {
	Code     string
	Name     string
	ParentID *int
}

// LocationUpdate is a partial update: nil fields are left untouched.
type LocationUpdate struct {
	Name     *string
	ParentID *int
	IsActive *bool
}

// LocationService provides warehouse location operations.
type LocationService interface {
	// CreateLocation inserts a new location. Codes are unique; a collision
	// returns DuplicateKeyError. A non-nil ParentID must reference an
	// existing location.
	CreateLocation(ctx context.Context, input LocationInput) (*Location, error)

	// UpdateLocation applies a partial update. Nil fields are not touched.
	UpdateLocation(ctx context.Context, id int, update LocationUpdate) (*Location, error)

	// DeleteLocation removes a location. Refused with ReferentialIntegrityError
	// while the location holds stock or has child locations.
	DeleteLocation(ctx context.Context, id int) error

	// GetLocation returns a location by internal ID.
	GetLocation(ctx context.Context, id int) (*Location, error)

	// GetLocationByCode returns a location by its natural key.
	GetLocationByCode(ctx context.Context, code string) (*Location, error)

	// ListLocations returns all active locations ordered by code.
	ListLocations(ctx context.Context) ([]Location, error)
}
