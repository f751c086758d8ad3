package core

import (
	"context"
	"time"
)

// Supplier represents a parts vendor.
type Supplier struct {
	ID               int       `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	ContactPerson    *string   `json:"contact_person,omitempty"`
	Email            *string   `json:"email,omitempty"`
	Phone            *string   `json:"phone,omitempty"`
	Address          *string   `json:"address,omitempty"`
	PaymentTermsDays int       `json:"payment_terms_days"`
	LeadTimeDays     int       `json:"lead_time_days"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

// SupplierInput holds the fields required to create a new supplier.
type SupplierInput struct {
	Code             string
	Name             string
	ContactPerson    string
	Email            string
	Phone            string
	Address          string
	PaymentTermsDays int
	LeadTimeDays     int
}

// SupplierUpdate is a partial update: nil fields are left untouched.
type SupplierUpdate struct {
	Name             *string
	ContactPerson    *string
	Email            *string
	Phone            *string
	Address          *string
	PaymentTermsDays *int
	LeadTimeDays     *int
	IsActive         *bool
}

// SupplierService provides supplier master data operations.
type SupplierService interface {
	// CreateSupplier creates a new supplier record.
	CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error)

	// UpdateSupplier applies a partial update. Nil fields are not touched.
	UpdateSupplier(ctx context.Context, id int, update SupplierUpdate) (*Supplier, error)

	// DeactivateSupplier soft-deletes a supplier. Refused with
	// ReferentialIntegrityError while the supplier has open purchase orders.
	DeactivateSupplier(ctx context.Context, id int) error

	// GetSuppliers returns all active suppliers ordered by code.
	GetSuppliers(ctx context.Context) ([]Supplier, error)

	// GetSupplierByCode returns a supplier by its code.
	GetSupplierByCode(ctx context.Context, code string) (*Supplier, error)
}
