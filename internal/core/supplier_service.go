package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type supplierService struct {
	pool *pgxpool.Pool
}

// NewSupplierService constructs a SupplierService backed by PostgreSQL.
func NewSupplierService(pool *pgxpool.Pool) SupplierService {
	return &supplierService{pool: pool}
}

const supplierColumns = `id, code, name, contact_person, email, phone, address,
       payment_terms_days, lead_time_days, is_active, created_at`

func scanSupplier(row pgx.Row) (*Supplier, error) {
	v := &Supplier{}
	err := row.Scan(
		&v.ID, &v.Code, &v.Name, &v.ContactPerson, &v.Email, &v.Phone, &v.Address,
		&v.PaymentTermsDays, &v.LeadTimeDays, &v.IsActive, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *supplierService) CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error) {
	paymentTerms := input.PaymentTermsDays
	if paymentTerms == 0 {
		paymentTerms = 30
	}
	leadTime := input.LeadTimeDays
	if leadTime == 0 {
		leadTime = 14
	}

	toPtr := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}

	v, err := scanSupplier(s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (code, name, contact_person, email, phone, address,
		                       payment_terms_days, lead_time_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+supplierColumns,
		input.Code, input.Name, toPtr(input.ContactPerson), toPtr(input.Email),
		toPtr(input.Phone), toPtr(input.Address), paymentTerms, leadTime,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateKeyError{Entity: "supplier", Key: input.Code}
		}
		return nil, fmt.Errorf("create supplier %q: %w", input.Code, err)
	}
	return v, nil
}

func (s *supplierService) UpdateSupplier(ctx context.Context, id int, update SupplierUpdate) (*Supplier, error) {
	v, err := scanSupplier(s.pool.QueryRow(ctx, `
		UPDATE suppliers
		SET name               = COALESCE($1, name),
		    contact_person     = COALESCE($2, contact_person),
		    email              = COALESCE($3, email),
		    phone              = COALESCE($4, phone),
		    address            = COALESCE($5, address),
		    payment_terms_days = COALESCE($6, payment_terms_days),
		    lead_time_days     = COALESCE($7, lead_time_days),
		    is_active          = COALESCE($8, is_active)
		WHERE id = $9
		RETURNING `+supplierColumns,
		update.Name, update.ContactPerson, update.Email, update.Phone, update.Address,
		update.PaymentTermsDays, update.LeadTimeDays, update.IsActive, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "supplier", Key: fmt.Sprint(id)}
		}
		return nil, fmt.Errorf("update supplier %d: %w", id, err)
	}
	return v, nil
}

func (s *supplierService) DeactivateSupplier(ctx context.Context, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var code string
	if err := tx.QueryRow(ctx,
		"SELECT code FROM suppliers WHERE id = $1 FOR UPDATE", id,
	).Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Entity: "supplier", Key: fmt.Sprint(id)}
		}
		return fmt.Errorf("fetch supplier %d: %w", id, err)
	}

	var open int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM purchase_orders
		WHERE supplier_id = $1 AND status NOT IN ('received', 'cancelled')`,
		id,
	).Scan(&open); err != nil {
		return fmt.Errorf("count open POs for supplier %d: %w", id, err)
	}
	if open > 0 {
		return &ReferentialIntegrityError{
			Entity:     "supplier",
			Key:        code,
			Dependents: fmt.Sprintf("%d open purchase order(s)", open),
		}
	}

	if _, err := tx.Exec(ctx, "UPDATE suppliers SET is_active = false WHERE id = $1", id); err != nil {
		return fmt.Errorf("deactivate supplier %d: %w", id, err)
	}
	return tx.Commit(ctx)
}

func (s *supplierService) GetSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+supplierColumns+" FROM suppliers WHERE is_active = true ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("get suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var v Supplier
		if err := rows.Scan(
			&v.ID, &v.Code, &v.Name, &v.ContactPerson, &v.Email, &v.Phone, &v.Address,
			&v.PaymentTermsDays, &v.LeadTimeDays, &v.IsActive, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, v)
	}
	return suppliers, rows.Err()
}

func (s *supplierService) GetSupplierByCode(ctx context.Context, code string) (*Supplier, error) {
	v, err := scanSupplier(s.pool.QueryRow(ctx,
		"SELECT "+supplierColumns+" FROM suppliers WHERE code = $1", code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "supplier", Key: code}
		}
		return nil, fmt.Errorf("get supplier %q: %w", code, err)
	}
	return v, nil
}
