package core

import (
	"errors"
	"fmt"
	"strings"
)

// Typed errors returned by the core services. Adapters match on these with
// errors.As to render precise messages; everything else is wrapped context.

// NotFoundError reports an unknown id or natural key.
type NotFoundError struct {
	Entity string // "component", "purchase order", ...
	Key    string // id or natural key that was looked up
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// DuplicateKeyError reports a part number / code / order number collision.
type DuplicateKeyError struct {
	Entity string
	Key    string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Entity, e.Key)
}

// InvalidTransitionError reports a disallowed state-machine edge. Allowed lists
// the targets reachable from the current state.
type InvalidTransitionError struct {
	Entity  string
	Key     string
	From    string
	To      string
	Allowed []string
}

func (e *InvalidTransitionError) Error() string {
	allowed := "none (terminal state)"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("%s %s: cannot transition %s → %s (allowed: %s)",
		e.Entity, e.Key, e.From, e.To, allowed)
}

// InvalidOperationError reports an operation that would violate a ledger
// invariant, e.g. driving a stock quantity negative.
type InvalidOperationError struct {
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return e.Reason
}

// InsufficientStockError reports a reservation exceeding availability.
type InsufficientStockError struct {
	PartNumber string
	Requested  int64
	Available  int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.PartNumber, e.Requested, e.Available)
}

// OverReceiptError reports an attempt to receive more than ordered-minus-received.
type OverReceiptError struct {
	PONumber        string
	LineNumber      int
	Ordered         int64
	AlreadyReceived int64
	Attempted       int64
}

func (e *OverReceiptError) Error() string {
	return fmt.Sprintf("PO %s line %d: receiving %d would exceed ordered %d (already received %d)",
		e.PONumber, e.LineNumber, e.Attempted, e.Ordered, e.AlreadyReceived)
}

// ReferentialIntegrityError reports a delete blocked by dependent records.
type ReferentialIntegrityError struct {
	Entity     string
	Key        string
	Dependents string // human description of what blocks the delete
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("cannot delete %s %s: referenced by %s", e.Entity, e.Key, e.Dependents)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
