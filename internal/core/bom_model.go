package core

import "context"

// BOMEntry is one line of a product's bill of materials.
type BOMEntry struct {
	ID                    int      `json:"id"`
	ProductName           string   `json:"product_name"`
	ComponentID           int      `json:"component_id"`
	PartNumber            string   `json:"part_number"`
	ComponentName         string   `json:"component_name"`
	QuantityPerUnit       int64    `json:"quantity_per_unit"`
	IsOptional            bool     `json:"is_optional"`
	ReferenceDesignators  *string  `json:"reference_designators,omitempty"`
	BOMVersion            *string  `json:"bom_version,omitempty"`
	SubstitutePartNumbers []string `json:"substitute_part_numbers"`
}

// BOMEntryInput holds the fields for creating or updating a BOM entry.
// The (product, part number) pair is the natural key.
type BOMEntryInput struct {
	ProductName           string
	PartNumber            string
	QuantityPerUnit       int64
	IsOptional            bool
	ReferenceDesignators  *string
	BOMVersion            *string
	SubstitutePartNumbers []string
}

// BOMLine is the feasibility input for one BOM entry: its per-unit
// requirement and the stock currently available for it.
type BOMLine struct {
	ComponentID     int
	PartNumber      string
	ComponentName   string
	QuantityPerUnit int64
	IsOptional      bool
	Available       int64
}

// FeasibilityItem is the per-component verdict of a feasibility check.
type FeasibilityItem struct {
	ComponentID     int    `json:"component_id"`
	PartNumber      string `json:"part_number"`
	ComponentName   string `json:"component_name"`
	QuantityPerUnit int64  `json:"quantity_per_unit"`
	IsOptional      bool   `json:"is_optional"`
	TotalRequired   int64  `json:"total_required"`
	TotalAvailable  int64  `json:"total_available"`
	Shortage        int64  `json:"shortage"`
}

// FeasibilityResult is the outcome of CheckFeasibility.
type FeasibilityResult struct {
	ProductName string            `json:"product_name"`
	Quantity    int64             `json:"quantity"`
	Feasible    bool              `json:"feasible"`
	Items       []FeasibilityItem `json:"items"`
}

// EvaluateFeasibility derives the feasibility verdict from BOM lines and a
// target quantity. For each line the requirement is quantity_per_unit times
// the target, and the shortage is whatever availability fails to cover.
// Optional lines are reported but never block; feasible means no required
// line has a shortage. Pure: all stock reads happen before this.
func EvaluateFeasibility(productName string, quantity int64, lines []BOMLine) *FeasibilityResult {
	result := &FeasibilityResult{
		ProductName: productName,
		Quantity:    quantity,
		Feasible:    true,
	}
	for _, line := range lines {
		required := line.QuantityPerUnit * quantity
		shortage := required - line.Available
		if shortage < 0 {
			shortage = 0
		}
		result.Items = append(result.Items, FeasibilityItem{
			ComponentID:     line.ComponentID,
			PartNumber:      line.PartNumber,
			ComponentName:   line.ComponentName,
			QuantityPerUnit: line.QuantityPerUnit,
			IsOptional:      line.IsOptional,
			TotalRequired:   required,
			TotalAvailable:  line.Available,
			Shortage:        shortage,
		})
		if shortage > 0 && !line.IsOptional {
			result.Feasible = false
		}
	}
	return result
}

// BOMService manages bills of materials and answers feasibility queries.
type BOMService interface {
	// UpsertEntry creates or replaces the entry for (product, part number),
	// substitutes included.
	UpsertEntry(ctx context.Context, input BOMEntryInput) (*BOMEntry, error)

	// RemoveEntry deletes the entry for (product, part number).
	RemoveEntry(ctx context.Context, productName, partNumber string) error

	// ListEntries returns a product's BOM ordered by part number.
	ListEntries(ctx context.Context, productName string) ([]BOMEntry, error)

	// Products returns the distinct product names that have a BOM.
	Products(ctx context.Context) ([]string, error)

	// CheckFeasibility reports whether quantity units of the product can be
	// built from current stock. Availability nets out reservations and sums
	// across all locations. Read-only: no stock is reserved or mutated.
	CheckFeasibility(ctx context.Context, productName string, quantity int64) (*FeasibilityResult, error)
}
