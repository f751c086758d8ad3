package app

import "github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"

// ComponentStockSummary is the per-component rollup returned by
// GetComponentStockSummary: totals across locations plus quantity on order.
type ComponentStockSummary struct {
	Component *core.Component   `json:"component"`
	OnHand    int64             `json:"on_hand"`
	Available int64             `json:"available"`
	Incoming  int64             `json:"incoming"`
	Records   []core.StockLevel `json:"records"`
}

// SweepRunResult maps each executed sweep to its report.
type SweepRunResult struct {
	Reports map[string]*core.SweepReport `json:"reports"`
}
