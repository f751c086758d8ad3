package web

import (
	"context"
	"net/http"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/app"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.svc.GetStockLevels(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, levels)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	levels, err := h.svc.LowStockReport(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, levels)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PartNumber   string `json:"part_number"`
		LocationCode string `json:"location_code"`
		Delta        int64  `json:"delta"`
		TxType       string `json:"tx_type"`
		Reason       string `json:"reason"`
		Actor        string `json:"actor"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Delta == 0 {
		writeError(w, r, "delta must be non-zero", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.AdjustStock(r.Context(), app.AdjustStockRequest{
		PartNumber:   body.PartNumber,
		LocationCode: body.LocationCode,
		Delta:        body.Delta,
		TxType:       body.TxType,
		Reason:       body.Reason,
		Actor:        body.Actor,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) reserveStock(w http.ResponseWriter, r *http.Request) {
	h.holdStock(w, r, h.svc.ReserveStock)
}

func (h *Handler) releaseStock(w http.ResponseWriter, r *http.Request) {
	h.holdStock(w, r, h.svc.ReleaseStock)
}

func (h *Handler) holdStock(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, req app.HoldStockRequest) (*core.AdjustResult, error)) {
	var body struct {
		PartNumber   string `json:"part_number"`
		LocationCode string `json:"location_code"`
		Qty          int64  `json:"qty"`
		Actor        string `json:"actor"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Qty <= 0 {
		writeError(w, r, "qty must be positive", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := op(r.Context(), app.HoldStockRequest{
		PartNumber:   body.PartNumber,
		LocationCode: body.LocationCode,
		Qty:          body.Qty,
		Actor:        body.Actor,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) recordCount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PartNumber   string `json:"part_number"`
		LocationCode string `json:"location_code"`
		CountedQty   int64  `json:"counted_qty"`
		Counter      string `json:"counter"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.RecordStockCount(r.Context(), app.StockCountRequest{
		PartNumber:   body.PartNumber,
		LocationCode: body.LocationCode,
		CountedQty:   body.CountedQty,
		Counter:      body.Counter,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) transferStock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PartNumber   string `json:"part_number"`
		FromLocation string `json:"from_location"`
		ToLocation   string `json:"to_location"`
		Qty          int64  `json:"qty"`
		Actor        string `json:"actor"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Qty <= 0 {
		writeError(w, r, "qty must be positive", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	err := h.svc.TransferStock(r.Context(), app.TransferStockRequest{
		PartNumber:   body.PartNumber,
		FromLocation: body.FromLocation,
		ToLocation:   body.ToLocation,
		Qty:          body.Qty,
		Actor:        body.Actor,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setThresholds(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PartNumber   string `json:"part_number"`
		LocationCode string `json:"location_code"`
		MinimumStock *int64 `json:"minimum_stock"`
		MaximumStock *int64 `json:"maximum_stock"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	record, err := h.svc.SetStockThresholds(r.Context(), body.PartNumber, body.LocationCode,
		core.StockThresholds{MinimumStock: body.MinimumStock, MaximumStock: body.MaximumStock})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, record)
}

func (h *Handler) stockHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.StockHistory(r.Context(),
		chi.URLParam(r, "partNumber"), r.URL.Query().Get("location"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, history)
}
