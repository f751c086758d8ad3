package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/app"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listBuildOrders(w http.ResponseWriter, r *http.Request) {
	builds, err := h.svc.ListBuildOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, builds)
}

func (h *Handler) createBuildOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductName  string     `json:"product_name"`
		Quantity     int64      `json:"quantity"`
		PlannedStart *time.Time `json:"planned_start"`
		BOMVersion   string     `json:"bom_version"`
		Notes        string     `json:"notes"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.ProductName == "" || body.Quantity <= 0 {
		writeError(w, r, "product_name and a positive quantity are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	build, err := h.svc.CreateBuildOrder(r.Context(), app.CreateBuildOrderRequest{
		ProductName:  body.ProductName,
		Quantity:     body.Quantity,
		PlannedStart: body.PlannedStart,
		BOMVersion:   body.BOMVersion,
		Notes:        body.Notes,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, build)
}

func (h *Handler) getBuildOrder(w http.ResponseWriter, r *http.Request) {
	build, err := h.svc.GetBuildOrder(r.Context(), chi.URLParam(r, "buildNumber"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, build)
}

func (h *Handler) updateBuildStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
		Actor  string `json:"actor"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Status == "" {
		writeError(w, r, "status is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	build, err := h.svc.UpdateBuildOrderStatus(r.Context(), chi.URLParam(r, "buildNumber"), body.Status, body.Actor)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, build)
}

func (h *Handler) reserveBuildMaterials(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actor string `json:"actor"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	build, err := h.svc.ReserveBuildMaterials(r.Context(), chi.URLParam(r, "buildNumber"), body.Actor)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, build)
}

func (h *Handler) buildHolds(w http.ResponseWriter, r *http.Request) {
	holds, err := h.svc.GetBuildHolds(r.Context(), chi.URLParam(r, "buildNumber"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, holds)
}

func (h *Handler) listBOMProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListBOMProducts(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, products)
}

func (h *Handler) upsertBOMEntry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductName           string   `json:"product_name"`
		PartNumber            string   `json:"part_number"`
		QuantityPerUnit       int64    `json:"quantity_per_unit"`
		IsOptional            bool     `json:"is_optional"`
		ReferenceDesignators  *string  `json:"reference_designators"`
		BOMVersion            *string  `json:"bom_version"`
		SubstitutePartNumbers []string `json:"substitute_part_numbers"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.ProductName == "" || body.PartNumber == "" || body.QuantityPerUnit <= 0 {
		writeError(w, r, "product_name, part_number and a positive quantity_per_unit are required",
			"BAD_REQUEST", http.StatusBadRequest)
		return
	}
	entry, err := h.svc.UpsertBOMEntry(r.Context(), core.BOMEntryInput{
		ProductName:           body.ProductName,
		PartNumber:            body.PartNumber,
		QuantityPerUnit:       body.QuantityPerUnit,
		IsOptional:            body.IsOptional,
		ReferenceDesignators:  body.ReferenceDesignators,
		BOMVersion:            body.BOMVersion,
		SubstitutePartNumbers: body.SubstitutePartNumbers,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, entry)
}

func (h *Handler) listBOM(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListBOM(r.Context(), chi.URLParam(r, "product"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, entries)
}

func (h *Handler) removeBOMEntry(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RemoveBOMEntry(r.Context(), chi.URLParam(r, "product"), chi.URLParam(r, "partNumber"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) checkFeasibility(w http.ResponseWriter, r *http.Request) {
	qty := int64(1)
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, r, "quantity must be a positive integer", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		qty = parsed
	}
	result, err := h.svc.CheckFeasibility(r.Context(), chi.URLParam(r, "product"), qty)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}
