package web

import (
	"net/http"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/app"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) listComponents(w http.ResponseWriter, r *http.Request) {
	components, err := h.svc.SearchComponents(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, components)
}

func (h *Handler) createComponent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PartNumber   string          `json:"part_number"`
		Name         string          `json:"name"`
		Category     string          `json:"category"`
		Description  string          `json:"description"`
		Manufacturer string          `json:"manufacturer"`
		UnitCost     decimal.Decimal `json:"unit_cost"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.PartNumber == "" || body.Name == "" {
		writeError(w, r, "part_number and name are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	component, err := h.svc.CreateComponent(r.Context(), app.CreateComponentRequest{
		PartNumber:   body.PartNumber,
		Name:         body.Name,
		Category:     body.Category,
		Description:  body.Description,
		Manufacturer: body.Manufacturer,
		UnitCost:     body.UnitCost,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, component)
}

func (h *Handler) getComponent(w http.ResponseWriter, r *http.Request) {
	component, err := h.svc.GetComponent(r.Context(), chi.URLParam(r, "partNumber"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, component)
}

func (h *Handler) updateComponent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         *string          `json:"name"`
		Description  *string          `json:"description"`
		Category     *string          `json:"category"`
		Manufacturer *string          `json:"manufacturer"`
		Status       *string          `json:"status"`
		UnitCost     *decimal.Decimal `json:"unit_cost"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	update := core.ComponentUpdate{
		Name:         body.Name,
		Description:  body.Description,
		Category:     body.Category,
		Manufacturer: body.Manufacturer,
		UnitCost:     body.UnitCost,
	}
	if body.Status != nil {
		status := core.ComponentStatus(*body.Status)
		update.Status = &status
	}
	component, err := h.svc.UpdateComponent(r.Context(), chi.URLParam(r, "partNumber"), update)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, component)
}

func (h *Handler) deleteComponent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteComponent(r.Context(), chi.URLParam(r, "partNumber")); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) componentCategories(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.ComponentCategoryCounts(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, counts)
}

func (h *Handler) componentStock(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetComponentStockSummary(r.Context(), chi.URLParam(r, "partNumber"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, summary)
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.svc.ListLocations(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, locations)
}

func (h *Handler) createLocation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code       string `json:"code"`
		Name       string `json:"name"`
		ParentCode string `json:"parent_code"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Code == "" || body.Name == "" {
		writeError(w, r, "code and name are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	location, err := h.svc.CreateLocation(r.Context(), app.CreateLocationRequest{
		Code:       body.Code,
		Name:       body.Name,
		ParentCode: body.ParentCode,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, location)
}

func (h *Handler) deleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteLocation(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.svc.ListSuppliers(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, suppliers)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code             string `json:"code"`
		Name             string `json:"name"`
		ContactName      string `json:"contact_name"`
		Email            string `json:"email"`
		Phone            string `json:"phone"`
		Address          string `json:"address"`
		PaymentTermsDays int    `json:"payment_terms_days"`
		LeadTimeDays     int    `json:"lead_time_days"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Code == "" || body.Name == "" {
		writeError(w, r, "code and name are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	supplier, err := h.svc.CreateSupplier(r.Context(), app.CreateSupplierRequest{
		Code:             body.Code,
		Name:             body.Name,
		ContactName:      body.ContactName,
		Email:            body.Email,
		Phone:            body.Phone,
		Address:          body.Address,
		PaymentTermsDays: body.PaymentTermsDays,
		LeadTimeDays:     body.LeadTimeDays,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, supplier)
}

func (h *Handler) deactivateSupplier(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeactivateSupplier(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
