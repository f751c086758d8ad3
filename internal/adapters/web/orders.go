package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/app"
	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) listPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListPurchaseOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, orders)
}

func (h *Handler) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SupplierCode     string     `json:"supplier_code"`
		ExpectedDelivery *time.Time `json:"expected_delivery"`
		Notes            string     `json:"notes"`
		Lines            []struct {
			PartNumber      string          `json:"part_number"`
			QuantityOrdered int64           `json:"quantity_ordered"`
			UnitPrice       decimal.Decimal `json:"unit_price"`
		} `json:"lines"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.SupplierCode == "" {
		writeError(w, r, "supplier_code is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	req := app.CreatePurchaseOrderRequest{
		SupplierCode:     body.SupplierCode,
		ExpectedDelivery: body.ExpectedDelivery,
		Notes:            body.Notes,
	}
	for _, l := range body.Lines {
		req.Lines = append(req.Lines, app.POLineRequest{
			PartNumber:      l.PartNumber,
			QuantityOrdered: l.QuantityOrdered,
			UnitPrice:       l.UnitPrice,
		})
	}
	po, err := h.svc.CreatePurchaseOrder(r.Context(), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, po)
}

func (h *Handler) getPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	po, err := h.svc.GetPurchaseOrder(r.Context(), chi.URLParam(r, "poNumber"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, po)
}

func (h *Handler) updatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ExpectedDelivery *time.Time       `json:"expected_delivery"`
		Shipping         *decimal.Decimal `json:"shipping"`
		Tax              *decimal.Decimal `json:"tax"`
		Notes            *string          `json:"notes"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	po, err := h.svc.UpdatePurchaseOrder(r.Context(), chi.URLParam(r, "poNumber"), core.POUpdate{
		ExpectedDelivery: body.ExpectedDelivery,
		Shipping:         body.Shipping,
		Tax:              body.Tax,
		Notes:            body.Notes,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, po)
}

func (h *Handler) addPOLine(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PartNumber      string          `json:"part_number"`
		QuantityOrdered int64           `json:"quantity_ordered"`
		UnitPrice       decimal.Decimal `json:"unit_price"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.QuantityOrdered <= 0 {
		writeError(w, r, "quantity_ordered must be positive", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	po, err := h.svc.AddPurchaseOrderLine(r.Context(), chi.URLParam(r, "poNumber"), app.POLineRequest{
		PartNumber:      body.PartNumber,
		QuantityOrdered: body.QuantityOrdered,
		UnitPrice:       body.UnitPrice,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, po)
}

func (h *Handler) updatePOLine(w http.ResponseWriter, r *http.Request) {
	lineNumber, err := strconv.Atoi(chi.URLParam(r, "lineNumber"))
	if err != nil {
		writeError(w, r, "invalid line number", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var body struct {
		QuantityOrdered *int64           `json:"quantity_ordered"`
		UnitPrice       *decimal.Decimal `json:"unit_price"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	po, err := h.svc.UpdatePurchaseOrderLine(r.Context(), chi.URLParam(r, "poNumber"), lineNumber,
		core.POLineUpdate{
			QuantityOrdered: body.QuantityOrdered,
			UnitPrice:       body.UnitPrice,
		})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, po)
}

func (h *Handler) updatePOStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Status == "" {
		writeError(w, r, "status is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	po, err := h.svc.UpdatePurchaseOrderStatus(r.Context(), chi.URLParam(r, "poNumber"), body.Status)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, po)
}

func (h *Handler) receiveShipment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actor    string `json:"actor"`
		Receipts []struct {
			LineID       int    `json:"line_id"`
			Qty          int64  `json:"qty"`
			LocationCode string `json:"location_code"`
		} `json:"receipts"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if len(body.Receipts) == 0 {
		writeError(w, r, "receipts must not be empty", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	req := app.ReceiveShipmentRequest{
		PONumber: chi.URLParam(r, "poNumber"),
		Actor:    body.Actor,
	}
	for _, rc := range body.Receipts {
		req.Receipts = append(req.Receipts, app.ReceiptLine{
			LineID:       rc.LineID,
			Qty:          rc.Qty,
			LocationCode: rc.LocationCode,
		})
	}
	po, err := h.svc.ReceiveShipment(r.Context(), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, po)
}
