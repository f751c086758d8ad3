package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)

	// Catalog
	r.Get("/api/components", h.listComponents)
	r.Post("/api/components", h.createComponent)
	r.Get("/api/components/categories", h.componentCategories)
	r.Get("/api/components/{partNumber}", h.getComponent)
	r.Patch("/api/components/{partNumber}", h.updateComponent)
	r.Delete("/api/components/{partNumber}", h.deleteComponent)
	r.Get("/api/components/{partNumber}/stock", h.componentStock)
	r.Get("/api/components/{partNumber}/history", h.stockHistory)

	r.Get("/api/locations", h.listLocations)
	r.Post("/api/locations", h.createLocation)
	r.Delete("/api/locations/{code}", h.deleteLocation)

	r.Get("/api/suppliers", h.listSuppliers)
	r.Post("/api/suppliers", h.createSupplier)
	r.Delete("/api/suppliers/{code}", h.deactivateSupplier)

	// Stock ledger
	r.Get("/api/stock", h.stockLevels)
	r.Get("/api/stock/low", h.lowStock)
	r.Post("/api/stock/adjust", h.adjustStock)
	r.Post("/api/stock/reserve", h.reserveStock)
	r.Post("/api/stock/release", h.releaseStock)
	r.Post("/api/stock/count", h.recordCount)
	r.Post("/api/stock/transfer", h.transferStock)
	r.Post("/api/stock/thresholds", h.setThresholds)

	// Purchase orders
	r.Get("/api/purchase-orders", h.listPurchaseOrders)
	r.Post("/api/purchase-orders", h.createPurchaseOrder)
	r.Get("/api/purchase-orders/{poNumber}", h.getPurchaseOrder)
	r.Patch("/api/purchase-orders/{poNumber}", h.updatePurchaseOrder)
	r.Post("/api/purchase-orders/{poNumber}/lines", h.addPOLine)
	r.Patch("/api/purchase-orders/{poNumber}/lines/{lineNumber}", h.updatePOLine)
	r.Post("/api/purchase-orders/{poNumber}/status", h.updatePOStatus)
	r.Post("/api/purchase-orders/{poNumber}/receive", h.receiveShipment)

	// Build orders
	r.Get("/api/build-orders", h.listBuildOrders)
	r.Post("/api/build-orders", h.createBuildOrder)
	r.Get("/api/build-orders/{buildNumber}", h.getBuildOrder)
	r.Post("/api/build-orders/{buildNumber}/status", h.updateBuildStatus)
	r.Post("/api/build-orders/{buildNumber}/reserve", h.reserveBuildMaterials)
	r.Get("/api/build-orders/{buildNumber}/holds", h.buildHolds)

	// Bill of materials
	r.Get("/api/bom", h.listBOMProducts)
	r.Post("/api/bom", h.upsertBOMEntry)
	r.Get("/api/bom/{product}", h.listBOM)
	r.Delete("/api/bom/{product}/{partNumber}", h.removeBOMEntry)
	r.Get("/api/bom/{product}/feasibility", h.checkFeasibility)

	// Alerts and tasks
	r.Get("/api/alerts", h.listAlerts)
	r.Post("/api/alerts", h.createAlert)
	r.Post("/api/alerts/{id}/acknowledge", h.acknowledgeAlert)
	r.Post("/api/alerts/{id}/resolve", h.resolveAlert)
	r.Post("/api/alerts/{id}/dismiss", h.dismissAlert)

	r.Get("/api/tasks", h.listTasks)
	r.Post("/api/tasks", h.createTask)
	r.Patch("/api/tasks/{id}", h.updateTask)

	// Monitor
	r.Post("/api/sweeps/{name}", h.runSweep)

	// Assistant
	r.Post("/api/assistant", h.askAssistant)

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an
// appropriate error response on failure. Returns HTTP 413 when the body
// exceeds the size limit set by RequestBodyLimit middleware; HTTP 400 for all
// other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
