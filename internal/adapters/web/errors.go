package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeCoreError maps the core error taxonomy onto HTTP statuses. Anything
// untyped is a 500.
func writeCoreError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound     *core.NotFoundError
		duplicate    *core.DuplicateKeyError
		transition   *core.InvalidTransitionError
		invalidOp    *core.InvalidOperationError
		insufficient *core.InsufficientStockError
		overReceipt  *core.OverReceiptError
		refIntegrity *core.ReferentialIntegrityError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &duplicate):
		writeError(w, r, err.Error(), "DUPLICATE_KEY", http.StatusConflict)
	case errors.As(err, &transition):
		writeError(w, r, err.Error(), "INVALID_TRANSITION", http.StatusConflict)
	case errors.As(err, &refIntegrity):
		writeError(w, r, err.Error(), "REFERENTIAL_INTEGRITY", http.StatusConflict)
	case errors.As(err, &invalidOp):
		writeError(w, r, err.Error(), "INVALID_OPERATION", http.StatusUnprocessableEntity)
	case errors.As(err, &insufficient):
		writeError(w, r, err.Error(), "INSUFFICIENT_STOCK", http.StatusUnprocessableEntity)
	case errors.As(err, &overReceipt):
		writeError(w, r, err.Error(), "OVER_RECEIPT", http.StatusUnprocessableEntity)
	default:
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONStatus writes a JSON response with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
