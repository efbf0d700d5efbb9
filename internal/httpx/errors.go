package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps business error kinds to HTTP status codes; anything without a
// kind is an infrastructure failure and answers 500 without leaking detail.
func writeErr(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	var code int
	switch kind {
	case apperr.KindNotFound:
		code = http.StatusNotFound
	case apperr.KindInsufficientStock, apperr.KindInvalidStateTransition:
		code = http.StatusConflict
	case apperr.KindInvalidPaymentMethod, apperr.KindInvalidCallback, apperr.KindValidation:
		code = http.StatusBadRequest
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, code, map[string]string{"error": err.Error(), "kind": kind.String()})
}
