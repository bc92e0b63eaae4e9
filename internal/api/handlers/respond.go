package handlers

import (
	"encoding/json"
	"net/http"

	"portal/internal/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON request body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.KindInvalidInput, "Invalid request body", nil)
		return false
	}
	return true
}
