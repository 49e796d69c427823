package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// messageResponse is the plain {"message": ...} envelope used by the
// account and conversation endpoints.
type messageResponse struct {
	Message string `json:"message"`
}

// decodeJSON decodes the request body into v, rejecting unknown noise
// only loosely: clients send small fixed payloads.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
