// Package httputil centralizes JSON response writing so every endpoint
// produces the same envelopes and internal details never leak to callers.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "github.com/justQrius/companion-network-sub000/pkg/domain-errors"
)

// WriteJSON encodes v with the given status. Encoding failures are ignored:
// by the time Encode runs the header is already committed.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a coded error into a JSON error envelope. Internal
// errors omit the description so storage or dependency details stay inside
// the process.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		body["error_description"] = dErrors.MessageOf(err)
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}
