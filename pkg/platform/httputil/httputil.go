// Package httputil centralizes JSON response writing so every handler emits
// the same envelopes.
package httputil

import (
	"encoding/json"
	"net/http"

	derrors "github.com/zavodil/near-social-auth/pkg/domain-errors"
)

// WriteJSON serializes v with the given status. Encoding failures are swallowed
// because headers are already committed by then.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a coded error into the JSON error envelope. Internal
// errors omit the description so storage and transport details never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != derrors.CodeInternal {
		if desc := derrors.DescriptionOf(err); desc != "" {
			body["error_description"] = desc
		}
	}
	WriteJSON(w, derrors.ToHTTPStatus(code), body)
}
