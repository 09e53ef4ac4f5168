// Package errors defines the JSON error envelope the admin HTTP
// endpoints use. Every non-2xx admin response carries this shape.
package errors

import (
	"encoding/json"
	"net/http"
)

// Common machine-readable error codes.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_ERROR"
)

// HTTPErrorResponse is the envelope for admin API errors.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// HTTPErrorDetail carries the code/message pair inside the envelope.
type HTTPErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondWithError writes the envelope with the given status. Encoding
// failures are ignored: the status line has already been committed.
func RespondWithError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPErrorDetail{Code: code, Message: message},
	})
}
