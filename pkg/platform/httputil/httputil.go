// Package httputil provides the JSON response and request-decoding helpers
// shared by all HTTP handlers.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "onramp/pkg/domain-errors"
)

// ErrorResponse is the wire shape for all error responses.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON serializes v with the given status. Encoding failures are
// unrecoverable at this point (headers already sent) and are ignored.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its HTTP status and writes the caller-safe
// message. Wrapped causes never reach the client.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, dErrors.HTTPStatus(err), ErrorResponse{
		Error:            string(dErrors.CodeOf(err)),
		ErrorDescription: dErrors.MessageOf(err),
	})
}

// Preparer is implemented by request DTOs that normalize and validate
// themselves after decoding.
type Preparer interface {
	Normalize()
	Validate() error
}

// DecodeAndPrepare decodes the request body into T, then normalizes and
// validates it. On failure it writes the error response and returns ok=false;
// handlers just return.
func DecodeAndPrepare[T any, PT interface {
	*T
	Preparer
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (PT, bool) {
	req := PT(new(T))
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "invalid request body",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "request validation failed",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
