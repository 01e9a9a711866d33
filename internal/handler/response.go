package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so all endpoints share
// one body shape:
//
//	{"error": "validation_error", "message": "...", "fields": {"code": "This field is required."}}
//
// "fields" is present only for validation failures.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/snippets/internal/apperror"
)

// maxBodyBytes bounds request bodies. The largest legal body is a snippet
// with 100000 bytes of code, even fully escaped.
const maxBodyBytes = 1 << 20

// ErrorResponse is the error body returned by every endpoint.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeJSON sends data as JSON. Headers and status go out before the body;
// once the body is written they can no longer change.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status.
//
//	ErrValidation   → 400
//	ErrUnauthorized → 401
//	ErrForbidden    → 403
//	ErrNotFound     → 404
//	ErrConflict     → 409
//	ErrHighlight    → 500
//
// Anything else is an internal error: it is logged and the client gets a
// generic message.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("internal error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"
	var fields map[string]string

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		errorType = "validation_error"
		fields = appErr.Fields
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
		errorType = "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
		errorType = "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
		errorType = "conflict"
	case errors.Is(err, apperror.ErrHighlight):
		errorType = "highlight_error"
		slog.Error("highlight failed", slog.String("error", err.Error()))
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Fields:  fields,
	})
}

// decodeJSON reads a JSON request body into dst. An empty body decodes to
// the zero value, so the field rules report what is missing.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.Malformed(fmt.Sprintf("Request body exceeds %d bytes.", tooLarge.Limit))
	}
	return apperror.Malformed("JSON parse error - " + err.Error())
}

// listParams reads ?limit= and ?offset=. Unparseable values fall back to
// zero, which the repository turns into its defaults.
func listParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	return limit, offset
}

// absoluteURL turns a path into a full URL for the host the client used.
func absoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + path
}

// Options answers OPTIONS with the methods a route accepts.
func Options(methods ...string) http.HandlerFunc {
	allow := strings.Join(methods, ", ")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		writeJSON(w, http.StatusOK, map[string][]string{"methods": methods})
	}
}

// NotFound answers unmatched routes with the standard error body.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: "Not found.",
	})
}

// MethodNotAllowed answers a known route called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:   "method_not_allowed",
		Message: fmt.Sprintf("Method %q not allowed.", r.Method),
	})
}
