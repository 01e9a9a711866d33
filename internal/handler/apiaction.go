package handler

import (
	"net/http"

	"github.com/sakif/snippets/internal/auth"
	"github.com/sakif/snippets/internal/service"
)

// APIActionHandler serves the audit log to administrators.
type APIActionHandler struct {
	audit *service.AuditLog
}

// NewAPIActionHandler creates an APIActionHandler reading from audit.
func NewAPIActionHandler(audit *service.AuditLog) *APIActionHandler {
	return &APIActionHandler{audit: audit}
}

// HandleList returns audit records, newest first.
//
// HTTP: GET /apiactions/
func (h *APIActionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)

	actions, err := h.audit.List(r.Context(), auth.UserFromContext(r.Context()), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}
