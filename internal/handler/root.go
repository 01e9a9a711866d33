package handler

import (
	"context"
	"net/http"

	"github.com/sakif/snippets/internal/auth"
)

// HandleRoot returns the discovery document: links to every collection the
// caller can use. Staff additionally see user creation and the audit log.
//
// HTTP: GET /
func HandleRoot(w http.ResponseWriter, r *http.Request) {
	users := map[string]string{
		"list": absoluteURL(r, "/users/"),
	}
	doc := map[string]any{
		"users":    users,
		"snippets": absoluteURL(r, "/snippets/"),
	}

	if actor := auth.UserFromContext(r.Context()); actor != nil && actor.IsStaff {
		users["create"] = absoluteURL(r, "/users/create")
		doc["apiactions"] = absoluteURL(r, "/apiactions/")
	}

	writeJSON(w, http.StatusOK, doc)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth answers 200 while the database responds and 503 otherwise.
//
// HTTP: GET /healthz
func HandleHealth(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
