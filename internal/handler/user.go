package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippets/internal/auth"
	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/service"
)

// UserHandler serves the read-only user resource and the staff-only
// user-creation endpoint.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// userResponse never carries the password hash: model.User hides it from
// JSON.
type userResponse struct {
	URL string `json:"url"`
	*model.User
	Snippets []string `json:"snippets"`
}

func userPath(id string) string { return "/users/" + id + "/" }

func newUserResponse(r *http.Request, user *model.User, snippetIDs []string) userResponse {
	links := make([]string, 0, len(snippetIDs))
	for _, id := range snippetIDs {
		links = append(links, absoluteURL(r, snippetPath(id)))
	}
	return userResponse{
		URL:      absoluteURL(r, userPath(user.ID)),
		User:     user,
		Snippets: links,
	}
}

// HandleList returns a page of users with links to their snippets.
//
// HTTP: GET /users/
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)

	profiles, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]userResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, newUserResponse(r, p.User, p.SnippetIDs))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet returns one user.
//
// HTTP: GET /users/{id}/
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(r, profile.User, profile.SnippetIDs))
}

// HandleCreate registers a new account. Staff only; every success is
// recorded in the audit log.
//
// HTTP: POST /users/create
// REQUEST BODY: {"username": "newuser", "password": "pw", "email": "n@e.com", "is_staff": false}
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.UserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Create(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", absoluteURL(r, userPath(user.ID)))
	writeJSON(w, http.StatusCreated, newUserResponse(r, user, nil))
}
