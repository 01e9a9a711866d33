package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippets/internal/auth"
	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/service"
)

// SnippetHandler serves the snippet collection, single snippets and their
// highlighted HTML.
//
// The handler only parses HTTP and shapes responses. Ownership, validation
// and rendering all happen in service.SnippetService.
type SnippetHandler struct {
	snippets *service.SnippetService
	logger   *slog.Logger
}

// NewSnippetHandler creates a new SnippetHandler.
func NewSnippetHandler(snippets *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, logger: logger}
}

// snippetResponse is the JSON shape of a snippet: the model's fields plus
// hyperlinks to itself and to its highlighted document.
type snippetResponse struct {
	URL string `json:"url"`
	*model.Snippet
	Highlight string `json:"highlight"`
}

func snippetPath(id string) string { return "/snippets/" + id + "/" }

func newSnippetResponse(r *http.Request, s *model.Snippet) snippetResponse {
	return snippetResponse{
		URL:       absoluteURL(r, snippetPath(s.ID)),
		Snippet:   s,
		Highlight: absoluteURL(r, snippetPath(s.ID)+"highlight/"),
	}
}

// HandleList returns a page of snippets, oldest first.
//
// HTTP: GET /snippets/?limit=20&offset=0
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)

	snippets, err := h.snippets.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]snippetResponse, 0, len(snippets))
	for i := range snippets {
		out = append(out, newSnippetResponse(r, &snippets[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate saves a new snippet owned by the caller.
//
// HTTP: POST /snippets/
// REQUEST BODY: {"title": "hello", "code": "print('hi')", "linenos": true, "language": "python", "style": "friendly"}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.SnippetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Create(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", absoluteURL(r, snippetPath(snippet.ID)))
	writeJSON(w, http.StatusCreated, newSnippetResponse(r, snippet))
}

// HandleGet returns a single snippet.
//
// HTTP: GET /snippets/{id}/
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSnippetResponse(r, snippet))
}

// HandleUpdate replaces (PUT) or patches (PATCH) a snippet.
//
// HTTP: PUT   /snippets/{id}/  code required, omitted fields keep their values
// HTTP: PATCH /snippets/{id}/  every field optional
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.SnippetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	partial := r.Method == http.MethodPatch
	snippet, err := h.snippets.Update(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"), in, partial)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSnippetResponse(r, snippet))
}

// HandleDelete removes a snippet.
//
// HTTP: DELETE /snippets/{id}/ → 204 No Content
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.snippets.Delete(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHighlight returns the stored HTML document as-is, without a JSON
// envelope.
//
// HTTP: GET /snippets/{id}/highlight/
func (h *SnippetHandler) HandleHighlight(w http.ResponseWriter, r *http.Request) {
	doc, err := h.snippets.Highlighted(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, doc); err != nil {
		h.logger.Warn("writing highlighted document", slog.String("error", err.Error()))
	}
}
