// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces policy, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services take the acting user as an argument (nil for anonymous requests)
// and check the access policy themselves, so the same rules apply whether a
// call comes from an HTTP handler, the CLI or a test.
//
// DEPENDENCY INJECTION:
// Every service takes repository.Store (an interface), never *sqlite.DB.
// Tests pass an in-memory fake; main wires the SQLite implementation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/highlight"
	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/policy"
	"github.com/sakif/snippets/internal/repository"
)

// Access rules for the snippet endpoints.
var (
	snippetListPolicy   = policy.IsAuthenticatedOrReadOnly
	snippetObjectPolicy = policy.All(policy.IsAuthenticatedOrReadOnly, policy.OwnerOrReadOnly)
)

// SnippetInput carries the client-writable snippet fields. A nil pointer
// means the field was not sent: on create the default applies, on update the
// stored value is kept.
type SnippetInput struct {
	Title    *string `json:"title" validate:"omitnil,max=100"`
	Code     *string `json:"code" validate:"omitnil,maxbytes=100000"`
	LineNos  *bool   `json:"linenos"`
	Language *string `json:"language" validate:"omitnil,language"`
	Style    *string `json:"style" validate:"omitnil,style"`
}

// validate runs the field rules. code is required unless partial.
func (in *SnippetInput) validate(partial bool) error {
	fields, err := fieldErrors(in)
	if err != nil {
		return err
	}
	if !partial && in.Code == nil {
		if fields == nil {
			fields = make(map[string]string, 1)
		}
		fields["code"] = "This field is required."
	}
	if len(fields) > 0 {
		return apperror.Invalid(fields)
	}
	return nil
}

// apply copies every field that was sent onto s.
func (in *SnippetInput) apply(s *model.Snippet) {
	if in.Title != nil {
		s.Title = *in.Title
	}
	if in.Code != nil {
		s.Code = *in.Code
	}
	if in.LineNos != nil {
		s.LineNos = *in.LineNos
	}
	if in.Language != nil {
		s.Language = *in.Language
	}
	if in.Style != nil {
		s.Style = *in.Style
	}
}

// SnippetService handles business logic for code snippets.
//
// Every write goes through the same pipeline:
//
//	policy → validate → apply → render highlighted HTML → persist
//
// The render stage runs on every save, including edits that only touch
// title or linenos, so the stored document always matches the other fields.
// If rendering fails nothing is written.
type SnippetService struct {
	store       repository.Store
	highlighter highlight.Highlighter
	logger      *slog.Logger
}

// NewSnippetService creates a new SnippetService.
func NewSnippetService(store repository.Store, highlighter highlight.Highlighter, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		store:       store,
		highlighter: highlighter,
		logger:      logger,
	}
}

// Create validates and saves a new snippet owned by actor.
func (s *SnippetService) Create(ctx context.Context, actor *model.User, in SnippetInput) (*model.Snippet, error) {
	if err := policy.Check(snippetListPolicy, actor, http.MethodPost, nil); err != nil {
		return nil, err
	}
	if err := in.validate(false); err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		Language: model.DefaultLanguage,
		Style:    model.DefaultStyle,
		OwnerID:  actor.ID,
	}
	in.apply(snippet)

	if err := s.render(snippet); err != nil {
		return nil, err
	}

	if err := s.store.Snippets().Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("owner", actor.Username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}
	snippet.OwnerUsername = actor.Username

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("owner", actor.Username),
		slog.String("language", snippet.Language),
	)

	return snippet, nil
}

// Get retrieves a snippet by its ID. Reads are open to everyone.
func (s *SnippetService) Get(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.NotFound("snippet", id)
	}
	return s.store.Snippets().GetByID(ctx, id)
}

// List returns a page of snippets, oldest first. The repository clamps limit
// and offset.
func (s *SnippetService) List(ctx context.Context, limit, offset int) ([]model.Snippet, error) {
	snippets, err := s.store.Snippets().List(ctx, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	return snippets, nil
}

// Highlighted returns the stored HTML document for a snippet.
func (s *SnippetService) Highlighted(ctx context.Context, id string) (string, error) {
	snippet, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return snippet.Highlighted, nil
}

// Update modifies an existing snippet.
//
// With partial == false (PUT) code must be present; other omitted fields keep
// their stored values. With partial == true (PATCH) every field is optional.
//
// Order of checks: an anonymous caller is refused before the lookup, so it
// cannot probe which ids exist; the owner check needs the stored snippet.
func (s *SnippetService) Update(ctx context.Context, actor *model.User, id string, in SnippetInput, partial bool) (*model.Snippet, error) {
	method := http.MethodPut
	if partial {
		method = http.MethodPatch
	}

	if err := policy.Check(snippetListPolicy, actor, method, nil); err != nil {
		return nil, err
	}

	snippet, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(snippetObjectPolicy, actor, method, snippet); err != nil {
		return nil, err
	}

	if err := in.validate(partial); err != nil {
		return nil, err
	}
	in.apply(snippet)

	if err := s.render(snippet); err != nil {
		return nil, err
	}

	if err := s.store.Snippets().Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", snippet.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated",
		slog.String("id", snippet.ID),
		slog.Bool("partial", partial),
	)

	return snippet, nil
}

// Delete removes a snippet. Only its owner may delete it.
func (s *SnippetService) Delete(ctx context.Context, actor *model.User, id string) error {
	if err := policy.Check(snippetListPolicy, actor, http.MethodDelete, nil); err != nil {
		return err
	}

	snippet, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Check(snippetObjectPolicy, actor, http.MethodDelete, snippet); err != nil {
		return err
	}

	if err := s.store.Snippets().Delete(ctx, snippet.ID); err != nil {
		return err
	}

	s.logger.Info("snippet deleted", slog.String("id", snippet.ID))
	return nil
}

// render recomputes snippet.Highlighted from the other fields.
func (s *SnippetService) render(snippet *model.Snippet) error {
	out, err := s.highlighter.Highlight(snippet.Code, snippet.Language, snippet.Style, highlight.Options{
		LineNumbers: snippet.LineNos,
		Title:       snippet.Title,
	})
	if err != nil {
		s.logger.Warn("highlighting failed",
			slog.String("language", snippet.Language),
			slog.String("style", snippet.Style),
			slog.String("error", err.Error()),
		)
		return apperror.HighlightFailed(err)
	}
	snippet.Highlighted = out
	return nil
}
