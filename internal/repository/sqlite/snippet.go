package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// If *SnippetDB stops implementing repository.SnippetRepository the build
// fails here rather than at the call site that needs it.
var _ repository.SnippetRepository = (*SnippetDB)(nil)

// SnippetDB stores snippets.
type SnippetDB struct {
	q querier
}

// snippetColumns is shared by every SELECT so Scan order stays in one place.
// owner username comes from a join; ownership lives only in owner_id.
const snippetColumns = `
	s.id, s.created_at, s.title, s.code, s.linenos, s.language, s.style,
	s.owner_id, u.username, s.highlighted`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner, s *model.Snippet) error {
	return row.Scan(
		&s.ID, &s.Created, &s.Title, &s.Code, &s.LineNos, &s.Language, &s.Style,
		&s.OwnerID, &s.OwnerUsername, &s.Highlighted,
	)
}

// Create inserts a new snippet, assigning its ID and creation time.
//
// ID GENERATION WITH xid:
// 20 chars, URL-safe and sortable by creation time, e.g. "cv37rs3pp9olc6atsptg".
func (db *SnippetDB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	snippet.Created = time.Now().UTC()

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO snippets (id, created_at, title, code, linenos, language, style, owner_id, highlighted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		snippet.Created,
		snippet.Title,
		snippet.Code,
		snippet.LineNos,
		snippet.Language,
		snippet.Style,
		snippet.OwnerID,
		snippet.Highlighted,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	return nil
}

// GetByID retrieves a single snippet by its ID.
// sql.ErrNoRows becomes apperror.ErrNotFound so the handler can answer 404.
func (db *SnippetDB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	var snippet model.Snippet

	err := scanSnippet(db.q.QueryRowContext(ctx,
		`SELECT `+snippetColumns+`
		 FROM snippets s
		 JOIN users u ON u.id = s.owner_id
		 WHERE s.id = ?`,
		id,
	), &snippet)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}

	return &snippet, nil
}

// List returns a page of snippets, oldest first.
//
// defer rows.Close() is not optional: an open *sql.Rows pins a pooled
// connection until it is closed.
func (db *SnippetDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	limit, offset := clampList(opts)

	rows, err := db.q.QueryContext(ctx,
		`SELECT `+snippetColumns+`
		 FROM snippets s
		 JOIN users u ON u.id = s.owner_id
		 ORDER BY s.created_at ASC, s.id ASC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		var s model.Snippet
		if err := scanSnippet(rows, &s); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	return snippets, nil
}

// ListIDsByOwner returns the ids of every snippet ownerID created, oldest first.
func (db *SnippetDB) ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT id FROM snippets WHERE owner_id = ? ORDER BY created_at ASC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippet ids for %s: %w", ownerID, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippet ids: %w", err)
	}

	return ids, nil
}

// Update rewrites every mutable column, including the recomputed
// highlighted document, in one statement. id, created_at and owner_id are
// never touched.
func (db *SnippetDB) Update(ctx context.Context, snippet *model.Snippet) error {
	result, err := db.q.ExecContext(ctx,
		`UPDATE snippets
		 SET title = ?, code = ?, linenos = ?, language = ?, style = ?, highlighted = ?
		 WHERE id = ?`,
		snippet.Title,
		snippet.Code,
		snippet.LineNos,
		snippet.Language,
		snippet.Style,
		snippet.Highlighted,
		snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", snippet.ID)
	}

	return nil
}

// Delete removes a snippet by its ID.
func (db *SnippetDB) Delete(ctx context.Context, id string) error {
	result, err := db.q.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", id)
	}

	return nil
}
