package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/repository"
)

var _ repository.ActionRepository = (*ActionDB)(nil)

// ActionDB is the append-only audit table. It has no update or delete path.
type ActionDB struct {
	q querier
}

// Append stores one audit record. The id is a ULID, which sorts by creation
// time and breaks ties between records sharing a timestamp.
func (db *ActionDB) Append(ctx context.Context, action *model.APIAction) error {
	action.Timestamp = time.Now().UTC()
	action.ID = ulid.Make().String()

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO api_actions (id, user_id, model_name, model_id, action, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		action.ID,
		action.UserID,
		action.ModelName,
		action.ModelID,
		string(action.Action),
		action.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending %s action on %s %s: %w",
			action.Action, action.ModelName, action.ModelID, err)
	}

	return nil
}

// List returns a page of audit records, newest first.
func (db *ActionDB) List(ctx context.Context, opts repository.ListOptions) ([]model.APIAction, error) {
	limit, offset := clampList(opts)

	rows, err := db.q.QueryContext(ctx,
		`SELECT id, user_id, model_name, model_id, action, timestamp
		 FROM api_actions
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing actions: %w", err)
	}
	defer rows.Close()

	actions := make([]model.APIAction, 0, limit)
	for rows.Next() {
		var a model.APIAction
		var kind string
		if err := rows.Scan(&a.ID, &a.UserID, &a.ModelName, &a.ModelID, &kind, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: scanning action row: %w", err)
		}
		a.Action = model.ActionKind(kind)
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating actions: %w", err)
	}

	return actions, nil
}

// Count returns the number of stored records.
func (db *ActionDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_actions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting actions: %w", err)
	}
	return n, nil
}
