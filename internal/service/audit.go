package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/policy"
	"github.com/sakif/snippets/internal/repository"
)

var auditListPolicy = policy.All(policy.IsAuthenticated, policy.IsAdmin)

// AuditLog records privileged actions and serves them back to administrators.
// Records are append-only; there is no update or delete operation.
type AuditLog struct {
	actions repository.ActionRepository
	logger  *slog.Logger
}

// NewAuditLog creates an AuditLog over the given store.
func NewAuditLog(store repository.Store, logger *slog.Logger) *AuditLog {
	return &AuditLog{actions: store.Actions(), logger: logger}
}

// Within returns an AuditLog that writes through tx, so the record commits or
// rolls back together with the action it describes.
func (a *AuditLog) Within(tx repository.Store) *AuditLog {
	return &AuditLog{actions: tx.Actions(), logger: a.logger}
}

// LogAction appends exactly one record: actor performed action on the
// modelName entity identified by modelID.
func (a *AuditLog) LogAction(ctx context.Context, actor *model.User, modelName, modelID string, action model.ActionKind) error {
	if actor == nil {
		return errors.New("service/audit: actor is required")
	}
	if !action.Valid() {
		return apperror.ValidationFailed("action", fmt.Sprintf("%q is not a valid choice.", action))
	}
	if modelName == "" || modelID == "" {
		return errors.New("service/audit: model name and id are required")
	}

	record := &model.APIAction{
		UserID:    actor.ID,
		ModelName: modelName,
		ModelID:   modelID,
		Action:    action,
	}
	if err := a.actions.Append(ctx, record); err != nil {
		return fmt.Errorf("service/audit: %w", err)
	}

	a.logger.Info("audit record appended",
		slog.String("actor", actor.Username),
		slog.String("action", string(action)),
		slog.String("model", modelName),
		slog.String("model_id", modelID),
	)
	return nil
}

// List returns a page of records, newest first. Only administrators may read
// the log.
func (a *AuditLog) List(ctx context.Context, actor *model.User, limit, offset int) ([]model.APIAction, error) {
	if err := policy.Check(auditListPolicy, actor, http.MethodGet, nil); err != nil {
		return nil, err
	}

	actions, err := a.actions.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	return actions, nil
}
