package model

import "time"

// ActionKind is the kind of privileged mutation an audit record describes.
type ActionKind string

const (
	ActionCreate  ActionKind = "create"
	ActionUpdate  ActionKind = "update"
	ActionDestroy ActionKind = "destroy"
)

// Valid reports whether k is one of the three recorded kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionCreate, ActionUpdate, ActionDestroy:
		return true
	}
	return false
}

// EntityUser is the model name recorded for user-management actions.
const EntityUser = "User"

// APIAction is one immutable audit record: who did what to which entity.
// Records are appended and never updated or deleted.
type APIAction struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user"`
	ModelName string     `json:"model_name"`
	ModelID   string     `json:"model_id"`
	Action    ActionKind `json:"action"`
	Timestamp time.Time  `json:"timestamp"`
}
