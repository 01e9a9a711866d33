// Package policy holds the access rules for the API as small pure predicates.
//
// A Predicate looks only at the actor, the HTTP method and (for object-level
// checks) the target. Endpoints compose predicates with All, which is a
// logical AND. A nil actor is an anonymous request.
package policy

import (
	"net/http"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/model"
)

// Owned is implemented by records that belong to a single user.
type Owned interface {
	OwnedBy() string
}

// Predicate reports whether actor may perform method on target. target is
// nil for collection-level checks.
type Predicate func(actor *model.User, method string, target Owned) bool

// SafeMethod reports whether method is read-only.
func SafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// StaffOrReadOnly lets anyone read and only staff write.
func StaffOrReadOnly(actor *model.User, method string, _ Owned) bool {
	if SafeMethod(method) {
		return true
	}
	return actor != nil && actor.IsStaff
}

// OwnerOrReadOnly lets anyone read and only the owner of target write.
// Without a target there is nothing to own, so it passes.
func OwnerOrReadOnly(actor *model.User, method string, target Owned) bool {
	if SafeMethod(method) || target == nil {
		return true
	}
	return actor != nil && target.OwnedBy() == actor.ID
}

// IsAuthenticated requires a signed-in actor for every method.
func IsAuthenticated(actor *model.User, _ string, _ Owned) bool {
	return actor != nil
}

// IsAuthenticatedOrReadOnly lets anonymous actors read only.
func IsAuthenticatedOrReadOnly(actor *model.User, method string, _ Owned) bool {
	return SafeMethod(method) || actor != nil
}

// IsAdmin requires the administrative privilege, which is stricter than staff.
func IsAdmin(actor *model.User, _ string, _ Owned) bool {
	return actor != nil && actor.IsSuperuser
}

// All is the conjunction of preds. It short-circuits on the first denial.
func All(preds ...Predicate) Predicate {
	return func(actor *model.User, method string, target Owned) bool {
		for _, p := range preds {
			if !p(actor, method, target) {
				return false
			}
		}
		return true
	}
}

// Check evaluates p and turns a denial into a blanket permission error. The
// error never says which rule failed.
func Check(p Predicate, actor *model.User, method string, target Owned) error {
	if p(actor, method, target) {
		return nil
	}
	return apperror.Forbidden("You do not have permission to perform this action.")
}
