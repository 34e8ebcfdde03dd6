package auth

import (
	"fmt"

	"tablero/internal/domain"
)

// ForbiddenError indicates the actor's role does not allow an action.
type ForbiddenError struct {
	Action string
	Role   string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("role %s cannot %s", e.Role, e.Action)
}

// CanImport reports whether the role may upload report files. allowedRoles
// comes from config; empty falls back to the standard three.
func CanImport(actor domain.Actor, allowedRoles []string) error {
	if len(allowedRoles) == 0 {
		allowedRoles = []string{domain.RoleAdmin, domain.RoleAreaManager, domain.RoleAnalyst}
	}
	for _, r := range allowedRoles {
		if actor.Role == r {
			return nil
		}
	}
	return ForbiddenError{Action: "import", Role: actor.Role}
}

// CanDeleteHistory reports whether the actor may remove a ledger entry.
// Admins may delete any entry; area managers only entries whose areas all
// match their own area.
func CanDeleteHistory(actor domain.Actor, entry domain.ImportHistoryEntry) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleAreaManager:
		if actor.Area == "" || len(entry.Areas) == 0 {
			return ForbiddenError{Action: "delete import history", Role: actor.Role}
		}
		for _, area := range entry.Areas {
			if area != actor.Area {
				return ForbiddenError{Action: "delete import history", Role: actor.Role}
			}
		}
		return nil
	default:
		return ForbiddenError{Action: "delete import history", Role: actor.Role}
	}
}

// CanDeleteData reports whether the actor may remove the rows an import
// created. Admin only.
func CanDeleteData(actor domain.Actor) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	return ForbiddenError{Action: "delete imported data", Role: actor.Role}
}

// CanPurge reports whether the actor may clear the whole import ledger.
// Admin only.
func CanPurge(actor domain.Actor) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	return ForbiddenError{Action: "purge import history", Role: actor.Role}
}
