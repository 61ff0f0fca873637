package service

import (
	"fmt"

	"github.com/studyconnect/studyconnect-api/internal/models"
)

// RequestAction enumerates the guarded operations on student requests.
type RequestAction string

const (
	ActionCreateRequest RequestAction = "create"
	ActionUpdateRequest RequestAction = "update"
	ActionUpdateStatus  RequestAction = "update-status"
	ActionAssignTutor   RequestAction = "assign-tutor"
	ActionDeleteRequest RequestAction = "delete"
	ActionViewAssigned  RequestAction = "view-assigned"
	ActionViewAvailable RequestAction = "view-available"
)

// Decision is the outcome of a guard check. Reason is only meaningful on
// denial and always names the actor's role, never another user's data.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(format string, args ...interface{}) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// guardRule decides one action. ownerID is the request's student id, empty
// for actions that have no target document (create, the list views).
type guardRule func(actor *models.JWTClaims, ownerID string) Decision

// guardTable keys every authorization rule by action, replacing scattered
// per-handler role checks with a single decision point.
var guardTable = map[RequestAction]guardRule{
	ActionCreateRequest: func(actor *models.JWTClaims, _ string) Decision {
		if actor.Role == models.RoleStudent {
			return allow()
		}
		return deny("only students can create requests (role: %s)", actor.Role)
	},
	ActionUpdateRequest: ownerOrAdmin("not authorized to update this request"),
	ActionDeleteRequest: ownerOrAdmin("not authorized to delete this request"),
	ActionUpdateStatus: func(actor *models.JWTClaims, _ string) Decision {
		if actor.Role == models.RoleAdmin || actor.Role == models.RoleTutor {
			return allow()
		}
		return deny("only admins and tutors can update request status (role: %s)", actor.Role)
	},
	ActionAssignTutor: func(actor *models.JWTClaims, _ string) Decision {
		if actor.Role == models.RoleAdmin {
			return allow()
		}
		return deny("only admins can assign tutors (role: %s)", actor.Role)
	},
	ActionViewAssigned:  tutorOrAdmin(),
	ActionViewAvailable: tutorOrAdmin(),
}

func ownerOrAdmin(message string) guardRule {
	return func(actor *models.JWTClaims, ownerID string) Decision {
		if actor.Role == models.RoleAdmin || actor.UserID == ownerID {
			return allow()
		}
		return deny("%s (role: %s)", message, actor.Role)
	}
}

func tutorOrAdmin() guardRule {
	return func(actor *models.JWTClaims, _ string) Decision {
		if actor.Role == models.RoleAdmin || actor.Role == models.RoleTutor {
			return allow()
		}
		return deny("tutor or admin role required (role: %s)", actor.Role)
	}
}

// Authorize evaluates the guard rule for the given action. A nil actor is
// always denied; unknown actions are denied rather than silently allowed.
func Authorize(action RequestAction, actor *models.JWTClaims, ownerID string) Decision {
	if actor == nil {
		return deny("authentication required")
	}
	rule, ok := guardTable[action]
	if !ok {
		return deny("unknown action %q", action)
	}
	return rule(actor, ownerID)
}
