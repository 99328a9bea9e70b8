package user

import (
	"fmt"

	"github.com/frahmantamala/admin-console/internal/backend"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
)

// Account is one row of the user table shown to admins.
type Account struct {
	UserID     int64               `json:"user_id"`
	Username   string              `json:"username"`
	Permission coreUser.Permission `json:"permission"`
}

func FromPermissionRecord(r backend.UserPermissionRecord) Account {
	return Account{
		UserID:     r.UserID,
		Username:   r.Username,
		Permission: coreUser.Permission(r.PermissionType),
	}
}

// DeleteStep names one stage of the delete cascade, in execution order.
type DeleteStep string

const (
	DeleteStepAudit      DeleteStep = "audit"
	DeleteStepPermission DeleteStep = "permission"
	DeleteStepUser       DeleteStep = "user"
	DeleteStepAuth       DeleteStep = "auth"
)

// DeleteSteps is the cascade order. Earlier steps are not undone when a later one fails.
var DeleteSteps = []DeleteStep{DeleteStepAudit, DeleteStepPermission, DeleteStepUser, DeleteStepAuth}

type DeleteStepError struct {
	Step   DeleteStep
	UserID int64
	Err    error
}

func (e *DeleteStepError) Error() string {
	return fmt.Sprintf("delete user %d: step %s: %v", e.UserID, e.Step, e.Err)
}

func (e *DeleteStepError) Unwrap() error {
	return e.Err
}

func (s DeleteStep) Description() string {
	switch s {
	case DeleteStepAudit:
		return "recording the deletion"
	case DeleteStepPermission:
		return "removing the permission"
	case DeleteStepUser:
		return "removing the user record"
	case DeleteStepAuth:
		return "removing the login identity"
	default:
		return string(s)
	}
}
