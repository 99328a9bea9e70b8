// Package backend is the handle to the managed backend that owns users,
// permissions and the audit log. Every mutation goes through a named remote
// procedure carrying the acting user's id; reads are simple filtered selects.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Remote procedure names.
const (
	ProcCheckPassword     = "check_password"
	ProcCreateUser        = "create_user"
	ProcChangePassword    = "change_password_new"
	ProcUpdatePermissions = "update_permissions_new"
	ProcDeleteUser        = "delete_user_new"
)

// Tables read or deleted from directly.
const (
	TableUsers           = "users"
	TableUserPermissions = "user_permissions"
	TablePermissions     = "permissions"
	TableLogs            = "logs"
)

var ErrNotFound = errors.New("backend: record not found")

// ProcedureError is an application-level error returned inside a procedure's
// response, as opposed to a failure to reach the backend at all.
type ProcedureError struct {
	Procedure string
	Message   string
}

func (e *ProcedureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Procedure, e.Message)
}

func IsProcedureError(err error) (*ProcedureError, bool) {
	var pe *ProcedureError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ProcedureResult is the JSON document returned by the mutation procedures.
// Success is nil when the procedure does not report it.
type ProcedureResult struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Err converts an embedded error into a ProcedureError. Only a non-empty
// error field or an explicit success:false is a failure.
func (r ProcedureResult) Err(procedure string) error {
	if r.Error != "" {
		return &ProcedureError{Procedure: procedure, Message: r.Error}
	}
	if r.Success != nil && !*r.Success {
		msg := r.Message
		if msg == "" {
			msg = "procedure reported failure"
		}
		return &ProcedureError{Procedure: procedure, Message: msg}
	}
	return nil
}

// DecodeProcedureResult parses a raw procedure response. Empty bodies, scalars
// and arrays carry no embedded error and count as success.
func DecodeProcedureResult(procedure string, raw []byte) (ProcedureResult, error) {
	var res ProcedureResult
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return res, nil
	}
	if !json.Valid(trimmed) {
		return res, fmt.Errorf("%s: decode result: invalid JSON", procedure)
	}
	if trimmed[0] != '{' {
		return res, nil
	}

	var doc struct {
		Success json.RawMessage `json:"success"`
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return res, fmt.Errorf("%s: decode result: %w", procedure, err)
	}
	var success bool
	if len(doc.Success) > 0 && string(doc.Success) != "null" && json.Unmarshal(doc.Success, &success) == nil {
		res.Success = &success
	}
	res.Message = jsonText(doc.Message)
	res.Error = jsonText(doc.Error)
	return res, res.Err(procedure)
}

// jsonText reads a string field; null is empty and other values keep their JSON text.
func jsonText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

type UserRecord struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
	AuthID   string `json:"auth_id,omitempty"`
}

type UserPermissionRecord struct {
	UserID         int64  `json:"user_id"`
	Username       string `json:"username"`
	PermissionType string `json:"permission_type"`
}

type LogRecord struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Action       string          `json:"action"`
	Timestamp    time.Time       `json:"timestamp"`
	CustomFields json.RawMessage `json:"custom_fields"`
}

// LogFilter narrows ListLogs. A nil UserID lists every row.
type LogFilter struct {
	UserID *int64
}

type CreateUserParams struct {
	Username    string `json:"_username"`
	Password    string `json:"_password"`
	Permission  string `json:"_permission"`
	PerformedBy int64  `json:"_performed_by"`
}

type ChangePasswordParams struct {
	UserID      int64  `json:"_user_id"`
	NewPassword string `json:"_new_password"`
	PerformedBy int64  `json:"_performed_by"`
}

type UpdatePermissionParams struct {
	UserID        int64  `json:"_user_id"`
	NewPermission string `json:"_new_permission"`
	PerformedBy   int64  `json:"_performed_by"`
}

type DeleteUserParams struct {
	UserID      int64 `json:"_user_id"`
	PerformedBy int64 `json:"_performed_by"`
}

// Client is implemented by every backend driver.
type Client interface {
	FindUserByUsername(ctx context.Context, username string) (*UserRecord, error)
	GetUser(ctx context.Context, userID int64) (*UserRecord, error)
	GetPermission(ctx context.Context, userID int64) (string, error)
	ListUsers(ctx context.Context) ([]UserPermissionRecord, error)
	ListPermissions(ctx context.Context) ([]string, error)
	ListLogs(ctx context.Context, filter LogFilter) ([]LogRecord, error)

	CheckPassword(ctx context.Context, inputPassword, storedPassword string) (bool, error)
	CreateUser(ctx context.Context, params CreateUserParams) (int64, error)
	ChangePassword(ctx context.Context, params ChangePasswordParams) error
	UpdatePermission(ctx context.Context, params UpdatePermissionParams) error
	DeleteUser(ctx context.Context, params DeleteUserParams) error

	DeletePermission(ctx context.Context, userID int64) error
	DeleteUserRow(ctx context.Context, userID int64) error
	DeleteAuthIdentity(ctx context.Context, authID string) error

	Ping(ctx context.Context) error
}
