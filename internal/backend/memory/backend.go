// Package memory is an in-process backend used for local development and tests.
// It mirrors the behaviour of the procedures in db/migrations.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/frahmantamala/admin-console/internal/backend"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var permissionNames = []string{"read_only", "admin"}

type Backend struct {
	mu          sync.RWMutex
	nextUserID  int64
	nextLogID   int64
	users       map[int64]*backend.UserRecord
	permissions map[int64]*backend.UserPermissionRecord
	identities  map[string]int64
	logs        []backend.LogRecord
	now         func() time.Time
}

var _ backend.Client = (*Backend)(nil)

func New() *Backend {
	return &Backend{
		nextUserID:  1,
		nextLogID:   1,
		users:       make(map[int64]*backend.UserRecord),
		permissions: make(map[int64]*backend.UserPermissionRecord),
		identities:  make(map[string]int64),
		now:         time.Now,
	}
}

func (b *Backend) FindUserByUsername(ctx context.Context, username string) (*backend.UserRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, u := range b.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, backend.ErrNotFound
}

func (b *Backend) GetUser(ctx context.Context, userID int64) (*backend.UserRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	u, ok := b.users[userID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (b *Backend) GetPermission(ctx context.Context, userID int64) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.permissions[userID]
	if !ok {
		return "", backend.ErrNotFound
	}
	return p.PermissionType, nil
}

func (b *Backend) ListUsers(ctx context.Context) ([]backend.UserPermissionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rows := make([]backend.UserPermissionRecord, 0, len(b.permissions))
	for _, p := range b.permissions {
		rows = append(rows, *p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	return rows, nil
}

func (b *Backend) ListPermissions(ctx context.Context) ([]string, error) {
	return append([]string(nil), permissionNames...), nil
}

func (b *Backend) ListLogs(ctx context.Context, filter backend.LogFilter) ([]backend.LogRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rows := make([]backend.LogRecord, 0, len(b.logs))
	for _, l := range b.logs {
		if filter.UserID != nil && l.UserID != *filter.UserID {
			continue
		}
		rows = append(rows, l)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].Timestamp.After(rows[j].Timestamp)
	})
	return rows, nil
}

func (b *Backend) CheckPassword(ctx context.Context, inputPassword, storedPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(storedPassword), []byte(inputPassword))
	return err == nil, nil
}

func (b *Backend) CreateUser(ctx context.Context, params backend.CreateUserParams) (int64, error) {
	if params.Username == "" || params.Password == "" {
		return 0, procErr(backend.ProcCreateUser, "Username and password are required.")
	}
	if !validPermission(params.Permission) {
		return 0, procErr(backend.ProcCreateUser, "Invalid permission: "+params.Permission)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, u := range b.users {
		if u.Username == params.Username {
			return 0, procErr(backend.ProcCreateUser, "Username already exists.")
		}
	}

	id := b.nextUserID
	b.nextUserID++
	authID := uuid.NewString()

	b.users[id] = &backend.UserRecord{ID: id, Username: params.Username, Password: string(hash), AuthID: authID}
	b.identities[authID] = id
	b.permissions[id] = &backend.UserPermissionRecord{UserID: id, Username: params.Username, PermissionType: params.Permission}

	actor := params.PerformedBy
	if actor == 0 {
		actor = id
	}
	b.appendLog(actor, "create_user", map[string]interface{}{
		"target_user_id": id,
		"username":       params.Username,
		"permission":     params.Permission,
	})
	return id, nil
}

func (b *Backend) ChangePassword(ctx context.Context, params backend.ChangePasswordParams) error {
	if params.NewPassword == "" {
		return procErr(backend.ProcChangePassword, "Password is required.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(params.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[params.UserID]
	if !ok {
		return procErr(backend.ProcChangePassword, "User not found.")
	}
	u.Password = string(hash)
	b.appendLog(params.PerformedBy, "change_password", map[string]interface{}{
		"target_user_id": params.UserID,
	})
	return nil
}

func (b *Backend) UpdatePermission(ctx context.Context, params backend.UpdatePermissionParams) error {
	if !validPermission(params.NewPermission) {
		return procErr(backend.ProcUpdatePermissions, "Invalid permission.")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	actor, ok := b.permissions[params.PerformedBy]
	if !ok || actor.PermissionType != "admin" {
		return procErr(backend.ProcUpdatePermissions, "Only admins can change permissions.")
	}
	p, ok := b.permissions[params.UserID]
	if !ok {
		return procErr(backend.ProcUpdatePermissions, "User not found.")
	}
	old := p.PermissionType
	p.PermissionType = params.NewPermission
	b.appendLog(params.PerformedBy, "change_permission", map[string]interface{}{
		"target_user_id": params.UserID,
		"old_permission": old,
		"new_permission": params.NewPermission,
	})
	return nil
}

func (b *Backend) DeleteUser(ctx context.Context, params backend.DeleteUserParams) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[params.UserID]
	if !ok {
		return procErr(backend.ProcDeleteUser, "User not found.")
	}
	b.appendLog(params.PerformedBy, "delete_user", map[string]interface{}{
		"target_user_id": params.UserID,
		"username":       u.Username,
	})
	return nil
}

func (b *Backend) DeletePermission(ctx context.Context, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.permissions, userID)
	return nil
}

func (b *Backend) DeleteUserRow(ctx context.Context, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.users, userID)
	return nil
}

func (b *Backend) DeleteAuthIdentity(ctx context.Context, authID string) error {
	if authID == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.identities[authID]; !ok {
		return backend.ErrNotFound
	}
	delete(b.identities, authID)
	return nil
}

func (b *Backend) Ping(ctx context.Context) error {
	return ctx.Err()
}

// HasIdentity reports whether an auth identity is still registered.
func (b *Backend) HasIdentity(authID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.identities[authID]
	return ok
}

// caller holds b.mu
func (b *Backend) appendLog(userID int64, action string, fields map[string]interface{}) {
	raw, _ := json.Marshal(fields)
	b.logs = append(b.logs, backend.LogRecord{
		ID:           b.nextLogID,
		UserID:       userID,
		Action:       action,
		Timestamp:    b.now().UTC(),
		CustomFields: raw,
	})
	b.nextLogID++
}

func procErr(procedure, message string) error {
	return &backend.ProcedureError{Procedure: procedure, Message: message}
}

func validPermission(p string) bool {
	for _, name := range permissionNames {
		if p == name {
			return true
		}
	}
	return false
}
