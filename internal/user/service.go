package user

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/admin-console/internal"
	"github.com/frahmantamala/admin-console/internal/backend"
	"github.com/frahmantamala/admin-console/internal/core/common/validation"
	"github.com/frahmantamala/admin-console/internal/core/events"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
)

// Service forwards admin mutations to the backend procedures after checking
// the caller's rights. The backend stays authoritative; nothing is cached here.
type Service struct {
	backend backend.Client
	events  events.Publisher
	timeout time.Duration
	logger  *slog.Logger
}

func NewService(client backend.Client, publisher events.Publisher, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: client,
		events:  publisher,
		timeout: timeout,
		logger:  logger,
	}
}

// ListUsers returns every account for admins and only the caller's own row otherwise.
func (s *Service) ListUsers(ctx context.Context, actor *coreUser.User) ([]Account, error) {
	if actor == nil {
		return nil, internal.ErrInvalidSession
	}
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.backend.ListUsers(ctx)
	if err != nil {
		return nil, backend.ToAppError(fmt.Errorf("list users: %w", err))
	}

	accounts := make([]Account, 0, len(rows))
	for _, r := range rows {
		if !actor.IsAdmin() && r.UserID != actor.ID {
			continue
		}
		accounts = append(accounts, FromPermissionRecord(r))
	}
	return accounts, nil
}

func (s *Service) CreateUser(ctx context.Context, actor *coreUser.User, dto CreateUserDTO) (int64, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return 0, err
	}
	if actor == nil {
		return 0, internal.ErrInvalidSession
	}
	if !actor.IsAdmin() {
		return 0, internal.ErrInsufficientPermission
	}

	return s.create(ctx, actor.ID, dto)
}

// CreateInitialAdmin creates the first admin when the backend holds no users yet.
// The creation is logged under the new user's own id.
func (s *Service) CreateInitialAdmin(ctx context.Context, username, password string) (int64, error) {
	dto := CreateUserDTO{Username: username, Password: password, Permission: coreUser.PermissionAdmin.String()}
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return 0, err
	}

	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.backend.ListUsers(ctx)
	if err != nil {
		return 0, backend.ToAppError(fmt.Errorf("list users: %w", err))
	}
	if len(rows) > 0 {
		return 0, internal.NewConflictError("Users already exist; sign in as an admin to add more.", internal.ErrCodeValidationFailed)
	}

	return s.create(ctx, 0, dto)
}

func (s *Service) create(ctx context.Context, actorID int64, dto CreateUserDTO) (int64, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.backend.CreateUser(ctx, backend.CreateUserParams{
		Username:    dto.Username,
		Password:    dto.Password,
		Permission:  dto.Permission,
		PerformedBy: actorID,
	})
	if err != nil {
		return 0, backend.ToAppError(fmt.Errorf("create user: %w", err))
	}

	s.logger.Info("user created", "user_id", id, "username", dto.Username, "performed_by", actorID)
	s.publish(ctx, events.NewUserCreatedEvent(actorID, id, dto.Username, dto.Permission))
	return id, nil
}

func (s *Service) ChangePassword(ctx context.Context, actor *coreUser.User, targetID int64, dto ChangePasswordDTO) error {
	if err := validateTarget(targetID); err != nil {
		return err
	}
	if err := dto.Validate(); err != nil {
		return err
	}
	if actor == nil {
		return internal.ErrInvalidSession
	}
	if !actor.CanManage(targetID) {
		return internal.ErrInsufficientPermission
	}

	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.backend.ChangePassword(ctx, backend.ChangePasswordParams{
		UserID:      targetID,
		NewPassword: dto.NewPassword,
		PerformedBy: actor.ID,
	})
	if err != nil {
		return backend.ToAppError(fmt.Errorf("change password: %w", err))
	}

	s.logger.Info("password changed", "user_id", targetID, "performed_by", actor.ID)
	s.publish(ctx, events.NewPasswordChangedEvent(actor.ID, targetID))
	return nil
}

func (s *Service) ChangePermission(ctx context.Context, actor *coreUser.User, targetID int64, dto ChangePermissionDTO) error {
	if err := validateTarget(targetID); err != nil {
		return err
	}
	if err := dto.Validate(); err != nil {
		return err
	}
	if actor == nil {
		return internal.ErrInvalidSession
	}
	if !actor.IsAdmin() {
		return internal.ErrInsufficientPermission
	}

	permission, _ := coreUser.ParsePermission(dto.Permission)

	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.backend.UpdatePermission(ctx, backend.UpdatePermissionParams{
		UserID:        targetID,
		NewPermission: permission.String(),
		PerformedBy:   actor.ID,
	})
	if err != nil {
		return backend.ToAppError(fmt.Errorf("update permission: %w", err))
	}

	s.logger.Info("permission changed", "user_id", targetID, "permission", permission, "performed_by", actor.ID)
	s.publish(ctx, events.NewPermissionChangedEvent(actor.ID, targetID, permission.String()))
	return nil
}

// DeleteUser records the deletion through the audit procedure and then removes
// the permission row, the user row and the auth identity in that order. The
// first failing step is reported and nothing is rolled back.
func (s *Service) DeleteUser(ctx context.Context, actor *coreUser.User, targetID int64) error {
	if err := validateTarget(targetID); err != nil {
		return err
	}
	if actor == nil {
		return internal.ErrInvalidSession
	}
	if !actor.CanManage(targetID) {
		return internal.ErrInsufficientPermission
	}

	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	target, err := s.backend.GetUser(ctx, targetID)
	if err != nil {
		return backend.ToAppError(fmt.Errorf("get user %d: %w", targetID, err))
	}

	steps := []struct {
		step DeleteStep
		run  func() error
	}{
		{DeleteStepAudit, func() error {
			return s.backend.DeleteUser(ctx, backend.DeleteUserParams{UserID: targetID, PerformedBy: actor.ID})
		}},
		{DeleteStepPermission, func() error { return s.backend.DeletePermission(ctx, targetID) }},
		{DeleteStepUser, func() error { return s.backend.DeleteUserRow(ctx, targetID) }},
		{DeleteStepAuth, func() error { return s.backend.DeleteAuthIdentity(ctx, target.AuthID) }},
	}

	for _, st := range steps {
		if err := st.run(); err != nil {
			stepErr := &DeleteStepError{Step: st.step, UserID: targetID, Err: err}
			s.logger.Error("delete user: step failed",
				"user_id", targetID,
				"step", st.step,
				"performed_by", actor.ID,
				"error", err)
			return deleteFailure(stepErr)
		}
	}

	s.logger.Info("user deleted", "user_id", targetID, "username", target.Username, "performed_by", actor.ID)
	s.publish(ctx, events.NewUserDeletedEvent(actor.ID, targetID, target.Username))
	return nil
}

func deleteFailure(stepErr *DeleteStepError) error {
	status := http.StatusBadGateway
	reason := "the backend could not be reached"
	if pe, ok := backend.IsProcedureError(stepErr.Err); ok {
		status = http.StatusBadRequest
		reason = pe.Message
	}
	return &internal.AppError{
		Type:       internal.ErrorTypeExternal,
		Code:       internal.ErrCodeDeleteIncomplete,
		Message:    fmt.Sprintf("Delete failed while %s: %s", stepErr.Step.Description(), reason),
		StatusCode: status,
		Details:    map[string]interface{}{"step": stepErr.Step, "user_id": stepErr.UserID},
		Cause:      stepErr,
	}
}

func validateTarget(targetID int64) error {
	if err := validation.ValidateUserID(targetID); err != nil {
		return err
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
