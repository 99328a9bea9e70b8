package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/admin-console/internal"
	"github.com/frahmantamala/admin-console/internal/backend"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	"github.com/frahmantamala/admin-console/internal/user"
)

// UserCreator is the part of the user service register delegates to.
type UserCreator interface {
	CreateUser(ctx context.Context, actor *coreUser.User, dto user.CreateUserDTO) (int64, error)
}

type Service struct {
	backend        backend.Client
	tokenGenerator TokenGenerator
	users          UserCreator
	timeout        time.Duration
	logger         *slog.Logger
}

func NewService(client backend.Client, tokenGen TokenGenerator, users UserCreator, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:        client,
		tokenGenerator: tokenGen,
		users:          users,
		timeout:        timeout,
		logger:         logger,
	}
}

// Login verifies credentials through the backend's check_password procedure and
// issues a session token. Unknown users and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*Session, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(dto.Username)

	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.backend.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, internal.ErrInvalidCredentials
		}
		return nil, backend.ToAppError(fmt.Errorf("find user: %w", err))
	}

	valid, err := s.backend.CheckPassword(ctx, dto.Password, rec.Password)
	if err != nil {
		s.logger.Warn("login: password check failed", "username", username, "error", err)
		return nil, internal.ErrInvalidCredentials
	}
	if !valid {
		return nil, internal.ErrInvalidCredentials
	}

	permission, err := s.permissionOf(ctx, rec.ID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			// partially deleted user: the permission row is gone
			s.logger.Warn("login: user has no permission row", "user_id", rec.ID)
			return nil, internal.ErrInvalidCredentials
		}
		return nil, err
	}

	token, expiresAt, err := s.tokenGenerator.GenerateSessionToken(rec.ID, rec.Username)
	if err != nil {
		return nil, internal.NewInternalError("Could not start a session.", err)
	}

	s.logger.Info("login succeeded", "user_id", rec.ID, "username", rec.Username, "permission", permission)
	return &Session{
		UserID:     rec.ID,
		Username:   rec.Username,
		Permission: permission,
		Token:      token,
		ExpiresAt:  expiresAt,
	}, nil
}

// Authenticate verifies a session token and re-reads the user and permission
// from the backend. Users that no longer exist have no valid session.
func (s *Service) Authenticate(ctx context.Context, token string) (*coreUser.User, error) {
	claims, err := s.tokenGenerator.ValidateToken(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, internal.ErrSessionExpired
		}
		return nil, internal.ErrInvalidSession
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, internal.ErrInvalidSession
	}

	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.backend.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, internal.ErrInvalidSession
		}
		return nil, backend.ToAppError(fmt.Errorf("get user %d: %w", userID, err))
	}

	permission, err := s.permissionOf(ctx, userID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.ErrInvalidSession
		}
		return nil, err
	}

	return &coreUser.User{ID: rec.ID, Username: rec.Username, Permission: permission}, nil
}

// Register creates a user on behalf of an admin session.
func (s *Service) Register(ctx context.Context, actor *coreUser.User, dto RegisterDTO) (*RegisterResponse, error) {
	if actor == nil {
		return nil, internal.ErrInvalidSession
	}
	if dto.PerformedBy != nil && *dto.PerformedBy != actor.ID {
		s.logger.Warn("register: performed_by does not match session",
			"session_user_id", actor.ID,
			"performed_by", *dto.PerformedBy)
		return nil, internal.ErrActorMismatch
	}

	id, err := s.users.CreateUser(ctx, actor, dto.ToCreateUser())
	if err != nil {
		return nil, err
	}
	return &RegisterResponse{Message: "User created successfully!", UserID: id}, nil
}

func (s *Service) permissionOf(ctx context.Context, userID int64) (coreUser.Permission, error) {
	raw, err := s.backend.GetPermission(ctx, userID)
	if err != nil {
		return "", backend.ToAppError(fmt.Errorf("get permission %d: %w", userID, err))
	}
	permission, ok := coreUser.ParsePermission(raw)
	if !ok {
		return "", internal.NewInternalError("User has an unknown permission.", fmt.Errorf("permission %q for user %d", raw, userID))
	}
	return permission, nil
}
