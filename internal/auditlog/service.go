package auditlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/admin-console/internal"
	"github.com/frahmantamala/admin-console/internal/backend"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
)

type Service struct {
	backend backend.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewService(client backend.Client, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: client,
		timeout: timeout,
		logger:  logger,
	}
}

// ListLogs resolves the caller's role with a fresh permission read, then lists
// every entry for admins and only the caller's own entries otherwise, newest first.
func (s *Service) ListLogs(ctx context.Context, actor *coreUser.User, q Query) ([]Entry, error) {
	if actor == nil {
		return nil, internal.ErrInvalidSession
	}
	if q.UserID != nil && *q.UserID != actor.ID {
		return nil, internal.ErrInsufficientPermission
	}

	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	role, err := s.roleOf(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if q.Role != nil && *q.Role != role {
		return nil, internal.ErrInsufficientPermission
	}

	filter := backend.LogFilter{}
	if role != coreUser.PermissionAdmin {
		id := actor.ID
		filter.UserID = &id
	}

	rows, err := s.backend.ListLogs(ctx, filter)
	if err != nil {
		return nil, backend.ToAppError(fmt.Errorf("list logs: %w", err))
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, FromRecord(r))
	}

	s.logger.Debug("logs listed", "user_id", actor.ID, "role", role, "count", len(entries))
	return entries, nil
}

func (s *Service) roleOf(ctx context.Context, userID int64) (coreUser.Permission, error) {
	raw, err := s.backend.GetPermission(ctx, userID)
	if errors.Is(err, backend.ErrNotFound) {
		return "", internal.ErrInvalidSession
	}
	if err != nil {
		return "", backend.ToAppError(fmt.Errorf("get permission %d: %w", userID, err))
	}

	p, ok := coreUser.ParsePermission(raw)
	if !ok {
		s.logger.Warn("unknown permission stored for user", "user_id", userID, "permission", raw)
		return "", internal.ErrInvalidSession
	}
	return p, nil
}
