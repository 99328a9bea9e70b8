package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/admin-console/internal/backend"
	userDatamodel "github.com/frahmantamala/admin-console/internal/core/datamodel/user"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// Client talks to a Postgres database that hosts the backend's tables and
// procedures (see db/migrations). Procedures are invoked with SELECT.
type Client struct {
	db     *gorm.DB
	sdb    *sqlx.DB
	logger *slog.Logger
}

var _ backend.Client = (*Client)(nil)

func NewClient(db *gorm.DB, sdb *sqlx.DB, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{db: db, sdb: sdb, logger: logger}
}

func (c *Client) FindUserByUsername(ctx context.Context, username string) (*backend.UserRecord, error) {
	var u userDatamodel.User
	err := c.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("select %s: %w", backend.TableUsers, err)
	}
	return toUserRecord(&u), nil
}

func (c *Client) GetUser(ctx context.Context, userID int64) (*backend.UserRecord, error) {
	var u userDatamodel.User
	err := c.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("select %s: %w", backend.TableUsers, err)
	}
	return toUserRecord(&u), nil
}

func (c *Client) GetPermission(ctx context.Context, userID int64) (string, error) {
	var up userDatamodel.UserPermission
	err := c.db.WithContext(ctx).Where("user_id = ?", userID).First(&up).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", backend.ErrNotFound
		}
		return "", fmt.Errorf("select %s: %w", backend.TableUserPermissions, err)
	}
	return up.PermissionType, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]backend.UserPermissionRecord, error) {
	var rows []userDatamodel.UserPermission
	if err := c.db.WithContext(ctx).Order("user_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("select %s: %w", backend.TableUserPermissions, err)
	}

	records := make([]backend.UserPermissionRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, backend.UserPermissionRecord{
			UserID:         r.UserID,
			Username:       r.Username,
			PermissionType: r.PermissionType,
		})
	}
	return records, nil
}

func (c *Client) ListPermissions(ctx context.Context) ([]string, error) {
	var names []string
	err := c.db.WithContext(ctx).Model(&userDatamodel.Permission{}).Order("id ASC").Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", backend.TablePermissions, err)
	}
	return names, nil
}

type logRow struct {
	ID           int64          `db:"id"`
	UserID       int64          `db:"user_id"`
	Action       string         `db:"action"`
	Timestamp    time.Time      `db:"timestamp"`
	CustomFields sql.NullString `db:"custom_fields"`
}

func (c *Client) ListLogs(ctx context.Context, filter backend.LogFilter) ([]backend.LogRecord, error) {
	query := `SELECT id, user_id, action, "timestamp", custom_fields FROM logs`
	var args []interface{}
	if filter.UserID != nil {
		query += ` WHERE user_id = ?`
		args = append(args, *filter.UserID)
	}
	query += ` ORDER BY "timestamp" DESC`

	var rows []logRow
	if err := c.sdb.SelectContext(ctx, &rows, c.sdb.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", backend.TableLogs, err)
	}

	records := make([]backend.LogRecord, 0, len(rows))
	for _, r := range rows {
		rec := backend.LogRecord{
			ID:        r.ID,
			UserID:    r.UserID,
			Action:    r.Action,
			Timestamp: r.Timestamp,
		}
		if r.CustomFields.Valid && r.CustomFields.String != "" {
			rec.CustomFields = json.RawMessage(r.CustomFields.String)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Client) CheckPassword(ctx context.Context, inputPassword, storedPassword string) (bool, error) {
	var valid sql.NullBool
	row := c.db.WithContext(ctx).Raw("SELECT check_password(?, ?)", inputPassword, storedPassword).Row()
	if err := row.Scan(&valid); err != nil {
		return false, procedureErr(backend.ProcCheckPassword, err)
	}
	return valid.Valid && valid.Bool, nil
}

func (c *Client) CreateUser(ctx context.Context, params backend.CreateUserParams) (int64, error) {
	var id int64
	row := c.db.WithContext(ctx).Raw("SELECT create_user(?, ?, ?, ?)",
		params.Username, params.Password, params.Permission, params.PerformedBy).Row()
	if err := row.Scan(&id); err != nil {
		return 0, procedureErr(backend.ProcCreateUser, err)
	}
	return id, nil
}

func (c *Client) ChangePassword(ctx context.Context, params backend.ChangePasswordParams) error {
	return c.callResult(ctx, backend.ProcChangePassword, "SELECT change_password_new(?, ?, ?)",
		params.UserID, params.NewPassword, params.PerformedBy)
}

func (c *Client) UpdatePermission(ctx context.Context, params backend.UpdatePermissionParams) error {
	return c.callResult(ctx, backend.ProcUpdatePermissions, "SELECT update_permissions_new(?, ?, ?)",
		params.UserID, params.NewPermission, params.PerformedBy)
}

func (c *Client) DeleteUser(ctx context.Context, params backend.DeleteUserParams) error {
	return c.callResult(ctx, backend.ProcDeleteUser, "SELECT delete_user_new(?, ?)",
		params.UserID, params.PerformedBy)
}

func (c *Client) DeletePermission(ctx context.Context, userID int64) error {
	err := c.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&userDatamodel.UserPermission{}).Error
	if err != nil {
		return fmt.Errorf("delete %s: %w", backend.TableUserPermissions, err)
	}
	return nil
}

func (c *Client) DeleteUserRow(ctx context.Context, userID int64) error {
	err := c.db.WithContext(ctx).Where("id = ?", userID).Delete(&userDatamodel.User{}).Error
	if err != nil {
		return fmt.Errorf("delete %s: %w", backend.TableUsers, err)
	}
	return nil
}

func (c *Client) DeleteAuthIdentity(ctx context.Context, authID string) error {
	if authID == "" {
		return nil
	}
	err := c.db.WithContext(ctx).Where("id = ?", authID).Delete(&userDatamodel.AuthIdentity{}).Error
	if err != nil {
		return fmt.Errorf("delete auth identity: %w", err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.sdb.PingContext(ctx)
}

func (c *Client) callResult(ctx context.Context, procedure, query string, args ...interface{}) error {
	var raw []byte
	if err := c.db.WithContext(ctx).Raw(query, args...).Row().Scan(&raw); err != nil {
		return procedureErr(procedure, err)
	}
	_, err := backend.DecodeProcedureResult(procedure, raw)
	if err != nil {
		c.logger.Warn("procedure returned an error", "procedure", procedure, "error", err)
	}
	return err
}

// procedureErr turns exceptions raised inside a procedure into ProcedureErrors;
// anything else is a transport failure.
func procedureErr(procedure string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "P0001" {
		return &backend.ProcedureError{Procedure: procedure, Message: pgErr.Message}
	}
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &backend.ProcedureError{Procedure: procedure, Message: "Username already exists."}
	}
	return fmt.Errorf("call %s: %w", procedure, err)
}

func toUserRecord(u *userDatamodel.User) *backend.UserRecord {
	return &backend.UserRecord{
		ID:       u.ID,
		Username: u.Username,
		Password: u.Password,
		AuthID:   u.AuthID,
	}
}
