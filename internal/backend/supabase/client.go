package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/admin-console/internal/backend"
)

// Client speaks the PostgREST and auth admin HTTP APIs of a Supabase project.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ backend.Client = (*Client)(nil)

type Config struct {
	URL            string
	ServiceRoleKey string
	Timeout        time.Duration
}

func NewClient(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(config.URL, "/"),
		apiKey:     config.ServiceRoleKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// apiError is the error document PostgREST returns on non-2xx responses.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Msg     string `json:"msg"`
}

func (e apiError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Msg
}

type statusError struct {
	Method string
	Path   string
	Status int
	Body   apiError
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body.text())
}

func (c *Client) FindUserByUsername(ctx context.Context, username string) (*backend.UserRecord, error) {
	q := url.Values{}
	q.Set("select", "id,username,password,auth_id")
	q.Set("username", "eq."+username)
	q.Set("limit", "1")

	var rows []backend.UserRecord
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+backend.TableUsers, q, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, backend.ErrNotFound
	}
	return &rows[0], nil
}

func (c *Client) GetUser(ctx context.Context, userID int64) (*backend.UserRecord, error) {
	q := url.Values{}
	q.Set("select", "id,username,password,auth_id")
	q.Set("id", "eq."+strconv.FormatInt(userID, 10))

	var rows []backend.UserRecord
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+backend.TableUsers, q, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, backend.ErrNotFound
	}
	return &rows[0], nil
}

func (c *Client) GetPermission(ctx context.Context, userID int64) (string, error) {
	q := url.Values{}
	q.Set("select", "permission_type")
	q.Set("user_id", "eq."+strconv.FormatInt(userID, 10))

	var rows []struct {
		PermissionType string `json:"permission_type"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+backend.TableUserPermissions, q, nil, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", backend.ErrNotFound
	}
	return rows[0].PermissionType, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]backend.UserPermissionRecord, error) {
	q := url.Values{}
	q.Set("select", "user_id,username,permission_type")
	q.Set("order", "user_id.asc")

	rows := []backend.UserPermissionRecord{}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+backend.TableUserPermissions, q, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) ListPermissions(ctx context.Context) ([]string, error) {
	q := url.Values{}
	q.Set("select", "name")
	q.Set("order", "id.asc")

	var rows []struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+backend.TablePermissions, q, nil, &rows); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names, nil
}

func (c *Client) ListLogs(ctx context.Context, filter backend.LogFilter) ([]backend.LogRecord, error) {
	q := url.Values{}
	q.Set("select", "id,user_id,action,timestamp,custom_fields")
	q.Set("order", "timestamp.desc")
	if filter.UserID != nil {
		q.Set("user_id", "eq."+strconv.FormatInt(*filter.UserID, 10))
	}

	rows := []backend.LogRecord{}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+backend.TableLogs, q, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) CheckPassword(ctx context.Context, inputPassword, storedPassword string) (bool, error) {
	payload := map[string]string{
		"input_password":  inputPassword,
		"stored_password": storedPassword,
	}
	var valid bool
	if err := c.rpc(ctx, backend.ProcCheckPassword, payload, &valid); err != nil {
		return false, err
	}
	return valid, nil
}

func (c *Client) CreateUser(ctx context.Context, params backend.CreateUserParams) (int64, error) {
	var id int64
	if err := c.rpc(ctx, backend.ProcCreateUser, params, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (c *Client) ChangePassword(ctx context.Context, params backend.ChangePasswordParams) error {
	return c.rpcResult(ctx, backend.ProcChangePassword, params)
}

func (c *Client) UpdatePermission(ctx context.Context, params backend.UpdatePermissionParams) error {
	return c.rpcResult(ctx, backend.ProcUpdatePermissions, params)
}

func (c *Client) DeleteUser(ctx context.Context, params backend.DeleteUserParams) error {
	return c.rpcResult(ctx, backend.ProcDeleteUser, params)
}

func (c *Client) DeletePermission(ctx context.Context, userID int64) error {
	q := url.Values{}
	q.Set("user_id", "eq."+strconv.FormatInt(userID, 10))
	return c.do(ctx, http.MethodDelete, "/rest/v1/"+backend.TableUserPermissions, q, nil, nil)
}

func (c *Client) DeleteUserRow(ctx context.Context, userID int64) error {
	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(userID, 10))
	return c.do(ctx, http.MethodDelete, "/rest/v1/"+backend.TableUsers, q, nil, nil)
}

func (c *Client) DeleteAuthIdentity(ctx context.Context, authID string) error {
	if authID == "" {
		return nil
	}
	return c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(authID), nil, nil, nil)
}

func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")
	return c.do(ctx, http.MethodGet, "/rest/v1/"+backend.TablePermissions, q, nil, nil)
}

// raisedCodes are the SQLSTATEs a procedure uses to reject a request
// (RAISE EXCEPTION and unique violations).
var raisedCodes = map[string]bool{
	"P0001": true,
	"23505": true,
}

func (c *Client) rpc(ctx context.Context, name string, payload interface{}, out interface{}) error {
	err := c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+name, nil, payload, out)
	var se *statusError
	if errors.As(err, &se) && isRaised(se) {
		return &backend.ProcedureError{Procedure: name, Message: se.Body.text()}
	}
	return err
}

// isRaised reports whether PostgREST is relaying an exception raised inside the
// procedure. Auth failures and missing functions stay transport errors.
func isRaised(se *statusError) bool {
	if se.Status != http.StatusBadRequest && se.Status != http.StatusConflict {
		return false
	}
	return raisedCodes[se.Body.Code]
}

func (c *Client) rpcResult(ctx context.Context, name string, payload interface{}) error {
	var raw json.RawMessage
	if err := c.rpc(ctx, name, payload, &raw); err != nil {
		return err
	}
	_, err := backend.DecodeProcedureResult(name, raw)
	if err != nil {
		c.logger.Warn("supabase: procedure returned an error", "procedure", name, "error", err)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("supabase request",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if len(raw) > 0 {
			if jerr := json.Unmarshal(raw, &apiErr); jerr != nil || apiErr.text() == "" {
				apiErr.Message = strings.TrimSpace(string(raw))
			}
		}
		return &statusError{Method: method, Path: path, Status: resp.StatusCode, Body: apiErr}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
