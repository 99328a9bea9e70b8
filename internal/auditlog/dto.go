package auditlog

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/frahmantamala/admin-console/internal"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
)

// Query carries the optional userId and role hints of GET /api/logs.
// When given they must describe the signed-in user.
type Query struct {
	UserID *int64
	Role   *coreUser.Permission
}

func ParseQuery(values url.Values) (Query, error) {
	var q Query

	if raw := strings.TrimSpace(values.Get("userId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return q, internal.NewValidationError("userId must be a positive integer.", internal.ErrCodeInvalidUserID)
		}
		q.UserID = &id
	}

	if raw := strings.TrimSpace(values.Get("role")); raw != "" {
		p, ok := coreUser.ParsePermission(raw)
		if !ok {
			return q, internal.ErrInvalidPermission
		}
		q.Role = &p
	}

	return q, nil
}
