// Package views holds the HTML pages of the console. Pages are written as
// .templ files; the matching _templ.go files are produced by `templ generate`.
package views

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.819 generate

import (
	"strconv"
	"time"

	"github.com/frahmantamala/admin-console/internal/auditlog"
	coreUser "github.com/frahmantamala/admin-console/internal/core/user"
	"github.com/frahmantamala/admin-console/internal/user"
)

// Confirmable actions on a user row.
const (
	ActionPassword   = "password"
	ActionPermission = "permission"
	ActionDelete     = "delete"
)

type LoginData struct {
	Username string
	Error    string
}

// CreateForm keeps what the admin typed when creating a user fails. The password is never echoed.
type CreateForm struct {
	Username   string
	Permission string
	Error      string
}

type DashboardData struct {
	User     *coreUser.User
	Accounts []user.Account
	Notice   string
	Error    string
	Create   CreateForm
	Confirm  *ConfirmData
}

type ConfirmData struct {
	Target user.Account
	Action string
	Error  string
}

type LogsData struct {
	User    *coreUser.User
	Entries []auditlog.Entry
	Error   string
}

// ConfirmURL is the page that asks before running action on user id.
func ConfirmURL(id int64, action string) string {
	return "/dashboard/users/" + formatID(id) + "/" + action
}

func formatID(n int64) string {
	return strconv.FormatInt(n, 10)
}

func confirmTitle(action string) string {
	switch action {
	case ActionPassword:
		return "Change password for "
	case ActionPermission:
		return "Change permission for "
	case ActionDelete:
		return "Delete "
	}
	return ""
}

func selectedPermission(selected string) string {
	if selected == "" {
		return coreUser.PermissionReadOnly.String()
	}
	return selected
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func localTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
