package user

import "strings"

// Permission is the role enumerator stored one-to-one with every user.
type Permission string

const (
	PermissionReadOnly Permission = "read_only"
	PermissionAdmin    Permission = "admin"
)

// Permissions lists the values the backend accepts, in display order.
var Permissions = []Permission{PermissionReadOnly, PermissionAdmin}

func ParsePermission(s string) (Permission, bool) {
	p := Permission(strings.TrimSpace(s))
	return p, p.Valid()
}

func (p Permission) Valid() bool {
	for _, known := range Permissions {
		if p == known {
			return true
		}
	}
	return false
}

func (p Permission) String() string {
	return string(p)
}

// Label is the human readable name used by the pages.
func (p Permission) Label() string {
	switch p {
	case PermissionAdmin:
		return "Admin"
	case PermissionReadOnly:
		return "Read Only"
	default:
		return string(p)
	}
}

// User is the authenticated caller. Permission always comes from the backend,
// never from the session token.
type User struct {
	ID         int64      `json:"userId"`
	Username   string     `json:"username"`
	Permission Permission `json:"permission"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Permission == PermissionAdmin
}

// CanManage reports whether u may act on the record of targetID.
// Admins manage everyone, read_only users only themselves.
func (u *User) CanManage(targetID int64) bool {
	if u == nil {
		return false
	}
	return u.IsAdmin() || u.ID == targetID
}
