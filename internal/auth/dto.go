package auth

import (
	"strings"

	"github.com/frahmantamala/admin-console/internal/core/common/validation"
	"github.com/frahmantamala/admin-console/internal/user"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() error {
	if err := validation.ValidateCredentials(strings.TrimSpace(d.Username), d.Password); err != nil {
		return err
	}
	return nil
}

// RegisterDTO creates a user. PerformedBy is optional; when set it must be the caller.
type RegisterDTO struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Permission  string `json:"permission"`
	PerformedBy *int64 `json:"performed_by,omitempty"`
}

func (d RegisterDTO) ToCreateUser() user.CreateUserDTO {
	return user.CreateUserDTO{
		Username:   d.Username,
		Password:   d.Password,
		Permission: d.Permission,
	}
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"userId"`
}
