package user

import (
	"strings"

	"github.com/frahmantamala/admin-console/internal/core/common/validation"
)

type CreateUserDTO struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Permission string `json:"permission"`
}

// Normalize trims the username and permission; passwords are kept verbatim.
func (d *CreateUserDTO) Normalize() {
	d.Username = strings.TrimSpace(d.Username)
	d.Permission = strings.TrimSpace(d.Permission)
}

func (d CreateUserDTO) Validate() error {
	if err := validation.ValidateNewUser(d.Username, d.Password, d.Permission); err != nil {
		return err
	}
	return nil
}

type ChangePasswordDTO struct {
	NewPassword string `json:"new_password"`
}

func (d ChangePasswordDTO) Validate() error {
	if err := validation.ValidateNewPassword(d.NewPassword); err != nil {
		return err
	}
	return nil
}

type ChangePermissionDTO struct {
	Permission string `json:"permission"`
}

func (d ChangePermissionDTO) Validate() error {
	if err := validation.ValidatePermission(strings.TrimSpace(d.Permission)); err != nil {
		return err
	}
	return nil
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CreateUserResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"userId"`
}
