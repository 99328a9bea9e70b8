package validation

import (
	"fmt"
	"strings"

	errors "github.com/frahmantamala/admin-console/internal"
	"github.com/frahmantamala/admin-console/internal/core/user"
)

type ValidatorFunc func(interface{}) *errors.AppError

type FieldValidator struct {
	FieldName  string
	Label      string
	Value      interface{}
	Validators []ValidatorFunc
}

type ValidationBuilder struct {
	fields []FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make([]FieldValidator, 0),
	}
}

// Field registers a value to check. label is used in messages and defaults to name.
func (v *ValidationBuilder) Field(name string, value interface{}, label ...string) *FieldValidator {
	fv := FieldValidator{
		FieldName:  name,
		Label:      name,
		Value:      value,
		Validators: make([]ValidatorFunc, 0),
	}
	if len(label) > 0 && label[0] != "" {
		fv.Label = label[0]
	}
	v.fields = append(v.fields, fv)
	return &v.fields[len(v.fields)-1]
}

func (fv *FieldValidator) Required() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		missing := false
		switch v := value.(type) {
		case string:
			missing = strings.TrimSpace(v) == ""
		case int64:
			missing = v == 0
		case *string:
			missing = v == nil || strings.TrimSpace(*v) == ""
		case *int64:
			missing = v == nil
		case nil:
			missing = true
		}
		if missing {
			return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required.", fv.Label), errors.ErrCodeMissingField)
		}
		return nil
	})
	return fv
}

// NotEmpty is Required without trimming, for secrets where whitespace is significant.
func (fv *FieldValidator) NotEmpty() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		missing := false
		switch v := value.(type) {
		case string:
			missing = v == ""
		case *string:
			missing = v == nil || *v == ""
		case nil:
			missing = true
		}
		if missing {
			return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required.", fv.Label), errors.ErrCodeMissingField)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Positive() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(int64); ok && v <= 0 {
			return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must be a positive number.", fv.Label), errors.ErrCodeInvalidUserID)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MinLength(min int) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok && v != "" && len(v) < min {
			message := fmt.Sprintf("%s must be at least %d characters.", fv.Label, min)
			return errors.NewValidationFieldError(fv.FieldName, message, errors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok && len(v) > max {
			message := fmt.Sprintf("%s must not exceed %d characters.", fv.Label, max)
			return errors.NewValidationFieldError(fv.FieldName, message, errors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) OneOf(code errors.ErrorCode, allowed ...string) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		v, ok := value.(string)
		if !ok || v == "" {
			return nil
		}
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		message := fmt.Sprintf("%s must be one of: %s.", fv.Label, strings.Join(allowed, ", "))
		return errors.NewValidationFieldError(fv.FieldName, message, code)
	})
	return fv
}

func (fv *FieldValidator) Custom(validator func(interface{}) *errors.AppError) *FieldValidator {
	fv.Validators = append(fv.Validators, validator)
	return fv
}

// Validate runs every field and stops at the first failing check of each field.
func (v *ValidationBuilder) Validate() *errors.AppError {
	var validationErrors []errors.ValidationError

	for _, field := range v.fields {
		for _, validator := range field.Validators {
			appErr := validator(field.Value)
			if appErr == nil {
				continue
			}
			if details, ok := appErr.Details.(errors.ValidationErrors); ok {
				validationErrors = append(validationErrors, details.Errors...)
			} else {
				validationErrors = append(validationErrors, errors.ValidationError{
					Field:   field.FieldName,
					Message: appErr.Message,
					Code:    string(appErr.Code),
				})
			}
			break
		}
	}

	if len(validationErrors) > 0 {
		return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
			WithDetails(errors.ValidationErrors{Errors: validationErrors})
	}

	return nil
}

func permissionNames() []string {
	names := make([]string, 0, len(user.Permissions))
	for _, p := range user.Permissions {
		names = append(names, p.String())
	}
	return names
}

func ValidatePermission(permission string) *errors.AppError {
	validator := NewValidator()
	validator.Field("permission", permission, "Permission").
		Required().
		OneOf(errors.ErrCodeInvalidPermission, permissionNames()...)
	return validator.Validate()
}

func ValidateCredentials(username, password string) *errors.AppError {
	validator := NewValidator()
	validator.Field("username", username, "Username").
		Required().
		MaxLength(255)
	validator.Field("password", password, "Password").
		NotEmpty().
		MaxLength(72)
	return validator.Validate()
}

func ValidateNewUser(username, password, permission string) *errors.AppError {
	validator := NewValidator()
	validator.Field("username", username, "Username").
		Required().
		MaxLength(255)
	validator.Field("password", password, "Password").
		NotEmpty().
		MaxLength(72)
	validator.Field("permission", permission, "Permission").
		Required().
		OneOf(errors.ErrCodeInvalidPermission, permissionNames()...)
	return validator.Validate()
}

func ValidateNewPassword(password string) *errors.AppError {
	validator := NewValidator()
	validator.Field("new_password", password, "New password").
		NotEmpty().
		MaxLength(72)
	return validator.Validate()
}

func ValidateUserID(id int64) *errors.AppError {
	validator := NewValidator()
	validator.Field("user_id", id, "User id").
		Positive()
	return validator.Validate()
}
