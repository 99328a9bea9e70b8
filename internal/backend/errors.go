package backend

import (
	"context"
	"errors"

	appErrors "github.com/frahmantamala/admin-console/internal"
)

// ToAppError classifies a driver error: procedure errors keep the backend's
// message, missing rows become ErrUserNotFound and everything else is a
// transport failure.
func ToAppError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := appErrors.IsAppError(err); ok {
		return err
	}
	if pe, ok := IsProcedureError(err); ok {
		return appErrors.NewProcedureError(pe.Message, err)
	}
	if errors.Is(err, ErrNotFound) {
		return appErrors.ErrUserNotFound.WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.NewBackendError("Backend request timed out.", err)
	}
	return appErrors.NewBackendError("Backend request failed.", err)
}
