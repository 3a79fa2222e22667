package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrGuideRequired is wrapped by the ValidationError returned when an
	// order would reach shipped/delivered without a guide or local delivery.
	ErrGuideRequired = errors.New("se requiere guía de envío o marcar entrega local")

	// ErrOrderCancelled is returned for workflow actions on cancelled orders.
	ErrOrderCancelled = errors.New("el pedido está cancelado")

	// ErrAuthorization is returned when the administrator secret does not match.
	ErrAuthorization = errors.New("contraseña maestra incorrecta")
)

// Redirect names the edit surface the caller should open to fix a
// validation problem.
const RedirectDetailEdit = "detail_edit"

// ValidationError aborts a mutation before anything is written.
type ValidationError struct {
	Field    string
	Message  string
	Redirect string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuthorization reports whether err is (or wraps) ErrAuthorization.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrAuthorization)
}
