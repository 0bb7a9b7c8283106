package shared

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates rejected input; nothing was written.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a duplicate key or an already processed request.
	ErrConflict = errors.New("conflict")
	// ErrStorage indicates the record store was unreachable or rejected a write.
	ErrStorage = errors.New("storage failure")
	// ErrUpload indicates an image could not be stored.
	ErrUpload = errors.New("upload failed")
	// ErrPartialReconciliation indicates the outcome of a stock reconciliation is unknown
	// and must be checked by an operator.
	ErrPartialReconciliation = errors.New("partial reconciliation")
	// ErrTimeout indicates an external call exceeded its deadline; callers may retry.
	ErrTimeout = errors.New("operation timed out")
)

// FieldError reports an invalid or missing field.
type FieldError struct {
	Field   string
	Message string
}

// NewFieldError builds a FieldError.
func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match field errors.
func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

// StorageError classifies a database error. pgx.ErrNoRows becomes ErrNotFound,
// unique violations become ErrConflict and anything else is tagged ErrStorage.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w: %s", op, ErrConflict, pgErr.ConstraintName)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// IsUniqueViolation reports whether err is a postgres unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// UserSafeMessage returns a message suitable for API clients.
func UserSafeMessage(err error) string {
	var fieldErr *FieldError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fieldErr):
		return fieldErr.Error()
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err.Error()
	case errors.Is(err, ErrPartialReconciliation):
		return "invoice saved with an uncertain stock adjustment, please verify inventory"
	case errors.Is(err, ErrTimeout):
		return "the operation timed out, please retry"
	case errors.Is(err, ErrStorage):
		return "storage unavailable, please retry"
	default:
		return "internal error"
	}
}
