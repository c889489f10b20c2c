package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "ValidationError"
	KindNotFound          ErrorKind = "NotFound"
	KindStateConflict     ErrorKind = "StateConflict"
	KindInsufficientStock ErrorKind = "InsufficientStock"
	KindExceedsBalance    ErrorKind = "ExceedsBalance"
	KindExceedsRefundable ErrorKind = "ExceedsRefundable"
	KindTypeMismatch      ErrorKind = "TypeMismatch"
	KindNothingPending    ErrorKind = "NothingPending"
	KindPermissionDenied  ErrorKind = "PermissionDenied"
	KindUnrecoverable     ErrorKind = "Unrecoverable"
)

// AppError is a business error with a kind the transport layer can map.
// Message is safe to show to the caller.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any AppError of the same kind when the target carries no message,
// so errors.Is(err, ErrInsufficientStock) works for every stock shortage.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

var (
	ErrorRecordNotFound = errors.New("record not found")

	ErrValidation        = &AppError{Kind: KindValidation}
	ErrNotFound          = &AppError{Kind: KindNotFound}
	ErrStateConflict     = &AppError{Kind: KindStateConflict}
	ErrInsufficientStock = &AppError{Kind: KindInsufficientStock}
	ErrExceedsBalance    = &AppError{Kind: KindExceedsBalance}
	ErrExceedsRefundable = &AppError{Kind: KindExceedsRefundable}
	ErrTypeMismatch      = &AppError{Kind: KindTypeMismatch}
	ErrNothingPending    = &AppError{Kind: KindNothingPending}
	ErrPermissionDenied  = &AppError{Kind: KindPermissionDenied}
)

func NewAppError(kind ErrorKind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewValidationError(format string, args ...any) *AppError {
	return NewAppError(KindValidation, format, args...)
}

func NewStateConflict(format string, args ...any) *AppError {
	return NewAppError(KindStateConflict, format, args...)
}

func NewNotFound(what string, id int) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s %d not found", what, id), Err: ErrorRecordNotFound}
}

// Unrecoverable wraps an unexpected error; the caller only ever sees a generic message.
func Unrecoverable(err error) *AppError {
	return &AppError{Kind: KindUnrecoverable, Message: "internal error", Err: err}
}

// KindOf classifies any error returned by a business function.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrorRecordNotFound) {
		return KindNotFound
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return KindValidation
	}
	return KindUnrecoverable
}

// PublicMessage is what may be shown to the caller for err.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case "":
		return ""
	case KindUnrecoverable:
		return "internal error"
	case KindValidation:
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return validationMessage(verrs)
		}
	case KindNotFound:
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return ErrorRecordNotFound.Error()
		}
	}
	return err.Error()
}

func validationMessage(verrs validator.ValidationErrors) string {
	fields := ProcessValidationErrors(verrs)
	parts := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		parts = append(parts, ve.Field()+": "+fields[ve.Field()])
	}
	return "invalid input (" + strings.Join(parts, ", ") + ")"
}
