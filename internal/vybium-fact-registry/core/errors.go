package core

import (
	"errors"
	"fmt"
)

// ErrorCode represents a fact registry error code
type ErrorCode int

const (
	// ErrUnknown represents an unknown error
	ErrUnknown ErrorCode = iota

	// ErrValidation represents malformed, empty or non-canonical input
	ErrValidation

	// ErrLayout represents task metadata inconsistent with committed pages
	ErrLayout

	// ErrNotFound represents a reference to an unregistered page
	ErrNotFound

	// ErrConfig represents a bad construction-time setup
	ErrConfig

	// ErrUnsupportedVerifier represents an unrecognized sub-verifier id
	ErrUnsupportedVerifier

	// ErrIdentityMismatch represents a bootloader identity other than the configured one
	ErrIdentityMismatch

	// ErrStorage represents a persistence backend failure
	ErrStorage
)

var codeNames = map[ErrorCode]string{
	ErrUnknown:             "unknown",
	ErrValidation:          "validation",
	ErrLayout:              "layout",
	ErrNotFound:            "not found",
	ErrConfig:              "config",
	ErrUnsupportedVerifier: "unsupported verifier",
	ErrIdentityMismatch:    "identity mismatch",
	ErrStorage:             "storage",
}

// String returns the code name
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error represents a fact registry error
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fact registry %s error: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("fact registry %s error: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is; only the code is compared.
var (
	ValidationError          = &Error{Code: ErrValidation, Message: "invalid input"}
	LayoutError              = &Error{Code: ErrLayout, Message: "inconsistent layout"}
	NotFoundError            = &Error{Code: ErrNotFound, Message: "not found"}
	ConfigError              = &Error{Code: ErrConfig, Message: "bad configuration"}
	UnsupportedVerifierError = &Error{Code: ErrUnsupportedVerifier, Message: "unsupported verifier"}
	IdentityMismatchError    = &Error{Code: ErrIdentityMismatch, Message: "identity mismatch"}
	StorageError             = &Error{Code: ErrStorage, Message: "storage failure"}
)

// Validationf builds an ErrValidation error
func Validationf(format string, args ...any) error {
	return &Error{Code: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// Layoutf builds an ErrLayout error
func Layoutf(format string, args ...any) error {
	return &Error{Code: ErrLayout, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds an ErrNotFound error
func NotFoundf(format string, args ...any) error {
	return &Error{Code: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// Configf builds an ErrConfig error
func Configf(format string, args ...any) error {
	return &Error{Code: ErrConfig, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new error with the given code
func Wrap(code ErrorCode, cause error, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf extracts the code of err, or ErrUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}
