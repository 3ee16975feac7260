package vybiumfactregistry

import "github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"

// ErrorCode represents a fact registry error code
type ErrorCode = core.ErrorCode

// Error represents a fact registry error
type Error = core.Error

const (
	ErrUnknown             = core.ErrUnknown
	ErrValidation          = core.ErrValidation
	ErrLayout              = core.ErrLayout
	ErrNotFound            = core.ErrNotFound
	ErrConfig              = core.ErrConfig
	ErrUnsupportedVerifier = core.ErrUnsupportedVerifier
	ErrIdentityMismatch    = core.ErrIdentityMismatch
	ErrStorage             = core.ErrStorage
)

// Sentinels for errors.Is
var (
	ValidationError          = core.ValidationError
	LayoutError              = core.LayoutError
	NotFoundError            = core.NotFoundError
	ConfigError              = core.ConfigError
	UnsupportedVerifierError = core.UnsupportedVerifierError
	IdentityMismatchError    = core.IdentityMismatchError
	StorageError             = core.StorageError
)

// CodeOf extracts the code of err, or ErrUnknown
func CodeOf(err error) ErrorCode {
	return core.CodeOf(err)
}
