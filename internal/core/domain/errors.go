package domain

import (
	"errors"
	"fmt"
)

// DomainError is a classified outcome carrying a stable error code.
// Codes have the form BB-<AREA>-<NNNN>; the last four digits start with the
// HTTP status class the serving layer maps the error to.
type DomainError struct {
	Code    string // Error code (e.g., "BB-POOL-4290")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRetryable reports whether the caller may retry the operation that
// produced err. Only transport failures are retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// ============================================================================
// Snapshot Errors (SNAP)
// ============================================================================

var (
	// ErrTransientCopy marks an expected copy artifact (vanished or ignorable
	// file). It is absorbed by the snapshot store and never returned.
	ErrTransientCopy = NewDomainError("BB-SNAP-1000", "transient copy condition")

	// ErrCopyRetryExhausted indicates every copy attempt hit a non-ignorable failure.
	ErrCopyRetryExhausted = NewDomainError("BB-SNAP-5001", "snapshot copy retries exhausted")

	// ErrSnapshotInvalid indicates the descriptor file is missing or does not parse.
	ErrSnapshotInvalid = NewDomainError("BB-SNAP-4001", "invalid snapshot")

	// ErrSnapshotWrite indicates the snapshot target could not be prepared.
	ErrSnapshotWrite = NewDomainError("BB-SNAP-5002", "snapshot write failed")
)

// ============================================================================
// Archive Errors (ARCH)
// ============================================================================

var (
	// ErrPack indicates the snapshot could not be packed.
	ErrPack = NewDomainError("BB-ARCH-5001", "pack failed")

	// ErrUnpack indicates a corrupt or truncated archive.
	ErrUnpack = NewDomainError("BB-ARCH-4001", "unpack failed")

	// ErrUnsafeArchiveEntry indicates an archive entry escaping the target directory.
	ErrUnsafeArchiveEntry = NewDomainError("BB-ARCH-4002", "unsafe archive entry")
)

// ============================================================================
// Transport Errors (TRAN)
// ============================================================================

var (
	// ErrTransport indicates a failed transfer. Retryable.
	ErrTransport = NewDomainError("BB-TRAN-5020", "transport failed")

	// ErrLocatorUnsupported indicates no transport handles the locator scheme.
	ErrLocatorUnsupported = NewDomainError("BB-TRAN-4001", "unsupported locator")
)

// ============================================================================
// Pool Errors (POOL)
// ============================================================================

var (
	// ErrPoolExhausted indicates admission control rejected the request.
	ErrPoolExhausted = NewDomainError("BB-POOL-4290", "Browser pool exhausted")

	// ErrInstanceUnavailable indicates the instance is unknown or in use.
	ErrInstanceUnavailable = NewDomainError("BB-POOL-4090", "instance unavailable")

	// ErrEnvironmentUnavailable indicates materialization of an environment failed.
	ErrEnvironmentUnavailable = NewDomainError("BB-POOL-5020", "environment unavailable")

	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = NewDomainError("BB-POOL-5030", "pool closed")

	// ErrTaskFailed indicates the task runner failed on an acquired instance.
	ErrTaskFailed = NewDomainError("BB-POOL-5001", "task execution failed")
)

// ============================================================================
// Upload Errors (UPLD)
// ============================================================================

var (
	// ErrUploadNotFound indicates the upload or archive does not exist.
	ErrUploadNotFound = NewDomainError("BB-UPLD-4040", "upload not found")

	// ErrUploadOffsetMismatch indicates a chunk did not start at the committed offset.
	ErrUploadOffsetMismatch = NewDomainError("BB-UPLD-4090", "upload offset mismatch")

	// ErrUploadCompleted indicates the upload no longer accepts chunks.
	ErrUploadCompleted = NewDomainError("BB-UPLD-4091", "upload already completed")

	// ErrChunkTooLarge indicates a chunk larger than the fixed block size.
	ErrChunkTooLarge = NewDomainError("BB-UPLD-4130", "chunk too large")

	// ErrUploadOverflow indicates data beyond the declared size.
	ErrUploadOverflow = NewDomainError("BB-UPLD-4160", "upload exceeds declared size")

	// ErrUploadIncomplete indicates completion was requested before all bytes arrived.
	ErrUploadIncomplete = NewDomainError("BB-UPLD-4220", "upload incomplete")

	// ErrChecksumMismatch indicates the completed data does not match the digest.
	ErrChecksumMismatch = NewDomainError("BB-UPLD-4221", "checksum mismatch")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrAPIKeyMissing indicates no API key was provided.
	ErrAPIKeyMissing = NewDomainError("BB-AUTH-4010", "api key not provided")

	// ErrAPIKeyInvalid indicates the API key is not accepted.
	ErrAPIKeyInvalid = NewDomainError("BB-AUTH-4011", "invalid api key")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("BB-SYS-5000", "Internal server error")

	// ErrStorageError indicates a storage layer error.
	ErrStorageError = NewDomainError("BB-SYS-5001", "storage error")

	// ErrServiceUnavailable indicates the service is temporarily unavailable.
	ErrServiceUnavailable = NewDomainError("BB-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("BB-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("BB-SYS-4290", "too many requests")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("BB-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("BB-ARG-1002", "missing required argument")
)
