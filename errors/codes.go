package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Build-time errors. A pipeline that fails with one of these never starts.
const (
	// ErrCodeConfigInvalid indicates a malformed or contradictory pipeline configuration.
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ErrCodeTypeNotFound indicates a component class that no namespace resolves.
	ErrCodeTypeNotFound ErrorCode = "TYPE_NOT_FOUND"
	// ErrCodeDuplicateInstance indicates a componentInstance declared twice.
	ErrCodeDuplicateInstance ErrorCode = "DUPLICATE_INSTANCE"
	// ErrCodeWiring indicates an occupied, unsupported or incompatible stream slot.
	ErrCodeWiring ErrorCode = "WIRING"
	// ErrCodeLinkState indicates a component left without inputs or outputs.
	ErrCodeLinkState ErrorCode = "LINK_STATE"
)

// Run-time errors
const (
	// ErrCodeStreamClosed indicates a write to a terminated stream.
	ErrCodeStreamClosed ErrorCode = "STREAM_CLOSED"
	// ErrCodeSegment indicates a data segment that could not be processed.
	ErrCodeSegment ErrorCode = "SEGMENT"
	// ErrCodeResource indicates a file, URL or bucket that could not be opened.
	ErrCodeResource ErrorCode = "RESOURCE"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	// ErrCodeRateLimited indicates the service is at capacity.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Generic errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:         true,
	ErrCodeExternalService: true,
	ErrCodeRateLimited:     true,
	ErrCodeResource:        false,
	ErrCodeInternal:        false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
