package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code, so callers
// can match freshly constructed errors against package-level values.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Pipeline construction ---

// ConfigInvalid creates an error for a configuration that cannot be built.
func ConfigInvalid(reason string) *AppError {
	return &AppError{
		Code: ErrCodeConfigInvalid, Message: reason,
		HTTPStatus: http.StatusBadRequest,
	}
}

// TypeNotFound creates an error for a component class that resolves in no namespace.
func TypeNotFound(class string, tried []string) *AppError {
	return &AppError{
		Code: ErrCodeTypeNotFound,
		Message: fmt.Sprintf("class %q not found in any default namespace (tried %s); please provide the fully qualified name",
			class, strings.Join(tried, ", ")),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"class": class},
	}
}

// DuplicateInstance creates an error for a componentInstance identifier declared twice.
func DuplicateInstance(id string) *AppError {
	return &AppError{
		Code: ErrCodeDuplicateInstance, Message: fmt.Sprintf("'componentInstance' : '%s' is not unique", id),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"componentInstance": id},
	}
}

// Wiring creates an error for a stream slot that cannot be connected.
func Wiring(instance, slot, reason string) *AppError {
	return &AppError{
		Code:       ErrCodeWiring,
		Message:    fmt.Sprintf("component '%s', stream '%s': %s", instance, slot, reason),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"instance": instance, "stream": slot},
	}
}

// LinkState creates an error for a component without any connected input or output.
// direction is "input" or "output".
func LinkState(instance, direction string) *AppError {
	name := "InputStream"
	if direction == "output" {
		name = "OutputStream"
	}
	return &AppError{
		Code:       ErrCodeLinkState,
		Message:    fmt.Sprintf("component has no valid %s: %s", name, instance),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"instance": instance, "direction": direction},
	}
}

// --- Pipeline execution ---

// StreamClosed creates an error for a write to a terminated stream.
func StreamClosed() *AppError {
	return &AppError{
		Code: ErrCodeStreamClosed, Message: "write to terminated stream",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Segment creates an error for a data segment that could not be processed.
func Segment(reason string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeSegment, Message: reason,
		HTTPStatus: http.StatusUnprocessableEntity, Cause: cause,
	}
}

// Resource creates an error for an external endpoint that could not be opened.
func Resource(ref string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeResource, Message: fmt.Sprintf("cannot open %s", ref),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"ref": ref}, Cause: cause,
	}
}

// Timeout creates a new AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "the operation took too long",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// ExternalServiceError creates a new AppError for an error from an external service.
func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalService, Message: fmt.Sprintf("the %s service encountered an error", service),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}

// RateLimited creates an error for a request refused because the service is at capacity.
func RateLimited(reason string) *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: reason,
		HTTPStatus: http.StatusTooManyRequests, Retryable: true,
	}
}

// --- Generic ---

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("the requested %s was not found", resource),
		HTTPStatus: http.StatusNotFound, Details: details,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}
