package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found", http.StatusNotFound)
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeTimeout, "timed out", http.StatusGatewayTimeout)
	if !err.Retryable {
		t.Error("TIMEOUT should be retryable")
	}
}

func TestAppError_DuplicateInstance(t *testing.T) {
	err := DuplicateInstance("splitter")
	if err.Code != ErrCodeDuplicateInstance {
		t.Errorf("expected DUPLICATE_INSTANCE, got %s", err.Code)
	}
	if !strings.Contains(err.Error(), "'splitter' is not unique") {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if err.Details["componentInstance"] != "splitter" {
		t.Errorf("expected componentInstance detail, got %v", err.Details)
	}
}

func TestAppError_TypeNotFound_ListsNamespaces(t *testing.T) {
	err := TypeNotFound("Nope", []string{"Nope", "fintan.core.Nope"})
	if err.Code != ErrCodeTypeNotFound {
		t.Errorf("expected TYPE_NOT_FOUND, got %s", err.Code)
	}
	if !strings.Contains(err.Message, "fintan.core.Nope") {
		t.Errorf("expected tried names in message, got %q", err.Message)
	}
}

func TestAppError_LinkState_Direction(t *testing.T) {
	in := LinkState("x", "input")
	out := LinkState("x", "output")
	if !strings.Contains(in.Message, "InputStream: x") {
		t.Errorf("unexpected input message %q", in.Message)
	}
	if !strings.Contains(out.Message, "OutputStream: x") {
		t.Errorf("unexpected output message %q", out.Message)
	}
}

func TestAppError_Wiring(t *testing.T) {
	err := Wiring("loader", "a", "slot is already occupied")
	if err.Code != ErrCodeWiring {
		t.Errorf("expected WIRING, got %s", err.Code)
	}
	if err.Details["stream"] != "a" || err.Details["instance"] != "loader" {
		t.Errorf("unexpected details %v", err.Details)
	}
}

func TestAppError_Is_MatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("write: %w", StreamClosed())
	if !stderrors.Is(wrapped, StreamClosed()) {
		t.Error("expected errors.Is to match STREAM_CLOSED")
	}
	if stderrors.Is(wrapped, Internal(nil)) {
		t.Error("did not expect match against INTERNAL_ERROR")
	}
}

func TestAppError_Internal_Success(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := Internal(cause)
	if err.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %s", err.Code)
	}
	if err.Cause != cause {
		t.Error("expected cause to be set")
	}
	if err.Retryable {
		t.Error("Internal should NOT be retryable by default")
	}
}

func TestAppError_ExternalService_Retryable(t *testing.T) {
	err := ExternalServiceError("openapi", fmt.Errorf("502"))
	if !err.Retryable {
		t.Error("EXTERNAL_SERVICE_ERROR should be retryable")
	}
	if !IsRetryable(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsRetryable should see through wrapping")
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("no such file")
	err := Resource("in.ttl", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if !strings.Contains(err.Error(), "cause: no such file") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := ConfigInvalid("bad").WithDetail("field", "streams").WithDetails(map[string]any{"index": 2})
	if err.Details["field"] != "streams" || err.Details["index"] != 2 {
		t.Errorf("unexpected details %v", err.Details)
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("build: %w", LinkState("a", "output"))
	if !IsCode(err, ErrCodeLinkState) {
		t.Error("expected LINK_STATE")
	}
	if IsCode(err, ErrCodeWiring) {
		t.Error("did not expect WIRING")
	}
	if IsCode(fmt.Errorf("plain"), ErrCodeLinkState) {
		t.Error("plain errors carry no code")
	}
}

func TestToResponse(t *testing.T) {
	resp := MissingField("class").ToResponse()
	if resp.Error.Code != ErrCodeMissingField {
		t.Errorf("expected MISSING_FIELD, got %s", resp.Error.Code)
	}
	if resp.Error.Details["field"] != "class" {
		t.Errorf("expected field detail, got %v", resp.Error.Details)
	}
}

func TestAsAppError(t *testing.T) {
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("plain error should not convert")
	}
	appErr, ok := AsAppError(fmt.Errorf("wrapped: %w", NotFound("pipeline", "x")))
	if !ok || appErr.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND AppError, got %v", appErr)
	}
}
