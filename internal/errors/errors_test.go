package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppErrorMessage(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, CodeResourceAllocationFailed, "sink allocation").WithMetadata("width", "1920")

	msg := err.Error()
	for _, want := range []string{"[RESOURCE_ALLOCATION_FAILED]", "sink allocation", "width:1920", "caused by: boom"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("start: %w", New(CodeAlreadyActive, "session active"))

	if !IsCode(err, CodeAlreadyActive) {
		t.Error("IsCode should see through fmt wrapping")
	}
	if IsCode(err, CodeBusy) {
		t.Error("IsCode matched the wrong code")
	}
	if CodeOf(err) != CodeAlreadyActive {
		t.Errorf("CodeOf = %v, want ALREADY_ACTIVE", CodeOf(err))
	}
	if CodeOf(stderrors.New("plain")) != CodeUnknown {
		t.Error("CodeOf on plain error should be UNKNOWN")
	}
}

func TestIsConfiguration(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(CodeConfigInvalid, "interval"), true},
		{New(CodeRegionOutOfBounds, "region"), true},
		{New(CodeInvalidGrant, "grant"), false},
		{stderrors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := IsConfiguration(tt.err); got != tt.want {
			t.Errorf("IsConfiguration(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(CodeUnavailable, "down")) {
		t.Error("UNAVAILABLE should be retryable")
	}
	if IsRetryable(New(CodeRecognitionFailed, "bad image")) {
		t.Error("RECOGNITION_FAILED should not be retryable")
	}
	if IsRetryable(stderrors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
}

func TestGRPCRoundTrip(t *testing.T) {
	orig := New(CodeRegionOutOfBounds, "region exceeds frame").WithMetadata("right", "2000")

	st := orig.GRPCStatus()
	if st.Code() != codes.OutOfRange {
		t.Fatalf("status code = %v, want OutOfRange", st.Code())
	}

	back := FromGRPCError(st.Err())
	if back.Code != CodeRegionOutOfBounds {
		t.Errorf("round-trip code = %v, want REGION_OUT_OF_BOUNDS", back.Code)
	}
	if back.Metadata["right"] != "2000" {
		t.Errorf("round-trip metadata = %v", back.Metadata)
	}
	if back.Message != "region exceeds frame" {
		t.Errorf("round-trip message = %q", back.Message)
	}
}

func TestFromGRPCErrorFallback(t *testing.T) {
	tests := []struct {
		code codes.Code
		want Code
	}{
		{codes.Unavailable, CodeUnavailable},
		{codes.DeadlineExceeded, CodeTimeout},
		{codes.Canceled, CodeCancelled},
		{codes.PermissionDenied, CodeInvalidGrant},
		{codes.DataLoss, CodeUnknown},
	}
	for _, tt := range tests {
		got := FromGRPCError(status.Error(tt.code, "x"))
		if got.Code != tt.want {
			t.Errorf("FromGRPCError(%v) = %v, want %v", tt.code, got.Code, tt.want)
		}
	}

	if FromGRPCError(stderrors.New("not grpc")).Code != CodeUnknown {
		t.Error("non-gRPC errors should map to UNKNOWN")
	}
	if FromGRPCError(nil) != nil {
		t.Error("nil error should map to nil")
	}
}
