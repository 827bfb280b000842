// Package errors provides unified error handling for the capture pipeline.
// Codes follow the pipeline's error taxonomy and map onto gRPC status codes so
// the same error can cross the recognizer boundary in either direction.
package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain attached to gRPC statuses.
const Domain = "screen-ocr"

// Code classifies an AppError.
type Code string

const (
	CodeUnknown                  Code = "UNKNOWN"
	CodeInternal                 Code = "INTERNAL"
	CodeUnavailable              Code = "UNAVAILABLE"
	CodeTimeout                  Code = "TIMEOUT"
	CodeCancelled                Code = "CANCELLED"
	CodeConfigInvalid            Code = "CONFIG_INVALID"
	CodeRegionOutOfBounds        Code = "REGION_OUT_OF_BOUNDS"
	CodeAlreadyActive            Code = "ALREADY_ACTIVE"
	CodeNotActive                Code = "NOT_ACTIVE"
	CodeInvalidGrant             Code = "INVALID_GRANT"
	CodeResourceAllocationFailed Code = "RESOURCE_ALLOCATION_FAILED"
	CodeResourceReleaseFailed    Code = "RESOURCE_RELEASE_FAILED"
	CodeRecognitionFailed        Code = "RECOGNITION_FAILED"
	CodeBusy                     Code = "BUSY"
)

func (c Code) String() string { return string(c) }

// grpcCodeMap maps Code to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	CodeUnknown:                  codes.Unknown,
	CodeInternal:                 codes.Internal,
	CodeUnavailable:              codes.Unavailable,
	CodeTimeout:                  codes.DeadlineExceeded,
	CodeCancelled:                codes.Canceled,
	CodeConfigInvalid:            codes.InvalidArgument,
	CodeRegionOutOfBounds:        codes.OutOfRange,
	CodeAlreadyActive:            codes.AlreadyExists,
	CodeNotActive:                codes.FailedPrecondition,
	CodeInvalidGrant:             codes.PermissionDenied,
	CodeResourceAllocationFailed: codes.ResourceExhausted,
	CodeResourceReleaseFailed:    codes.Internal,
	CodeRecognitionFailed:        codes.Internal,
	CodeBusy:                     codes.Unavailable,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// ToProto converts to an ErrorInfo detail.
func (e *AppError) ToProto() *errdetails.ErrorInfo {
	info := &errdetails.ErrorInfo{Reason: string(e.Code), Domain: Domain}
	if len(e.Metadata) > 0 {
		info.Metadata = e.Metadata
	}
	return info
}

// GRPCStatus returns a gRPC status with the ErrorInfo attached.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Message)
	if withDetail, err := st.WithDetails(e.ToProto()); err == nil {
		return withDetail
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError extracts an AppError from a gRPC error if present.
func FromGRPCError(err error) *AppError {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == Domain {
			return &AppError{
				Code:     Code(info.GetReason()),
				Message:  st.Message(),
				Metadata: info.GetMetadata(),
				Cause:    err,
			}
		}
	}

	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message(), Cause: err}
}

// grpcToCode maps gRPC codes back to our codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return CodeConfigInvalid
	case codes.OutOfRange:
		return CodeRegionOutOfBounds
	case codes.Unavailable:
		return CodeUnavailable
	case codes.DeadlineExceeded:
		return CodeTimeout
	case codes.Canceled:
		return CodeCancelled
	case codes.Internal:
		return CodeInternal
	case codes.AlreadyExists:
		return CodeAlreadyActive
	case codes.PermissionDenied:
		return CodeInvalidGrant
	case codes.ResourceExhausted:
		return CodeResourceAllocationFailed
	default:
		return CodeUnknown
	}
}

// CodeOf returns the code of the first AppError in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error chain carries a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// IsConfiguration reports whether err is a startup configuration error.
func IsConfiguration(err error) bool {
	return IsCode(err, CodeConfigInvalid) || IsCode(err, CodeRegionOutOfBounds)
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeTimeout, CodeBusy:
		return true
	default:
		return false
	}
}
