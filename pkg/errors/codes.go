package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal       ErrorCode = "CORE_001"
	ErrCodeBadRequest     ErrorCode = "CORE_002"
	ErrCodeNotFound       ErrorCode = "CORE_003"
	ErrCodeTimeout        ErrorCode = "CORE_004"
	ErrCodeUpstream       ErrorCode = "CORE_005"
	ErrCodeNotImplemented ErrorCode = "CORE_006"
	ErrCodeSerialization  ErrorCode = "CORE_007"
	ErrCodeConfig         ErrorCode = "CORE_008"

	CodeOK ErrorCode = "OK"
)

// Media pipeline error codes.
const (
	ErrCodeMediaDecodeFailed    ErrorCode = "MEDIA_001"
	ErrCodeMediaEncodeFailed    ErrorCode = "MEDIA_002"
	ErrCodeMediaTypeUnsupported ErrorCode = "MEDIA_003"
)

// Task registry error codes.
const (
	ErrCodeTaskNotFound    ErrorCode = "TASK_001"
	ErrCodeInferenceFailed ErrorCode = "TASK_002"
)

// Result serializer error codes.
const (
	ErrCodeFieldConflict ErrorCode = "CSV_001"
)

// Messaging error codes.
const (
	ErrCodePublishFailed ErrorCode = "MSG_001"
)

// ErrorCodeHTTPStatus maps ErrorCodes to the HTTP status a front end is
// expected to return.  Anything not listed maps to 500.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:       http.StatusInternalServerError,
	ErrCodeBadRequest:     http.StatusBadRequest,
	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeTimeout:        http.StatusInternalServerError,
	ErrCodeUpstream:       http.StatusInternalServerError,
	ErrCodeNotImplemented: http.StatusNotImplemented,
	ErrCodeSerialization:  http.StatusInternalServerError,
	ErrCodeConfig:         http.StatusInternalServerError,

	ErrCodeMediaDecodeFailed:    http.StatusBadRequest,
	ErrCodeMediaEncodeFailed:    http.StatusInternalServerError,
	ErrCodeMediaTypeUnsupported: http.StatusBadRequest,

	ErrCodeTaskNotFound:    http.StatusNotFound,
	ErrCodeInferenceFailed: http.StatusInternalServerError,

	ErrCodeFieldConflict: http.StatusInternalServerError,
	ErrCodePublishFailed: http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:       "internal server error",
	ErrCodeBadRequest:     "invalid parameter",
	ErrCodeNotFound:       "resource not found",
	ErrCodeTimeout:        "deadline exceeded",
	ErrCodeUpstream:       "upstream request failed",
	ErrCodeNotImplemented: "not implemented",
	ErrCodeSerialization:  "serialization failed",
	ErrCodeConfig:         "invalid configuration",

	ErrCodeMediaDecodeFailed:    "failed to decode media payload",
	ErrCodeMediaEncodeFailed:    "failed to encode media result",
	ErrCodeMediaTypeUnsupported: "unsupported media type",

	ErrCodeTaskNotFound:    "algorithm is not found",
	ErrCodeInferenceFailed: "inference failed",

	ErrCodeFieldConflict: "csv field conflict",
	ErrCodePublishFailed: "failed to publish notification",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether the ErrorCode maps to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether the ErrorCode maps to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
