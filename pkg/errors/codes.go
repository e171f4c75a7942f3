package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.  The
// prefix before the underscore names the module that owns the code.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
)

// Lore module error codes.
const (
	ErrCodeRuleFileUnreadable ErrorCode = "LORE_001"
	ErrCodeRuleFileMalformed  ErrorCode = "LORE_002"
	ErrCodeInvalidRegex       ErrorCode = "LORE_003"
	ErrCodeAutomatonBuild     ErrorCode = "LORE_004"
	ErrCodeCalendarMalformed  ErrorCode = "LORE_005"
	ErrCodeInvalidProject     ErrorCode = "LORE_006"
	ErrCodeRuleNotFound       ErrorCode = "LORE_007"
	ErrCodeDirectoryLookup    ErrorCode = "LORE_008"
	ErrCodeEventPublish       ErrorCode = "LORE_009"
)

// Sentinel-like codes used by GetCode and Wrap.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	CodeOK:                    http.StatusOK,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusBadRequest,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusNotImplemented,

	ErrCodeRuleFileUnreadable: http.StatusInternalServerError,
	ErrCodeRuleFileMalformed:  http.StatusInternalServerError,
	ErrCodeInvalidRegex:       http.StatusInternalServerError,
	ErrCodeAutomatonBuild:     http.StatusInternalServerError,
	ErrCodeCalendarMalformed:  http.StatusInternalServerError,
	ErrCodeInvalidProject:     http.StatusBadRequest,
	ErrCodeRuleNotFound:       http.StatusNotFound,
	ErrCodeDirectoryLookup:    http.StatusBadGateway,
	ErrCodeEventPublish:       http.StatusBadGateway,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",

	ErrCodeRuleFileUnreadable: "rule file could not be read",
	ErrCodeRuleFileMalformed:  "rule file is malformed",
	ErrCodeInvalidRegex:       "pattern rule regex is invalid",
	ErrCodeAutomatonBuild:     "dictionary automaton could not be built",
	ErrCodeCalendarMalformed:  "calendar configuration is malformed",
	ErrCodeInvalidProject:     "invalid project id",
	ErrCodeRuleNotFound:       "rule document not found",
	ErrCodeDirectoryLookup:    "entity directory lookup failed",
	ErrCodeEventPublish:       "annotation event publish failed",
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

// IsClientError returns true if the ErrorCode corresponds to a 4xx status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
