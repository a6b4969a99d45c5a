package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// ErrorCode returns the provider error code carried by err, or "" when err is
// not an API error.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsNotFound reports whether err means the referenced resource no longer exists.
// Codes look like InvalidVpcID.NotFound, InvalidGroup.NotFound,
// InvalidAllocationID.NotFound or LoadBalancerNotFound.
func IsNotFound(err error) bool {
	code := ErrorCode(err)
	if code == "" {
		return false
	}
	return strings.HasSuffix(code, ".NotFound") || strings.HasSuffix(code, "NotFound")
}

// IsDuplicate reports whether err means the requested rule or association
// already exists.
func IsDuplicate(err error) bool {
	code := ErrorCode(err)
	return strings.HasSuffix(code, ".Duplicate") || code == "Resource.AlreadyAssociated"
}

// IsThrottling reports whether err is a provider rate limit response
func IsThrottling(err error) bool {
	switch ErrorCode(err) {
	case "RequestLimitExceeded", "Throttling", "ThrottlingException", "SlowDown", "TooManyRequestsException":
		return true
	}
	return false
}

// APIError builds a smithy API error. The in-memory clients use it so callers
// see the same error shape as from the real service.
func APIError(code, message string) error {
	return &smithy.GenericAPIError{Code: code, Message: message, Fault: smithy.FaultClient}
}
