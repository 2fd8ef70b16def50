package aws

import (
	"errors"

	"github.com/aws/smithy-go"
)

// ErrorCode extracts the AWS service error code from a wrapped SDK error,
// or "" when the error did not come from an AWS service.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
