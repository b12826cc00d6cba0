package llm

import (
	"errors"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/markdave123-py/ragline/internal/core/retry"
)

// classifyGoogleError marks errors the Gemini API will keep returning as
// permanent so the gateways stop retrying them.
func classifyGoogleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return retry.ClassifyHTTPStatus(gerr.Code, err)
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.InvalidArgument,
			codes.PermissionDenied,
			codes.Unauthenticated,
			codes.NotFound,
			codes.FailedPrecondition:
			return retry.Permanent(err)
		}
	}
	return err
}
