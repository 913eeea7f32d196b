package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
	"github.com/semmidev/stashd/internal/domain"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var googleRateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

var awsAuthCodes = map[string]bool{
	"AccessDenied":          true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
	"AllAccessDisabled":     true,
}

// classifyGoogle wraps a Drive API error with ErrRemoteAuth or
// ErrRemoteUnavailable. Context errors are passed through unclassified.
func classifyGoogle(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s: %w", domain.ErrRemoteAuth, op, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %w", domain.ErrRemoteAuth, op, err)
		case http.StatusForbidden:
			for _, item := range apiErr.Errors {
				if googleRateLimitReasons[item.Reason] {
					return fmt.Errorf("%w: %s: %w", domain.ErrRemoteUnavailable, op, err)
				}
			}
			return fmt.Errorf("%w: %s: %w", domain.ErrRemoteAuth, op, err)
		}
	}

	return fmt.Errorf("%w: %s: %w", domain.ErrRemoteUnavailable, op, err)
}

func classifyAWS(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && awsAuthCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("%w: %s: %w", domain.ErrRemoteAuth, op, err)
	}

	return fmt.Errorf("%w: %s: %w", domain.ErrRemoteUnavailable, op, err)
}

func isGoogleNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
