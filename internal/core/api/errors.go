package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/types"
)

var (
	// ErrSessionNotFound indicates an unknown or evicted session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions indicates the session cap is reached after eviction.
	ErrTooManySessions = errors.New("too many active sessions")

	// ErrNotConfirmed indicates an export before the user confirmed a rule.
	ErrNotConfirmed = errors.New("no confirmed rule to export")

	// ErrInvalidRequest indicates a missing or mistyped request field.
	ErrInvalidRequest = errors.New("invalid request")
)

// toStatus maps service errors onto gRPC status codes.
// Errors that already carry a status pass through.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, ErrSessionNotFound):
		code = codes.NotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, conversation.ErrMessageTooLong):
		code = codes.InvalidArgument
	case errors.Is(err, ErrNotConfirmed):
		code = codes.FailedPrecondition
	case errors.Is(err, ErrTooManySessions):
		code = codes.ResourceExhausted
	case errors.Is(err, types.ErrModelUnavailable):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}
