package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/solatis/rulesmith/internal/types"
)

// Outcome classifies one generation attempt.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeModelUnavailable  Outcome = "model_unavailable"
	OutcomeMalformedResponse Outcome = "malformed_response"
	OutcomeEmptyRuleSet      Outcome = "empty_rule_set"
	OutcomeInvalidReference  Outcome = "invalid_reference"
	OutcomeError             Outcome = "error"
)

// Attempt describes one model invocation. Rule content is not recorded.
type Attempt struct {
	ID        types.AttemptID
	SessionID types.SessionID
	Phase     Phase
	Outcome   Outcome
	Error     string
	Model     string
	RuleCount int
	Duration  time.Duration
	CreatedAt time.Time
}

// Recorder receives attempts as they complete.
type Recorder interface {
	RecordAttempt(ctx context.Context, a Attempt) error
}

// OutcomeOf maps a generation error onto its Outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, types.ErrModelUnavailable):
		return OutcomeModelUnavailable
	case errors.Is(err, types.ErrMalformedResponse):
		return OutcomeMalformedResponse
	case errors.Is(err, types.ErrEmptyRuleSet):
		return OutcomeEmptyRuleSet
	case errors.Is(err, types.ErrInvalidReference):
		return OutcomeInvalidReference
	default:
		return OutcomeError
	}
}
