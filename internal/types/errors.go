package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for rulesmith operations.
var (
	// ErrUnknownSource indicates a data source absent from the schema registry.
	ErrUnknownSource = errors.New("unknown data source")

	// ErrInvalidReference indicates a field that could not be resolved, even
	// after case and alias correction.
	ErrInvalidReference = errors.New("invalid field reference")

	// ErrGeneration matches every failure of a generation attempt.
	ErrGeneration = errors.New("rule generation failed")

	// ErrModelUnavailable indicates a transport or authentication failure of the model call.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrMalformedResponse indicates model output with no JSON object, invalid
	// JSON, or a rule tree outside the closed schema.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrEmptyRuleSet indicates valid model output that carried no usable rules.
	ErrEmptyRuleSet = errors.New("no rules produced")

	// ErrEmptyRequirement indicates a requirement that is blank after normalization.
	ErrEmptyRequirement = errors.New("requirement is empty")

	// ErrDuplicateSource indicates a data source declared twice in a registry.
	ErrDuplicateSource = errors.New("duplicate data source")

	// ErrDuplicateField indicates a field declared twice within one data source.
	ErrDuplicateField = errors.New("duplicate field")

	// ErrCoercionFailed indicates a fact value that cannot be read as a number.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrNotCompilable indicates a rule that cannot be evaluated against facts,
	// such as an aggregate without a field or a period on a source without dates.
	ErrNotCompilable = errors.New("rule not evaluable")
)

// UnknownSourceError reports the offending data source.
type UnknownSourceError struct {
	Source string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown data source %q", e.Source)
}

func (e *UnknownSourceError) Is(target error) bool {
	return target == ErrUnknownSource
}

// InvalidReferenceError reports the first unresolved (source, field) pair.
// Err carries the cause; an unknown source wraps *UnknownSourceError.
type InvalidReferenceError struct {
	Source string
	Field  string
	Err    error
}

func (e *InvalidReferenceError) Error() string {
	if e.Err != nil && errors.Is(e.Err, ErrUnknownSource) {
		return fmt.Sprintf("invalid reference %s.%s: %v", e.Source, e.Field, e.Err)
	}
	return fmt.Sprintf("invalid reference: field %q is not a column of %q", e.Field, e.Source)
}

func (e *InvalidReferenceError) Is(target error) bool {
	return target == ErrInvalidReference
}

func (e *InvalidReferenceError) Unwrap() error {
	return e.Err
}

// ModelUnavailableError wraps the transport error of a failed model call.
type ModelUnavailableError struct {
	Err error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model unavailable: %v", e.Err)
}

func (e *ModelUnavailableError) Is(target error) bool {
	return target == ErrModelUnavailable || target == ErrGeneration
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}

// MalformedResponseError explains why model output could not become a RuleSet.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed model response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed model response: %s", e.Reason)
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse || target == ErrGeneration
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// EmptyRuleSetError indicates the model answered with a RuleSet holding no rules.
type EmptyRuleSetError struct{}

func (e *EmptyRuleSetError) Error() string {
	return "model response contained no rules"
}

func (e *EmptyRuleSetError) Is(target error) bool {
	return target == ErrEmptyRuleSet || target == ErrGeneration
}
