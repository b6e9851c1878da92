package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solatis/rulesmith/internal/prompt"
	"github.com/solatis/rulesmith/internal/rules"
	"github.com/solatis/rulesmith/internal/schema"
	"github.com/solatis/rulesmith/internal/types"
)

var (
	// ErrEmptyMessage indicates user text that is blank after normalization.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong indicates user text above types.MaxMessageLength.
	ErrMessageTooLong = errors.New("message too long")

	// ErrUnknownPhase indicates a state whose phase the machine does not handle.
	ErrUnknownPhase = errors.New("unknown conversation phase")
)

// Generator produces a candidate RuleSet from an instruction with one model call.
type Generator interface {
	Generate(ctx context.Context, instruction string) (*types.RuleSet, error)
	ModelName() string
}

// Machine dispatches user messages according to the conversation phase.
// It holds no per-conversation data and is safe for concurrent use.
type Machine struct {
	registry  *schema.Registry
	generator Generator
	validator *rules.Validator
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithRecorder receives one Attempt per model invocation.
func WithRecorder(r Recorder) Option {
	return func(m *Machine) { m.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a machine over a read-only registry.
func NewMachine(reg *schema.Registry, gen Generator, val *rules.Validator, opts ...Option) *Machine {
	m := &Machine{
		registry:  reg,
		generator: gen,
		validator: val,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reset returns the initial state with the "new rule" greeting, keeping the session id.
func (m *Machine) Reset(st State) State {
	return initialState(st.SessionID, ResetGreeting)
}

// Handle processes one user message and returns the next state.
// st is never modified. Generation failures do not surface as errors: they
// become one assistant message, and every field except the transcript keeps
// its value from before the attempt.
// Errors are returned only for input rejected before any transition
// (ErrEmptyMessage, ErrMessageTooLong, ErrUnknownPhase); st is returned
// unchanged alongside them.
func (m *Machine) Handle(ctx context.Context, st State, text string) (State, error) {
	text = prompt.NormalizeText(text)
	if text == "" {
		return st, ErrEmptyMessage
	}
	if len(text) > types.MaxMessageLength {
		return st, ErrMessageTooLong
	}

	next := st.clone()
	next.say(types.RoleUser, text)

	switch st.Phase {
	case PhaseAwaitingFirstInput:
		next.InitialRequirement = text
		m.generateTurn(ctx, st, &next, text, "")

	case PhaseAwaitingConfirmation:
		if isAffirmative(text) {
			next.Confirmed = true
			next.Phase = PhaseIdleWithRule
			next.say(types.RoleAssistant, confirmMessage(next.CurrentRule))
		} else {
			next.Phase = PhaseAwaitingModification
			next.say(types.RoleAssistant, ModifyPrompt)
		}

	case PhaseAwaitingModification:
		m.generateTurn(ctx, st, &next, st.InitialRequirement, text)

	case PhaseIdleWithRule:
		next.InitialRequirement = text
		next.Confirmed = false
		m.generateTurn(ctx, st, &next, text, "")

	default:
		return st, fmt.Errorf("%w: %q", ErrUnknownPhase, st.Phase)
	}

	m.logger.Debug("conversation turn",
		zap.String("session_id", string(st.SessionID)),
		zap.String("from", string(st.Phase)),
		zap.String("to", string(next.Phase)))
	return next, nil
}

// generateTurn runs one generation attempt and writes its outcome into next.
// On failure every field but Messages is restored from prev.
func (m *Machine) generateTurn(ctx context.Context, prev State, next *State, requirement, modification string) {
	rs, err := m.generate(ctx, prev, requirement, modification)
	if err != nil {
		msgs := next.Messages
		*next = prev
		next.Messages = msgs
		next.say(types.RoleAssistant, failureMessage(err))
		return
	}

	next.CurrentRule = rs
	next.Confirmed = false
	next.Phase = PhaseAwaitingConfirmation
	next.say(types.RoleAssistant, previewMessage(rs))
}

// generate builds the prompt, calls the model once and validates the result.
func (m *Machine) generate(ctx context.Context, prev State, requirement, modification string) (*types.RuleSet, error) {
	start := m.now()

	rs, err := m.attempt(ctx, requirement, modification)

	attempt := Attempt{
		ID:        types.NewAttemptID(),
		SessionID: prev.SessionID,
		Phase:     prev.Phase,
		Outcome:   OutcomeOf(err),
		Model:     m.generator.ModelName(),
		RuleCount: rs.ConditionCount(),
		Duration:  m.now().Sub(start),
		CreatedAt: start,
	}
	if err != nil {
		attempt.Error = err.Error()
		m.logger.Info("rule generation failed",
			zap.String("session_id", string(prev.SessionID)),
			zap.String("outcome", string(attempt.Outcome)),
			zap.Error(err))
	}
	if m.recorder != nil {
		if rerr := m.recorder.RecordAttempt(ctx, attempt); rerr != nil {
			m.logger.Warn("failed to record generation attempt",
				zap.String("attempt_id", string(attempt.ID)),
				zap.Error(rerr))
		}
	}

	return rs, err
}

func (m *Machine) attempt(ctx context.Context, requirement, modification string) (*types.RuleSet, error) {
	instruction, err := prompt.Build(requirement, modification, m.registry)
	if err != nil {
		return nil, err
	}
	candidate, err := m.generator.Generate(ctx, instruction)
	if err != nil {
		return nil, err
	}
	if candidate.Empty() {
		return nil, &types.EmptyRuleSetError{}
	}
	rs, err := m.validator.Validate(candidate, m.registry)
	if err != nil {
		return nil, err
	}
	if rs.Empty() {
		return nil, &types.EmptyRuleSetError{}
	}
	return rs, nil
}

func isAffirmative(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "yes") || strings.Contains(lower, "correct")
}

func renderRule(rs *types.RuleSet) string {
	data, err := rules.Export(rs)
	if err != nil {
		return ""
	}
	return string(data)
}

func previewMessage(rs *types.RuleSet) string {
	return "I've generated this rule:\n\n```json\n" + renderRule(rs) + "\n```\n\nDoes this meet your requirements?"
}

func confirmMessage(rs *types.RuleSet) string {
	return "Great! Here's your final rule:\n\n```json\n" + renderRule(rs) + "\n```"
}

func failureMessage(err error) string {
	var ref *types.InvalidReferenceError
	if errors.As(err, &ref) {
		if errors.Is(err, types.ErrUnknownSource) {
			return fmt.Sprintf("I couldn't generate a valid rule: %q is not one of the available data sources. Could you please provide more details?", ref.Source)
		}
		return fmt.Sprintf("I couldn't generate a valid rule: %q is not a column of %s. Could you please rephrase using the available columns?", ref.Field, ref.Source)
	}
	return GenericError
}
