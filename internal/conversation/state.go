// Package conversation drives the generate / confirm / revise dialogue for
// one eligibility rule.
//
// State is a plain value: Machine.Handle takes one and returns the next, so
// tests can construct any phase directly. Session adds the per-session
// serialization point for drivers that share a state across goroutines.
package conversation

import (
	"github.com/solatis/rulesmith/internal/types"
)

// Phase is the dialogue position of a conversation.
type Phase string

const (
	PhaseAwaitingFirstInput   Phase = "AWAITING_FIRST_INPUT"
	PhaseAwaitingConfirmation Phase = "AWAITING_CONFIRMATION"
	PhaseAwaitingModification Phase = "AWAITING_MODIFICATION"
	PhaseIdleWithRule         Phase = "IDLE_WITH_RULE"
)

// Assistant texts.
const (
	Greeting      = "Hello! I can help you create eligibility rules. What criteria would you like to use?"
	ResetGreeting = "Let's create a new rule. What criteria would you like to use?"
	ModifyPrompt  = "What changes would you like to make to the rule?"
	GenericError  = "I couldn't generate a valid rule. Could you please provide more details?"
)

// State is one conversation's full dialogue state.
type State struct {
	SessionID          types.SessionID
	Messages           []types.Message
	CurrentRule        *types.RuleSet
	Confirmed          bool
	InitialRequirement string
	Phase              Phase
}

// NewState returns the initial state seeded with the greeting.
func NewState(id types.SessionID) State {
	return initialState(id, Greeting)
}

func initialState(id types.SessionID, greeting string) State {
	return State{
		SessionID: id,
		Messages:  []types.Message{{Role: types.RoleAssistant, Content: greeting}},
		Phase:     PhaseAwaitingFirstInput,
	}
}

// ConfirmedRule returns the current rule once the user has confirmed it.
func (s State) ConfirmedRule() (*types.RuleSet, bool) {
	if !s.Confirmed || s.CurrentRule.Empty() {
		return nil, false
	}
	return s.CurrentRule, true
}

// LastMessage returns the newest transcript entry.
func (s State) LastMessage() (types.Message, bool) {
	if len(s.Messages) == 0 {
		return types.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// clone copies the transcript so appends never alias the caller's slice.
// CurrentRule is shared: rule sets are replaced, never modified in place.
func (s State) clone() State {
	msgs := make([]types.Message, len(s.Messages), len(s.Messages)+2)
	copy(msgs, s.Messages)
	s.Messages = msgs
	return s
}

func (s *State) say(role types.Role, content string) {
	s.Messages = append(s.Messages, types.Message{Role: role, Content: content})
	if over := len(s.Messages) - types.MaxTranscriptMessages; over > 0 {
		s.Messages = append(s.Messages[:0:0], s.Messages[over:]...)
	}
}
