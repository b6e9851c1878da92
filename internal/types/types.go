// Package types provides domain models shared across rulesmith components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only the
// standard library so the rule tree can be shared by the generator, the
// validator, the evaluator and the wire layer without pulling in transport
// or model SDKs. ID utilities in ids.go import uuid.
//
// Wire formats live elsewhere: model output decoding and canonical export
// are in internal/rules, gRPC message conversion is in internal/core/api.
package types

// SessionID identifies one conversation session (UUIDv7).
type SessionID string

// AttemptID identifies one model invocation recorded in the audit trail (UUIDv7).
type AttemptID string

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Resource limits enforced at the service boundary.
const (
	// MaxMessageLength caps inbound user text. Requirements are a few
	// sentences; anything larger is rejected before it reaches a prompt.
	MaxMessageLength = 8 * 1024

	// MaxTranscriptMessages bounds the transcript returned over the wire.
	MaxTranscriptMessages = 512
)
