package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/rules"
	"github.com/solatis/rulesmith/internal/types"
)

// Messages travel as google.protobuf.Struct. Rules are embedded as their
// canonical JSON text because Struct does not preserve key order.

// SessionView is the wire form of a conversation state.
type SessionView struct {
	SessionID          string          `json:"session_id"`
	Phase              string          `json:"phase"`
	Confirmed          bool            `json:"confirmed"`
	InitialRequirement string          `json:"initial_requirement"`
	Messages           []types.Message `json:"messages"`
	CurrentRule        *string         `json:"current_rule"`
}

// LastAssistantMessage returns the newest assistant text, or "".
func (v *SessionView) LastAssistantMessage() string {
	for i := len(v.Messages) - 1; i >= 0; i-- {
		if v.Messages[i].Role == types.RoleAssistant {
			return v.Messages[i].Content
		}
	}
	return ""
}

// ExportView is the wire form of an exported rule.
type ExportView struct {
	SessionID string `json:"session_id"`
	FileName  string `json:"file_name"`
	Rule      string `json:"rule"`
}

// EndView acknowledges EndSession.
type EndView struct {
	SessionID string `json:"session_id"`
	Ended     bool   `json:"ended"`
}

func newSessionView(st conversation.State) (*SessionView, error) {
	v := &SessionView{
		SessionID:          string(st.SessionID),
		Phase:              string(st.Phase),
		Confirmed:          st.Confirmed,
		InitialRequirement: st.InitialRequirement,
		Messages:           st.Messages,
	}
	if !st.CurrentRule.Empty() {
		data, err := rules.Export(st.CurrentRule)
		if err != nil {
			return nil, fmt.Errorf("failed to render current rule: %w", err)
		}
		rule := string(data)
		v.CurrentRule = &rule
	}
	if v.Messages == nil {
		v.Messages = []types.Message{}
	}
	return v, nil
}

// toStruct converts a JSON-tagged value into a Struct message.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return out, nil
}

// fromStruct decodes a Struct message into a JSON-tagged value.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}

// requireString reads a non-empty string field.
func requireString(req *structpb.Struct, key string) (string, error) {
	if req == nil {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidRequest, key)
	}
	val, ok := req.GetFields()[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidRequest, key)
	}
	s, ok := val.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidRequest, key)
	}
	if s.StringValue == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrInvalidRequest, key)
	}
	return s.StringValue, nil
}

func requireSessionID(req *structpb.Struct) (types.SessionID, error) {
	raw, err := requireString(req, "session_id")
	if err != nil {
		return "", err
	}
	id, err := types.ParseSessionID(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return id, nil
}
