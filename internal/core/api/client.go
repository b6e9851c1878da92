package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rulesmith/internal/types"
)

// Client calls ConversationService over an established connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// StartSession opens a session.
func (c *Client) StartSession(ctx context.Context, opts ...grpc.CallOption) (*SessionView, error) {
	var view SessionView
	if err := c.invoke(ctx, "StartSession", map[string]any{}, &view, opts...); err != nil {
		return nil, err
	}
	return &view, nil
}

// SendMessage runs one turn.
func (c *Client) SendMessage(ctx context.Context, id types.SessionID, text string, opts ...grpc.CallOption) (*SessionView, error) {
	var view SessionView
	req := map[string]any{"session_id": string(id), "text": text}
	if err := c.invoke(ctx, "SendMessage", req, &view, opts...); err != nil {
		return nil, err
	}
	return &view, nil
}

// ResetSession starts a new rule in the session.
func (c *Client) ResetSession(ctx context.Context, id types.SessionID, opts ...grpc.CallOption) (*SessionView, error) {
	var view SessionView
	if err := c.invoke(ctx, "ResetSession", sessionRequest(id), &view, opts...); err != nil {
		return nil, err
	}
	return &view, nil
}

// GetSession fetches the session state.
func (c *Client) GetSession(ctx context.Context, id types.SessionID, opts ...grpc.CallOption) (*SessionView, error) {
	var view SessionView
	if err := c.invoke(ctx, "GetSession", sessionRequest(id), &view, opts...); err != nil {
		return nil, err
	}
	return &view, nil
}

// ExportRule fetches the confirmed rule.
func (c *Client) ExportRule(ctx context.Context, id types.SessionID, opts ...grpc.CallOption) (*ExportView, error) {
	var view ExportView
	if err := c.invoke(ctx, "ExportRule", sessionRequest(id), &view, opts...); err != nil {
		return nil, err
	}
	return &view, nil
}

// EndSession closes the session.
func (c *Client) EndSession(ctx context.Context, id types.SessionID, opts ...grpc.CallOption) error {
	var view EndView
	return c.invoke(ctx, "EndSession", sessionRequest(id), &view, opts...)
}

func sessionRequest(id types.SessionID) map[string]any {
	return map[string]any{"session_id": string(id)}
}

func (c *Client) invoke(ctx context.Context, method string, req map[string]any, out any, opts ...grpc.CallOption) error {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, resp, opts...); err != nil {
		return err
	}
	return fromStruct(resp, out)
}
