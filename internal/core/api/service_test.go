package api

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/llm"
	"github.com/solatis/rulesmith/internal/rules"
	"github.com/solatis/rulesmith/internal/schema"
	"github.com/solatis/rulesmith/internal/types"
)

const creditScoreRule = `{"rules": [{"id": "c1", "dataSource": "sample_customer_profiles.csv", "field": "credit_score", "operator": ">", "value": "700"}]}`

func newTestMachine(t *testing.T, reply string) *conversation.Machine {
	t.Helper()
	model := llm.Func(func(context.Context, llm.Request) (string, error) {
		return reply, nil
	})
	gen := rules.NewGenerator(model, rules.GeneratorConfig{Temperature: rules.DefaultTemperature}, zaptest.NewLogger(t))
	return conversation.NewMachine(schema.MustNew(schema.Default()), gen, rules.NewValidator(nil))
}

func startTestServer(t *testing.T, store *SessionStore) *Client {
	t.Helper()
	svc, err := NewConversationService(store, time.Minute, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewConversationService() error = %v, want nil", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterConversationServer(srv, svc)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient() error = %v, want nil", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if got := status.Code(err); got != code {
		t.Fatalf("status code = %s (err %v), want %s", got, err, code)
	}
}

func TestConversationService_FullFlow(t *testing.T) {
	store := NewSessionStore(newTestMachine(t, creditScoreRule), 10, time.Hour)
	c := startTestServer(t, store)
	ctx := context.Background()

	view, err := c.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession() error = %v, want nil", err)
	}
	id := types.SessionID(view.SessionID)
	if view.Phase != string(conversation.PhaseAwaitingFirstInput) || view.LastAssistantMessage() != conversation.Greeting {
		t.Fatalf("StartSession() = %+v, want the greeting state", view)
	}
	if view.CurrentRule != nil {
		t.Errorf("CurrentRule = %q, want nil", *view.CurrentRule)
	}

	view, err = c.SendMessage(ctx, id, "credit score above 700")
	if err != nil {
		t.Fatalf("SendMessage() error = %v, want nil", err)
	}
	if view.Phase != string(conversation.PhaseAwaitingConfirmation) || view.CurrentRule == nil {
		t.Fatalf("SendMessage() = %+v, want a rule awaiting confirmation", view)
	}
	if !strings.HasPrefix(view.LastAssistantMessage(), "I've generated this rule:") {
		t.Errorf("reply = %q, want the preview", view.LastAssistantMessage())
	}

	_, err = c.ExportRule(ctx, id)
	wantCode(t, err, codes.FailedPrecondition)

	view, err = c.SendMessage(ctx, id, "yes")
	if err != nil {
		t.Fatalf("SendMessage() error = %v, want nil", err)
	}
	if !view.Confirmed || len(view.Messages) != 5 {
		t.Fatalf("SendMessage(yes) = %+v, want confirmed with 5 messages", view)
	}

	exp, err := c.ExportRule(ctx, id)
	if err != nil {
		t.Fatalf("ExportRule() error = %v, want nil", err)
	}
	if exp.Rule != *view.CurrentRule {
		t.Errorf("exported rule differs from session rule:\n%s\n---\n%s", exp.Rule, *view.CurrentRule)
	}
	if !strings.HasPrefix(exp.FileName, "eligibility_rule_") || !strings.HasSuffix(exp.FileName, ".json") {
		t.Errorf("FileName = %q", exp.FileName)
	}
	if _, err := rules.ParseRuleSet(exp.Rule); err != nil {
		t.Errorf("exported rule does not parse: %v", err)
	}

	got, err := c.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession() error = %v, want nil", err)
	}
	if len(got.Messages) != len(view.Messages) {
		t.Errorf("GetSession() has %d messages, want %d", len(got.Messages), len(view.Messages))
	}

	view, err = c.ResetSession(ctx, id)
	if err != nil {
		t.Fatalf("ResetSession() error = %v, want nil", err)
	}
	if view.LastAssistantMessage() != conversation.ResetGreeting || view.CurrentRule != nil || view.Confirmed {
		t.Errorf("ResetSession() = %+v, want the reset state", view)
	}
	_, err = c.ExportRule(ctx, id)
	wantCode(t, err, codes.FailedPrecondition)

	if err := c.EndSession(ctx, id); err != nil {
		t.Fatalf("EndSession() error = %v, want nil", err)
	}
	_, err = c.GetSession(ctx, id)
	wantCode(t, err, codes.NotFound)
}

func TestConversationService_InvalidRequests(t *testing.T) {
	store := NewSessionStore(newTestMachine(t, creditScoreRule), 10, time.Hour)
	c := startTestServer(t, store)
	ctx := context.Background()

	view, err := c.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession() error = %v, want nil", err)
	}
	id := types.SessionID(view.SessionID)

	_, err = c.SendMessage(ctx, id, "")
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.SendMessage(ctx, id, "   ")
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.SendMessage(ctx, "not-a-uuid", "hello")
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.SendMessage(ctx, types.NewSessionID(), "hello")
	wantCode(t, err, codes.NotFound)

	err = c.EndSession(ctx, types.NewSessionID())
	wantCode(t, err, codes.NotFound)

	view, err = c.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession() error = %v, want nil", err)
	}
	if len(view.Messages) != 1 {
		t.Errorf("rejected messages changed the transcript: %+v", view.Messages)
	}
}

func TestConversationService_SessionCap(t *testing.T) {
	store := NewSessionStore(newTestMachine(t, creditScoreRule), 1, time.Hour)
	c := startTestServer(t, store)
	ctx := context.Background()

	if _, err := c.StartSession(ctx); err != nil {
		t.Fatalf("StartSession() error = %v, want nil", err)
	}
	_, err := c.StartSession(ctx)
	wantCode(t, err, codes.ResourceExhausted)
}

func TestNewConversationService_NilStore(t *testing.T) {
	if _, err := NewConversationService(nil, 0, nil); err == nil {
		t.Error("NewConversationService(nil) error = nil, want error")
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{ErrSessionNotFound, codes.NotFound},
		{ErrInvalidRequest, codes.InvalidArgument},
		{conversation.ErrEmptyMessage, codes.InvalidArgument},
		{conversation.ErrMessageTooLong, codes.InvalidArgument},
		{ErrNotConfirmed, codes.FailedPrecondition},
		{ErrTooManySessions, codes.ResourceExhausted},
		{&types.ModelUnavailableError{Err: errors.New("down")}, codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.Aborted, "already a status"), codes.Aborted},
	}
	for _, tt := range tests {
		if got := status.Code(toStatus(tt.err)); got != tt.want {
			t.Errorf("toStatus(%v) code = %s, want %s", tt.err, got, tt.want)
		}
	}
	if toStatus(nil) != nil {
		t.Error("toStatus(nil) != nil")
	}
}
