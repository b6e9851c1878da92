package server

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/core/api"
	"github.com/solatis/rulesmith/internal/core/config"
	"github.com/solatis/rulesmith/internal/llm"
	"github.com/solatis/rulesmith/internal/rules"
	"github.com/solatis/rulesmith/internal/schema"
	"github.com/solatis/rulesmith/internal/types"
)

func newTestService(t *testing.T) *api.ConversationService {
	t.Helper()
	model := llm.Func(func(context.Context, llm.Request) (string, error) {
		return `{"rules": [{"id": "c1", "dataSource": "sample_customer_profiles.csv", "field": "age", "operator": ">=", "value": "18"}]}`, nil
	})
	gen := rules.NewGenerator(model, rules.GeneratorConfig{}, zaptest.NewLogger(t))
	machine := conversation.NewMachine(schema.MustNew(schema.Default()), gen, rules.NewValidator(nil))
	svc, err := api.NewConversationService(api.NewSessionStore(machine, 4, time.Hour), 0, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewConversationService() error = %v, want nil", err)
	}
	return svc
}

func dial(t *testing.T, lis *bufconn.Listener) *grpc.ClientConn {
	t.Helper()
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
	return conn
}

func TestNewGRPCServer_NilService(t *testing.T) {
	if _, err := NewGRPCServer(config.DefaultConfig().Server, nil, nil); err == nil {
		t.Error("NewGRPCServer(nil service) error = nil, want error")
	}
}

func TestGRPCServer_ServeAndShutdown(t *testing.T) {
	srv, err := NewGRPCServer(config.DefaultConfig().Server, newTestService(t), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewGRPCServer() error = %v, want nil", err)
	}

	lis := bufconn.Listen(1 << 20)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(lis) }()

	conn := dial(t, lis)
	ctx := context.Background()

	health := grpc_health_v1.NewHealthClient(conn)
	for _, service := range []string{"", api.ServiceName} {
		resp, err := health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("Check(%q) error = %v, want nil", service, err)
		}
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			t.Errorf("Check(%q) = %s, want SERVING", service, resp.GetStatus())
		}
	}

	client := api.NewClient(conn)
	view, err := client.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession() error = %v, want nil", err)
	}
	view, err = client.SendMessage(ctx, types.SessionID(view.SessionID), "adults only")
	if err != nil {
		t.Fatalf("SendMessage() error = %v, want nil", err)
	}
	if view.Phase != string(conversation.PhaseAwaitingConfirmation) {
		t.Errorf("Phase = %s, want AWAITING_CONFIRMATION", view.Phase)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error = %v, want nil", err)
	}
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil after graceful stop", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after Shutdown")
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Panic"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %s, want Internal", status.Code(err))
	}

	resp, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	if err != nil || resp != "ok" {
		t.Errorf("passthrough = %v, %v, want ok, nil", resp, err)
	}
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	interceptor := LoggingInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Fail"}
	want := status.Error(codes.NotFound, "missing")

	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, want
	})
	if err != want {
		t.Errorf("err = %v, want %v", err, want)
	}
}
