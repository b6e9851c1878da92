package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/llm"
	"github.com/solatis/rulesmith/internal/rules"
	"github.com/solatis/rulesmith/internal/schema"
	"github.com/solatis/rulesmith/internal/types"
)

const creditScoreRule = `{"rules": [{"id": "c1", "ruleType": "condition", "dataSource": "sample_customer_profiles.csv", "field": "credit_score", "operator": ">", "value": "700"}]}`

func newLocalBackend(t *testing.T, reply string) *localBackend {
	t.Helper()
	model := llm.Func(func(context.Context, llm.Request) (string, error) {
		return reply, nil
	})
	gen := rules.NewGenerator(model, rules.GeneratorConfig{Temperature: rules.DefaultTemperature}, zaptest.NewLogger(t))
	m := conversation.NewMachine(schema.MustNew(schema.Default()), gen, rules.NewValidator(nil),
		conversation.WithLogger(zaptest.NewLogger(t)))
	return &localBackend{session: conversation.NewSession(types.NewSessionID(), m), timeout: time.Minute}
}

func TestChatLoop_ConfirmExports(t *testing.T) {
	backend := newLocalBackend(t, creditScoreRule)
	dir := filepath.Join(t.TempDir(), "exports")
	now := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	in := strings.NewReader("credit score above 700\n\nyes\n/quit\nnever read\n")
	var out strings.Builder
	if err := chatLoop(context.Background(), in, &out, backend, dir, now); err != nil {
		t.Fatalf("chatLoop() error = %v, want nil", err)
	}

	transcript := out.String()
	if !strings.Contains(transcript, "assistant> "+conversation.Greeting) {
		t.Errorf("transcript missing greeting:\n%s", transcript)
	}
	if !strings.Contains(transcript, "Does this meet your requirements?") {
		t.Errorf("transcript missing preview:\n%s", transcript)
	}

	path := filepath.Join(dir, "eligibility_rule_20240301_120000.json")
	if !strings.Contains(transcript, "saved "+path) {
		t.Errorf("transcript missing saved path %s:\n%s", path, transcript)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v, want nil", err)
	}
	rs, err := rules.DecodeRuleSet(data)
	if err != nil {
		t.Fatalf("DecodeRuleSet(export) error = %v, want nil", err)
	}
	if rs.ConditionCount() != 1 {
		t.Errorf("exported ConditionCount() = %d, want 1", rs.ConditionCount())
	}
}

func TestChatLoop_ResetAndEOF(t *testing.T) {
	backend := newLocalBackend(t, creditScoreRule)
	dir := t.TempDir()

	in := strings.NewReader("credit score above 700\n/reset\n")
	var out strings.Builder
	if err := chatLoop(context.Background(), in, &out, backend, dir, time.Now); err != nil {
		t.Fatalf("chatLoop() error = %v, want nil", err)
	}

	if !strings.Contains(out.String(), conversation.ResetGreeting) {
		t.Errorf("transcript missing reset greeting:\n%s", out.String())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("export dir has %d files, want 0 without confirmation", len(entries))
	}
	if st := backend.session.Snapshot(); st.Phase != conversation.PhaseAwaitingFirstInput {
		t.Errorf("Phase = %s, want %s", st.Phase, conversation.PhaseAwaitingFirstInput)
	}
}

func TestChatLoop_SendErrorContinues(t *testing.T) {
	backend := newLocalBackend(t, creditScoreRule)

	long := strings.Repeat("x", types.MaxMessageLength+1)
	in := strings.NewReader(long + "\n/quit\n")
	var out strings.Builder
	if err := chatLoop(context.Background(), in, &out, backend, t.TempDir(), time.Now); err != nil {
		t.Fatalf("chatLoop() error = %v, want nil", err)
	}
	if !strings.Contains(out.String(), "error: ") {
		t.Errorf("transcript missing error line:\n%s", out.String())
	}
}
