package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/core/api"
	"github.com/solatis/rulesmith/internal/rules"
	"github.com/solatis/rulesmith/internal/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Build an eligibility rule interactively",
	Long: `Reads one message per line. /reset starts a new rule, /quit exits.
A confirmed rule is written to <data_dir>/exports as canonical JSON.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("server", "", "talk to a running rulesmith server at host:port instead of a local model")
	chatCmd.Flags().Bool("no-audit", false, "do not record generation attempts")
	chatCmd.Flags().String("export-dir", "", "directory for confirmed rules (default <data_dir>/exports)")
}

// chatTurn is what the driver shows after each step.
type chatTurn struct {
	Reply     string
	Confirmed bool
	Rule      string
}

type chatBackend interface {
	start(ctx context.Context) (chatTurn, error)
	send(ctx context.Context, text string) (chatTurn, error)
	reset(ctx context.Context) (chatTurn, error)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	exportDir, _ := cmd.Flags().GetString("export-dir")
	if exportDir == "" {
		exportDir = filepath.Join(a.cfg.DataDir, "exports")
	}

	var backend chatBackend
	if addr, _ := cmd.Flags().GetString("server"); addr != "" {
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		defer conn.Close()
		backend = &remoteBackend{client: api.NewClient(conn)}
	} else {
		var recorder conversation.Recorder
		if noAudit, _ := cmd.Flags().GetBool("no-audit"); !noAudit {
			auditStore, closeDB, err := a.openAudit()
			if err != nil {
				return err
			}
			defer closeDB()
			recorder = auditStore
		}
		machine, err := a.newMachine(recorder)
		if err != nil {
			return err
		}
		backend = &localBackend{
			session: conversation.NewSession(types.NewSessionID(), machine),
			timeout: a.cfg.LLM.RequestTimeout,
		}
	}

	return chatLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), backend, exportDir, time.Now)
}

// chatLoop drives one conversation from line-oriented input.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, backend chatBackend, exportDir string, now func() time.Time) error {
	turn, err := backend.start(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "assistant> %s\n", turn.Reply)
	confirmed := turn.Confirmed

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), types.MaxMessageLength*4)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			turn, err = backend.reset(ctx)
		default:
			turn, err = backend.send(ctx, line)
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "assistant> %s\n", turn.Reply)
		if turn.Confirmed && !confirmed && turn.Rule != "" {
			path, err := writeExport(exportDir, turn.Rule, now())
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprintf(out, "saved %s\n", path)
			}
		}
		confirmed = turn.Confirmed
	}
}

func writeExport(dir, rule string, t time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, rules.ExportFileName(t))
	if err := os.WriteFile(path, []byte(rule+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

type localBackend struct {
	session *conversation.Session
	timeout time.Duration
}

func (b *localBackend) start(ctx context.Context) (chatTurn, error) {
	return localTurn(b.session.Snapshot())
}

func (b *localBackend) send(ctx context.Context, text string) (chatTurn, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	st, err := b.session.Send(ctx, text)
	if err != nil {
		return chatTurn{}, err
	}
	return localTurn(st)
}

func (b *localBackend) reset(ctx context.Context) (chatTurn, error) {
	return localTurn(b.session.Reset())
}

func localTurn(st conversation.State) (chatTurn, error) {
	turn := chatTurn{Confirmed: st.Confirmed}
	if msg, ok := st.LastMessage(); ok {
		turn.Reply = msg.Content
	}
	if rs, ok := st.ConfirmedRule(); ok {
		data, err := rules.Export(rs)
		if err != nil {
			return chatTurn{}, err
		}
		turn.Rule = string(data)
	}
	return turn, nil
}

type remoteBackend struct {
	client *api.Client
	id     types.SessionID
}

func (b *remoteBackend) start(ctx context.Context) (chatTurn, error) {
	view, err := b.client.StartSession(ctx)
	if err != nil {
		return chatTurn{}, err
	}
	b.id = types.SessionID(view.SessionID)
	return remoteTurn(view), nil
}

func (b *remoteBackend) send(ctx context.Context, text string) (chatTurn, error) {
	view, err := b.client.SendMessage(ctx, b.id, text)
	if err != nil {
		return chatTurn{}, err
	}
	return remoteTurn(view), nil
}

func (b *remoteBackend) reset(ctx context.Context) (chatTurn, error) {
	view, err := b.client.ResetSession(ctx, b.id)
	if err != nil {
		return chatTurn{}, err
	}
	return remoteTurn(view), nil
}

func remoteTurn(view *api.SessionView) chatTurn {
	turn := chatTurn{Reply: view.LastAssistantMessage(), Confirmed: view.Confirmed}
	if view.Confirmed && view.CurrentRule != nil {
		turn.Rule = *view.CurrentRule
	}
	return turn
}
