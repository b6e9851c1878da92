package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/core/api"
	"github.com/solatis/rulesmith/internal/core/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC conversation service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().Bool("no-audit", false, "do not record generation attempts")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		a.cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		a.cfg.Server.Port = port
	}

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

	store := api.NewSessionStore(machine, a.cfg.Server.MaxSessions, a.cfg.Server.SessionIdleTimeout)
	service, err := api.NewConversationService(store, a.cfg.LLM.RequestTimeout, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(a.cfg.Server, service, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	a.logger.Info("starting rulesmith",
		zap.String("version", Version),
		zap.String("host", a.cfg.Server.Host),
		zap.Int("port", a.cfg.Server.Port),
		zap.String("provider", a.cfg.LLM.Provider),
		zap.Int("sources", a.registry.Len()))

	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		a.logger.Info("shutting down gracefully")
		return grpcServer.Shutdown(ctx)
	}
}
