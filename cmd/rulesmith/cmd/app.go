package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/core/audit"
	"github.com/solatis/rulesmith/internal/core/config"
	"github.com/solatis/rulesmith/internal/core/db"
	"github.com/solatis/rulesmith/internal/core/logging"
	"github.com/solatis/rulesmith/internal/llm"
	"github.com/solatis/rulesmith/internal/rules"
	"github.com/solatis/rulesmith/internal/schema"
)

// app carries the wiring shared by subcommands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *schema.Registry
	validator *rules.Validator
}

func loadApp() (*app, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.DB.URL = dbURL
	}

	logger, err := logging.New(logLevel, logFormat)
	if err != nil {
		return nil, err
	}

	registry, err := cfg.Schema.Registry()
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	aliases, err := cfg.Validator.ParsedAliases()
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		validator: rules.NewValidator(aliases),
	}, nil
}

func (a *app) databaseURL() string {
	if a.cfg.DB.URL != "" {
		return a.cfg.DB.URL
	}
	return db.DefaultURL(a.cfg.DataDir)
}

// openAudit opens and migrates the audit database.
func (a *app) openAudit() (*audit.Store, func(), error) {
	database, err := db.Open(a.databaseURL())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.MigrateUp(database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return audit.NewStore(queries), func() { database.Close() }, nil
}

// newMachine builds the conversation machine over the configured model.
// recorder may be nil. Every provider needs a key, custom base_url included.
func (a *app) newMachine(recorder conversation.Recorder) (*conversation.Machine, error) {
	if a.cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("no API key for provider %s (set RULESMITH_LLM_API_KEY)", a.cfg.LLM.Provider)
	}
	model, err := llm.New(a.cfg.LLM.ModelConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	a.logger.Info("model client ready", zap.String("model", model.Name()))
	gen := rules.NewGenerator(model, a.cfg.LLM.GeneratorConfig(), a.logger)

	opts := []conversation.Option{conversation.WithLogger(a.logger)}
	if recorder != nil {
		opts = append(opts, conversation.WithRecorder(recorder))
	}
	return conversation.NewMachine(a.registry, gen, a.validator, opts...), nil
}
