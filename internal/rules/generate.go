// internal/rules/generate.go
package rules

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/solatis/rulesmith/internal/llm"
	"github.com/solatis/rulesmith/internal/prompt"
	"github.com/solatis/rulesmith/internal/types"
)

// DefaultTemperature favors deterministic structural output.
const DefaultTemperature = 0.3

// GeneratorConfig tunes the model request.
type GeneratorConfig struct {
	Temperature float32
	JSONMode    bool
	MaxTokens   int
}

// Generator turns a built prompt into a candidate RuleSet with one model call.
type Generator struct {
	model  llm.Model
	cfg    GeneratorConfig
	logger *zap.Logger
}

// NewGenerator creates a generator. A nil logger disables logging.
func NewGenerator(model llm.Model, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{model: model, cfg: cfg, logger: logger}
}

// ModelName identifies the underlying model for audit records.
func (g *Generator) ModelName() string {
	return g.model.Name()
}

// Generate invokes the model once and decodes its answer.
// Every error matches types.ErrGeneration. No retries.
func (g *Generator) Generate(ctx context.Context, instruction string) (*types.RuleSet, error) {
	start := time.Now()
	text, err := g.model.Complete(ctx, llm.Request{
		System:      prompt.SystemPrompt,
		User:        instruction,
		Temperature: g.cfg.Temperature,
		JSONMode:    g.cfg.JSONMode,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		g.logger.Warn("model call failed",
			zap.String("model", g.model.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, &types.ModelUnavailableError{Err: err}
	}

	rs, err := ParseRuleSet(text)
	if err != nil {
		g.logger.Warn("model response rejected",
			zap.String("model", g.model.Name()),
			zap.Int("response_bytes", len(text)),
			zap.Error(err))
		return nil, err
	}

	g.logger.Debug("model response decoded",
		zap.String("model", g.model.Name()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("rules", len(rs.Rules)))
	return rs, nil
}
