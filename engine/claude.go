package engine

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-reality/core"
	"github.com/becomeliminal/nim-reality/reality"
	"github.com/becomeliminal/nim-reality/tools"
)

// DefaultClaudeModel is the model used for attribute extraction.
const DefaultClaudeModel = "claude-sonnet-4-20250514"

const analysisPrompt = `You classify a single chat message. Call the ` + tools.AnalysisToolName + ` tool exactly once.
Pick tags only from the enums in the tool schema. The message may be in Persian or English.`

// ClaudeAnalyzer extracts attributes with a forced tool call to Claude.
// Any API or decoding failure falls back to another analyzer, so Analyze
// never fails.
type ClaudeAnalyzer struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	vocab     tools.Vocabulary
	tool      anthropic.ToolUnionParam
	fallback  reality.Analyzer
	logger    *zap.Logger
}

var _ reality.Analyzer = (*ClaudeAnalyzer)(nil)

// ClaudeOption configures a ClaudeAnalyzer.
type ClaudeOption func(*ClaudeAnalyzer)

// WithClaudeModel sets the model.
func WithClaudeModel(model string) ClaudeOption {
	return func(a *ClaudeAnalyzer) {
		if model != "" {
			a.model = model
		}
	}
}

// WithFallback sets the analyzer used when Claude is unavailable.
func WithFallback(f reality.Analyzer) ClaudeOption {
	return func(a *ClaudeAnalyzer) {
		if f != nil {
			a.fallback = f
		}
	}
}

// WithClaudeLogger sets the logger.
func WithClaudeLogger(l *zap.Logger) ClaudeOption {
	return func(a *ClaudeAnalyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewClaudeAnalyzer creates an analyzer over client. The fallback defaults
// to the keyword analyzer.
func NewClaudeAnalyzer(client *anthropic.Client, opts ...ClaudeOption) *ClaudeAnalyzer {
	vocab := tools.DefaultVocabulary()
	a := &ClaudeAnalyzer{
		client:    client,
		model:     DefaultClaudeModel,
		maxTokens: 512,
		vocab:     vocab,
		tool:      toAPITool(tools.AnalysisTool(vocab)),
		fallback:  reality.NewDefaultAnalyzer(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("claude")
	return a
}

// Analyze implements reality.Analyzer.
func (a *ClaudeAnalyzer) Analyze(ctx context.Context, text string) core.Attributes {
	attrs, err := a.classify(ctx, text)
	if err != nil {
		a.logger.Warn("falling back to keyword analysis", zap.Error(err))
		return a.fallback.Analyze(ctx, text)
	}
	return attrs
}

func (a *ClaudeAnalyzer) classify(ctx context.Context, text string) (core.Attributes, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
		System: []anthropic.TextBlockParam{
			{Text: analysisPrompt},
		},
		Tools: []anthropic.ToolUnionParam{a.tool},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: tools.AnalysisToolName},
		},
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return core.Attributes{}, fmt.Errorf("claude API error: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.Name != tools.AnalysisToolName {
			continue
		}
		analysis, err := tools.ParseAnalysis(block.Input)
		if err != nil {
			return core.Attributes{}, err
		}
		a.logger.Debug("classified",
			zap.String("emotion", analysis.EmotionalState),
			zap.String("rationale", analysis.Rationale))
		return analysis.Attributes(a.vocab), nil
	}
	return core.Attributes{}, fmt.Errorf("response has no %s call", tools.AnalysisToolName)
}

// toAPITool converts a tool definition to the SDK's tool param.
func toAPITool(def tools.Definition) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{
		Properties: def.InputSchema["properties"],
	}
	if req, ok := def.InputSchema["required"].([]string); ok {
		schema.Required = req
	}
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: schema,
		},
	}
}
