package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spachava753/coderun/internal/models"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicModel queries the Anthropic messages API.
type AnthropicModel struct {
	counters
	cfg    models.ModelConfig
	client anthropic.Client
}

// NewAnthropic creates a Claude model. Without an explicit API key the client
// falls back to ANTHROPIC_API_KEY.
func NewAnthropic(cfg models.ModelConfig) (*AnthropicModel, error) {
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("anthropic model requires a model name")
	}

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicModel{
		cfg:    cfg,
		client: anthropic.NewClient(opts...),
	}, nil
}

func (m *AnthropicModel) Config() any { return m.cfg }

func (m *AnthropicModel) TemplateVars() map[string]any {
	return templateVars(m.cfg, &m.counters)
}

// Query sends the conversation and concatenates the text blocks of the reply.
func (m *AnthropicModel) Query(ctx context.Context, messages []models.Message) (models.Response, error) {
	maxTokens := int64(defaultAnthropicMaxTokens)
	if v, ok := intArg(m.cfg.ModelArgs, "max_tokens"); ok {
		maxTokens = v
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(apiModelName(m.cfg.ModelName)),
		MaxTokens: maxTokens,
	}

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	if v, ok := floatArg(m.cfg.ModelArgs, "temperature"); ok {
		params.Temperature = anthropic.Float(v)
	}

	slog.Debug("querying anthropic model", "model", m.cfg.ModelName, "messages", len(messages))

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return models.Response{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}

	cost, err := callCost(m.cfg, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	if err != nil {
		return models.Response{}, err
	}
	m.record(cost)

	return models.Response{
		Content: content.String(),
		Extra: map[string]any{
			"usage": map[string]any{
				"input_tokens":  resp.Usage.InputTokens,
				"output_tokens": resp.Usage.OutputTokens,
			},
			"stop_reason": string(resp.StopReason),
		},
	}, nil
}
