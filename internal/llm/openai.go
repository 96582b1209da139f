package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/spachava753/coderun/internal/models"
)

// OpenAIModel queries the OpenAI chat completions API, or any server that
// speaks it when base_url is set.
type OpenAIModel struct {
	counters
	cfg    models.ModelConfig
	client openai.Client
}

// NewOpenAI creates an OpenAI-compatible model. Without an explicit API key
// the client falls back to OPENAI_API_KEY.
func NewOpenAI(cfg models.ModelConfig) (*OpenAIModel, error) {
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("openai model requires a model name")
	}

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIModel{
		cfg:    cfg,
		client: openai.NewClient(opts...),
	}, nil
}

func (m *OpenAIModel) Config() any { return m.cfg }

func (m *OpenAIModel) TemplateVars() map[string]any {
	return templateVars(m.cfg, &m.counters)
}

// Query sends the conversation and returns the first choice.
func (m *OpenAIModel) Query(ctx context.Context, messages []models.Message) (models.Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(apiModelName(m.cfg.ModelName)),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}

	if v, ok := floatArg(m.cfg.ModelArgs, "temperature"); ok {
		params.Temperature = openai.Float(v)
	}
	if v, ok := floatArg(m.cfg.ModelArgs, "top_p"); ok {
		params.TopP = openai.Float(v)
	}
	if v, ok := intArg(m.cfg.ModelArgs, "max_tokens"); ok {
		params.MaxCompletionTokens = openai.Int(v)
	}

	slog.Debug("querying openai model", "model", m.cfg.ModelName, "messages", len(messages))

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return models.Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Response{}, fmt.Errorf("openai chat completion: no choices returned")
	}

	cost, err := callCost(m.cfg, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if err != nil {
		return models.Response{}, err
	}
	m.record(cost)

	return models.Response{
		Content: resp.Choices[0].Message.Content,
		Extra: map[string]any{
			"usage": map[string]any{
				"input_tokens":  resp.Usage.PromptTokens,
				"output_tokens": resp.Usage.CompletionTokens,
			},
		},
	}, nil
}
