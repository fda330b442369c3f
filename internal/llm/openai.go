package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"feedsieve/internal/config"
	"feedsieve/internal/domain"
)

// OpenAI talks to the OpenAI chat completions API or anything compatible
// with it (Ollama, vLLM, LM Studio) through cfg.BaseURL.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAI(cfg config.LLMConfig, opts ...option.RequestOption) *OpenAI {
	var base []option.RequestOption
	if cfg.APIKey != "" {
		base = append(base, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client:  openai.NewClient(append(base, opts...)...),
		model:   cfg.Model,
		timeout: cfg.Timeout(),
	}
}

func (o *OpenAI) Assess(ctx context.Context, topic domain.Topic, text string) (domain.Verdict, error) {
	prompt, err := renderPrompt(topic, text)
	if err != nil {
		return domain.Verdict{}, err
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Model: o.model,
	})
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return domain.Verdict{}, fmt.Errorf("%w: openai returned no content", ErrMalformedVerdict)
	}

	v, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return v, err
	}
	v.Provider = config.ProviderOpenAI
	v.Model = o.model
	return v, nil
}
