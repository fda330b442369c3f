// Package llm asks a language model whether an article matches a topic.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"feedsieve/internal/config"
	"feedsieve/internal/domain"
)

var (
	ErrNotConfigured    = errors.New("llm: no provider configured")
	ErrMalformedVerdict = errors.New("llm: malformed verdict")
)

// Client judges one article text against one topic.
type Client interface {
	Assess(ctx context.Context, topic domain.Topic, text string) (domain.Verdict, error)
}

// Func adapts a plain function to Client.
type Func func(ctx context.Context, topic domain.Topic, text string) (domain.Verdict, error)

func (f Func) Assess(ctx context.Context, topic domain.Topic, text string) (domain.Verdict, error) {
	return f(ctx, topic, text)
}

// New builds the client named by cfg.Provider.
func New(cfg config.LLMConfig) (Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropic(cfg), nil
	}
	return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
}

const systemPrompt = `You screen news articles for a reader. You are given a topic with the reader's criteria and the text of one article.
Decide whether the article is relevant to the topic according to the criteria.
Respond with a single JSON object and nothing else:
{"relevant": true|false, "summary": "two or three sentences on what the article says that matters for the topic, empty if not relevant", "tags": ["up to five short lowercase keywords"]}`

var userPrompt = template.Must(template.New("assess").Parse(`Topic: {{.Topic.Name}}
Criteria: {{.Topic.Description}}

Article:
{{.Text}}`))

func renderPrompt(topic domain.Topic, text string) (string, error) {
	var buf bytes.Buffer
	if err := userPrompt.Execute(&buf, struct {
		Topic domain.Topic
		Text  string
	}{topic, text}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// parseVerdict decodes a model reply. A missing "relevant" field is an error
// rather than a silent false.
func parseVerdict(content string) (domain.Verdict, error) {
	content = cleanJSONResponse(content)
	var parsed struct {
		Relevant *bool    `json:"relevant"`
		Summary  string   `json:"summary"`
		Tags     []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %v, content: %.200s", ErrMalformedVerdict, err, content)
	}
	if parsed.Relevant == nil {
		return domain.Verdict{}, fmt.Errorf("%w: missing relevant, content: %.200s", ErrMalformedVerdict, content)
	}
	tags := make([]string, 0, len(parsed.Tags))
	for _, t := range parsed.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return domain.Verdict{
		Relevant: *parsed.Relevant,
		Summary:  strings.TrimSpace(parsed.Summary),
		Tags:     tags,
	}, nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Some model responses include extra prose around JSON.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
