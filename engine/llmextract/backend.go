// Package llmextract invokes a pluggable chat LLM backend with the
// extraction prompt and recovers a {entities, relationships} payload from
// its response, including truncated-JSON repair.
package llmextract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/openai/openai-go/v2"
	oaioption "github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/BiographAI/biograph/engine/domain"
)

// Backend is the capability every LLM provider exposes: a single
// completion call over a fully-formed prompt. Modeled as a tagged
// interface rather than an inheritance hierarchy, so adding a
// third backend never touches callers.
type Backend interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// HostedBackend calls Anthropic's Messages API.
type HostedBackend struct {
	sdk   anthropic.Client
	model string
}

// NewHostedBackend creates a HostedBackend from an API key and model name.
func NewHostedBackend(apiKey, model string) *HostedBackend {
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &HostedBackend{
		sdk:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model: model,
	}
}

// Complete sends prompt as a single user message and returns the
// concatenated text of the response.
func (b *HostedBackend) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	resp, err := b.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}

// LocalBackend calls an OpenAI-compatible local chat completion server
// (e.g. LM Studio).
type LocalBackend struct {
	sdk   openai.Client
	model string
}

// NewLocalBackend creates a LocalBackend pointed at baseURL (e.g.
// "http://localhost:1234/v1").
func NewLocalBackend(baseURL, model string) *LocalBackend {
	return &LocalBackend{
		sdk:   openai.NewClient(oaioption.WithBaseURL(baseURL), oaioption.WithAPIKey("lm-studio")),
		model: model,
	}
}

// Complete sends prompt as a single user message and returns the first
// choice's content.
func (b *LocalBackend) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	comp, err := b.sdk.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(b.model),
		MaxTokens:   param.NewOpt(int64(maxTokens)),
		Temperature: param.NewOpt(temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(comp.Choices) == 0 {
		return "", nil
	}
	return comp.Choices[0].Message.Content, nil
}

// ClassifyBackendErr wraps err with domain.ErrLLMTransient when the
// backend reports a retryable condition — rate limiting or a server-side
// fault (429/5xx) — or when the error carries no HTTP status at all
// (timeouts, connection resets). A 4xx client error (bad request,
// authentication failure) propagates unwrapped so domain.IsRetryable
// stops the retry loop instead of hammering a call that can never
// succeed.
func ClassifyBackendErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrLLMTransient) {
		return err
	}
	var aerr *anthropic.Error
	if errors.As(err, &aerr) {
		if aerr.StatusCode == 429 || aerr.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", domain.ErrLLMTransient, err)
		}
		return err
	}
	var oerr *openai.Error
	if errors.As(err, &oerr) {
		if oerr.StatusCode == 429 || oerr.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", domain.ErrLLMTransient, err)
		}
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrLLMTransient, err)
}
