package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	contextSeparator = "\n\n---\n\n"

	// InsufficientAnswer is the fixed sentinel the drafter emits when
	// the retrieved context cannot support an answer.
	InsufficientAnswer = "Insufficient information in the provided documents."

	systemPrompt = "You are a precise medical summarizer. Use only the provided CONTEXT. Be concise, neutral, and avoid speculation."
)

// CompletionClient is the provider call behind the Drafter. Satisfied
// by *openai.LLM.
type CompletionClient interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// DrafterConfig represents the configuration for an answer drafter.
type DrafterConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// Drafter turns a question plus retrieved context into prose, with
// retry/backoff and a deterministic fallback composer.
type Drafter struct {
	config DrafterConfig
	client CompletionClient // nil when no API key is configured
	retry  retrier
}

// DrafterOption configures a Drafter.
type DrafterOption func(*Drafter)

// WithCompletionClient overrides the provider client. Used in tests.
func WithCompletionClient(client CompletionClient) DrafterOption {
	return func(d *Drafter) {
		d.client = client
	}
}

// WithDrafterSleep overrides the retry sleep function. Used in tests.
func WithDrafterSleep(sleep func(time.Duration)) DrafterOption {
	return func(d *Drafter) {
		d.retry.sleep = sleep
	}
}

func NewDrafterWithConfig(config DrafterConfig, opts ...DrafterOption) (*Drafter, error) {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Temperature <= 0 {
		config.Temperature = 0.2
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}

	d := &Drafter{
		config: config,
		retry:  newRetrier(),
	}

	if config.APIKey != "" {
		clientOpts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithModel(config.Model),
		}
		if config.BaseURL != "" {
			clientOpts = append(clientOpts, openai.WithBaseURL(config.BaseURL))
		}
		client, err := openai.New(clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize completion client: %w", err)
		}
		d.client = client
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Draft produces an answer grounded in the given context blocks. With
// no provider credential or empty context it composes deterministically
// without a network call. Transient provider failures are retried; a
// non-retryable failure or an empty completion degrades to the
// composer. Only retry exhaustion surfaces as an error.
func (d *Drafter) Draft(ctx context.Context, question string, contexts []string) (string, error) {
	block := normalizeContext(contexts)

	if d.client == nil || block == "" {
		return compose(block), nil
	}

	userPrompt := fmt.Sprintf(`QUESTION:
%s

CONTEXT (from private documents):
%s

Write a concise, clinically neutral answer in 3-8 sentences.
Answer strictly from the CONTEXT.
If the context is insufficient, say: %q
Do not mention file names or any internal metadata.`,
		strings.TrimSpace(question), block, InsufficientAnswer)

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	var content string
	err := d.retry.do(ctx, func() error {
		resp, err := d.client.GenerateContent(ctx, messages,
			llms.WithTemperature(d.config.Temperature),
			llms.WithMaxTokens(d.config.MaxTokens))
		if err != nil {
			return err
		}
		if len(resp.Choices) > 0 {
			content = resp.Choices[0].Content
		}
		return nil
	})
	if err != nil {
		if retryable(err) {
			// Exhausted retries on a transient failure.
			return "", fmt.Errorf("draft error: %w", err)
		}
		return compose(block), nil
	}

	if answer := strings.TrimSpace(content); answer != "" {
		return answer, nil
	}
	return compose(block), nil
}

// normalizeContext joins non-empty blocks with a distinct separator.
func normalizeContext(contexts []string) string {
	var parts []string
	for _, c := range contexts {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.TrimSpace(strings.Join(parts, contextSeparator))
}

// compose is the network-free fallback: the first few lines of context,
// or the insufficiency sentinel when there is nothing to work from.
func compose(block string) string {
	lines := strings.Split(block, "\n")
	if len(lines) > 8 {
		lines = lines[:8]
	}
	snippet := strings.TrimSpace(strings.Join(lines, "\n"))
	if snippet == "" {
		return InsufficientAnswer
	}
	return fmt.Sprintf(`Based on the provided context, here is a concise answer to your question:

%s

(If more detail is required, please refine the question.)`, snippet)
}
