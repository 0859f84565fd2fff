package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// maxInputChars caps embedding input length. A safety bound, not a
// semantic requirement.
const maxInputChars = 8000

// EmbeddingClient is the provider call behind the Embedder. Satisfied
// by *openai.LLM.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	VectorDim int
	RateLimit float64 // provider calls per second
}

// Embedder turns text into fixed-dimension vectors with retry/backoff
// and bounded concurrency.
type Embedder struct {
	config  EmbedderConfig
	client  EmbeddingClient // nil when no API key is configured
	limiter *rate.Limiter
	retry   retrier
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithEmbeddingClient overrides the provider client. Used in tests.
func WithEmbeddingClient(client EmbeddingClient) EmbedderOption {
	return func(e *Embedder) {
		e.client = client
	}
}

// WithEmbedderSleep overrides the retry sleep function. Used in tests.
func WithEmbedderSleep(sleep func(time.Duration)) EmbedderOption {
	return func(e *Embedder) {
		e.retry.sleep = sleep
	}
}

func NewEmbedderWithConfig(config EmbedderConfig, opts ...EmbedderOption) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}

	e := &Embedder{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		retry:   newRetrier(),
	}

	if config.APIKey != "" {
		clientOpts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithEmbeddingModel(config.Model),
		}
		if config.BaseURL != "" {
			clientOpts = append(clientOpts, openai.WithBaseURL(config.BaseURL))
		}
		client, err := openai.New(clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
		}
		e.client = client
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Dimension returns the model's output dimension.
func (e *Embedder) Dimension() int {
	return e.config.VectorDim
}

// EmbedOne embeds a single text. Blank input short-circuits to the
// all-zero sentinel without a network call; with no provider credential
// configured a deterministic non-zero placeholder is returned so
// downstream ordering math never sees a degenerate query vector.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	t := sanitize(text)
	if t == "" {
		return e.zeroVector(), nil
	}
	if e.client == nil {
		v := e.zeroVector()
		v[0] = 1
		return v, nil
	}

	var vec []float32
	err := e.retry.do(ctx, func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		res, err := e.client.CreateEmbedding(ctx, []string{t})
		if err != nil {
			return err
		}
		if len(res) == 0 {
			return fmt.Errorf("provider returned no embedding")
		}
		vec = res[0]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	return vec, nil
}

// EmbedMany embeds texts with a bounded pool of workers. The output is
// index-aligned with the input regardless of completion order.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string, concurrency int) ([][]float32, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	out := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for i := range texts {
		i := i
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			vec, err := e.EmbedOne(ctx, texts[i])
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			out[i] = vec
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			mu.Unlock()
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (e *Embedder) zeroVector() []float32 {
	return make([]float32, e.config.VectorDim)
}

// sanitize trims the text and caps its length, keeping the cap on a
// rune boundary.
func sanitize(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxInputChars {
		n := maxInputChars
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
		text = text[:n]
	}
	return text
}
