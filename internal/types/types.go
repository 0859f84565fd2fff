package types

import (
	"context"
	"fmt"
	"time"

	"github.com/surgewhisper/api/internal/models"
)

// Core interfaces
type VectorStore interface {
	InsertDocument(ctx context.Context, title string, pages *int) (string, error)
	InsertChunks(ctx context.Context, documentID string, rows []models.ChunkRow) error
	VectorSearch(ctx context.Context, queryVec []float32, topK int) ([]models.SearchHit, error)
	Close()
}

type AnswerCache interface {
	SaveAnswer(ctx context.Context, id, fullText string, ttl time.Duration) error
	LoadAnswer(ctx context.Context, id string) (string, error)
}

type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string, concurrency int) ([][]float32, error)
	Dimension() int
}

type Drafter interface {
	Draft(ctx context.Context, question string, contexts []string) (string, error)
}

// Extractor turns raw document bytes into plain text plus an optional
// page count. Extraction failure is fatal for that entry.
type Extractor interface {
	Extract(ctx context.Context, raw []byte) (text string, pages *int, err error)
}

// StatusError is a provider failure that carries an HTTP-like status,
// used to decide whether a call is worth retrying.
type StatusError struct {
	Status int
	Msg    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Msg)
}

// Retryable reports whether the status is a transient condition
// (rate limiting or a server-side failure).
func (e *StatusError) Retryable() bool {
	return e.Status == 429 || (e.Status >= 500 && e.Status < 600)
}

type LLMConfig struct {
	APIKey         string
	EmbeddingModel string
	ChatModel      string
	BaseURL        string
	Temperature    float64
	MaxTokens      int
	VectorDim      int
	RateLimit      float64 // provider calls per second
}

type DatabaseConfig struct {
	URL         string
	VectorDim   int
	SearchLimit int
}

type ChunkerConfig struct {
	MaxTokens     int
	OverlapTokens int
}

type QAConfig struct {
	TopK           int
	ContextBudget  int
	PreviewMax     int
	AnswerTTL      time.Duration
	EmptyAnswerTTL time.Duration
}

type IngestConfig struct {
	Concurrency     int
	ContinueOnError bool
}
