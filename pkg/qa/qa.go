package qa

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/surgewhisper/api/internal/models"
	"github.com/surgewhisper/api/internal/types"
)

// NoResultsAnswer is cached and returned when retrieval finds nothing.
const NoResultsAnswer = "No relevant information found in the current document set."

type ServiceConfig struct {
	TopK           int
	ContextBudget  int
	PreviewMax     int
	AnswerTTL      time.Duration
	EmptyAnswerTTL time.Duration
}

// Service answers one question at a time: embed, retrieve, draft,
// cache, preview.
type Service struct {
	config   ServiceConfig
	embedder types.Embedder
	store    types.VectorStore
	cache    types.AnswerCache
	drafter  types.Drafter
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(config ServiceConfig, embedder types.Embedder, store types.VectorStore, cache types.AnswerCache, drafter types.Drafter, opts ...Option) (*Service, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if cache == nil {
		return nil, ErrCacheRequired
	}
	if drafter == nil {
		return nil, ErrDrafterRequired
	}
	if config.TopK == 0 {
		config.TopK = 6
	}
	if config.ContextBudget == 0 {
		config.ContextBudget = 6000
	}
	if config.PreviewMax == 0 {
		config.PreviewMax = 700
	}
	if config.AnswerTTL == 0 {
		config.AnswerTTL = 2 * time.Hour
	}
	if config.EmptyAnswerTTL == 0 {
		config.EmptyAnswerTTL = 30 * time.Minute
	}

	s := &Service{
		config:   config,
		embedder: embedder,
		store:    store,
		cache:    cache,
		drafter:  drafter,
		logger:   slog.Default().With("component", "qa"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Ask answers a question against the corpus. Drafting never hard-fails
// the request; an unavailable retrieval or storage layer does, since no
// contextual fallback exists for those.
func (s *Service) Ask(ctx context.Context, question string, topK int) (models.AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.AskResult{}, ErrEmptyQuestion
	}
	if topK <= 0 {
		topK = s.config.TopK
	}

	qVec, err := s.embedder.EmbedOne(ctx, question)
	if err != nil {
		return models.AskResult{}, err
	}

	hits, err := s.store.VectorSearch(ctx, qVec, topK)
	if err != nil {
		return models.AskResult{}, err
	}

	if len(hits) == 0 {
		id, err := NewAnswerID()
		if err != nil {
			return models.AskResult{}, err
		}
		// cache even the negative result, briefly
		if err := s.cache.SaveAnswer(ctx, id, NoResultsAnswer, s.config.EmptyAnswerTTL); err != nil {
			return models.AskResult{}, err
		}
		return models.AskResult{AnswerPreview: NoResultsAnswer, AnswerID: id, IsTruncated: false}, nil
	}

	contexts := buildContext(hits, s.config.ContextBudget)

	full, err := s.drafter.Draft(ctx, question, contexts)
	if err != nil {
		s.logger.Error("draft failed, stitching snippets", "err", err)
		full = stitchSnippets(hits)
	}

	id, err := NewAnswerID()
	if err != nil {
		return models.AskResult{}, err
	}
	if err := s.cache.SaveAnswer(ctx, id, full, s.config.AnswerTTL); err != nil {
		return models.AskResult{}, err
	}

	preview, truncated := ToPreview(full, s.config.PreviewMax)
	return models.AskResult{AnswerPreview: preview, AnswerID: id, IsTruncated: truncated}, nil
}

// GetAnswer returns the cached full text for an id, or
// store.ErrAnswerNotFound once it has expired.
func (s *Service) GetAnswer(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrEmptyAnswerID
	}
	return s.cache.LoadAnswer(ctx, id)
}

// buildContext accumulates hit content until adding a block would
// exceed the character budget; later, lower-relevance hits are dropped.
// Content only, never source identifiers.
func buildContext(hits []models.SearchHit, budget int) []string {
	var blocks []string
	total := 0
	for _, h := range hits {
		block := h.Content
		if block == "" {
			block = h.Snippet
		}
		if block == "" {
			continue
		}
		if total+len(block) > budget {
			break
		}
		blocks = append(blocks, block)
		total += len(block)
	}
	return blocks
}

// stitchSnippets is the last-resort answer when drafting fails: the
// top snippets joined into one paragraph.
func stitchSnippets(hits []models.SearchHit) string {
	if len(hits) > 3 {
		hits = hits[:3]
	}
	var parts []string
	for _, h := range hits {
		snip := strings.TrimSpace(h.Snippet)
		if snip == "" {
			snip = strings.TrimSpace(h.Content)
		}
		if snip != "" {
			parts = append(parts, snip)
		}
	}
	return "Based on the retrieved guidance:\n\n" + strings.Join(parts, "\n\n")
}
