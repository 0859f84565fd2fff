package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/surgewhisper/api/internal/models"
	"github.com/surgewhisper/api/internal/types"
	"github.com/surgewhisper/api/pkg/chunker"
	"github.com/surgewhisper/api/pkg/extract"
)

// snippetLen bounds the derived snippet: the first characters of a
// chunk's content.
const snippetLen = 240

type IngestorConfig struct {
	ChunkMaxTokens     int
	ChunkOverlapTokens int
	Concurrency        int

	// ContinueOnError keeps processing the rest of a batch when one
	// entry fails; the failed entry is reported in its result. When
	// false the first failure aborts the batch.
	ContinueOnError bool

	// OnEntry, when set, receives each entry's result as it completes.
	OnEntry func(models.EntryResult)
}

// Ingestor drives extract -> chunk -> embed -> persist for each
// document in an uploaded batch.
type Ingestor struct {
	config    IngestorConfig
	extractor types.Extractor
	embedder  types.Embedder
	store     types.VectorStore
	chunker   chunker.Chunker
	logger    *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(in *Ingestor) {
		if logger != nil {
			in.logger = logger
		}
	}
}

func NewWithConfig(config IngestorConfig, extractor types.Extractor, embedder types.Embedder, store types.VectorStore, opts ...Option) (*Ingestor, error) {
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if config.ChunkMaxTokens == 0 {
		config.ChunkMaxTokens = 800
	}
	if config.ChunkOverlapTokens == 0 {
		config.ChunkOverlapTokens = 80
	}
	if config.Concurrency < 1 {
		config.Concurrency = 4
	}

	in := &Ingestor{
		config:    config,
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		chunker: chunker.NewWithConfig(chunker.ChunkerConfig{
			MaxTokens:     config.ChunkMaxTokens,
			OverlapTokens: config.ChunkOverlapTokens,
		}),
		logger: slog.Default().With("component", "ingest"),
	}

	for _, opt := range opts {
		opt(in)
	}

	return in, nil
}

// IngestZip unpacks a zip of PDFs and ingests every eligible entry.
// Each entry persists atomically: its document row and all its chunk
// rows land in one transaction or not at all.
func (in *Ingestor) IngestZip(ctx context.Context, raw []byte) ([]models.EntryResult, error) {
	entries, err := Unpack(raw)
	if err != nil {
		return nil, err
	}

	var pdfs []Entry
	for _, e := range entries {
		if extract.IsPDF(e.Name) {
			pdfs = append(pdfs, e)
		}
	}
	if len(pdfs) == 0 {
		return nil, ErrEmptyArchive
	}

	results := make([]models.EntryResult, 0, len(pdfs))
	for _, e := range pdfs {
		res, err := in.ingestEntry(ctx, e)
		if err != nil {
			in.logger.Error("entry failed", "entry", e.Name, "err", err)
			if !in.config.ContinueOnError {
				return results, fmt.Errorf("entry %s: %w", e.Name, err)
			}
			res = models.EntryResult{Title: e.Name, Err: err.Error()}
		}
		results = append(results, res)
		if in.config.OnEntry != nil {
			in.config.OnEntry(res)
		}
	}
	return results, nil
}

func (in *Ingestor) ingestEntry(ctx context.Context, e Entry) (models.EntryResult, error) {
	text, pages, err := in.extractor.Extract(ctx, e.Data)
	if err != nil {
		return models.EntryResult{}, fmt.Errorf("extract: %w", err)
	}

	chunks := in.chunker.Split(text)

	vectors, err := in.embedder.EmbedMany(ctx, chunks, in.config.Concurrency)
	if err != nil {
		return models.EntryResult{}, fmt.Errorf("embed: %w", err)
	}

	rows := make([]models.ChunkRow, len(chunks))
	for i, content := range chunks {
		rows[i] = models.ChunkRow{
			Content:   content,
			Snippet:   snippet(content),
			Embedding: vectors[i],
		}
	}

	docID, err := in.store.InsertDocument(ctx, e.Name, pages)
	if err != nil {
		return models.EntryResult{}, fmt.Errorf("insert document: %w", err)
	}
	if err := in.store.InsertChunks(ctx, docID, rows); err != nil {
		return models.EntryResult{}, fmt.Errorf("insert chunks: %w", err)
	}

	in.logger.Info("ingested document", "title", e.Name, "chunks", len(rows))
	return models.EntryResult{Title: e.Name, Pages: pages, Chunks: len(rows)}, nil
}

// snippet takes the leading bytes of a chunk, backing the cut up so it
// never splits a multi-byte rune.
func snippet(content string) string {
	if len(content) <= snippetLen {
		return content
	}
	n := snippetLen
	for n > 0 && !utf8.RuneStart(content[n]) {
		n--
	}
	return content[:n]
}
