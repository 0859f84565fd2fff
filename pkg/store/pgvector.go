package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/surgewhisper/api/internal/models"
)

type StoreConfig struct {
	ConnString  string
	VectorDim   int
	SearchLimit int
}

// Store persists documents and their chunks in Postgres with pgvector,
// and backs the TTL answer cache. One Store wraps one process-wide
// connection pool; construct it at startup and inject it, do not keep
// package-level state.
type Store struct {
	config StoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config StoreConfig) (*Store, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 6
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{
		config: config,
		pool:   pool,
	}

	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	// Enable pgvector extension
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createDocuments := `
		CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL,
			pages INTEGER
		)`
	if _, err := s.pool.Exec(ctx, createDocuments); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	createChunks := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunks (
			id BIGSERIAL PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			snippet TEXT NOT NULL,
			page_from INTEGER,
			page_to INTEGER,
			embedding vector(%d) NOT NULL
		)`, s.config.VectorDim)
	if _, err := s.pool.Exec(ctx, createChunks); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}

	createIndex := `
		CREATE INDEX IF NOT EXISTS chunks_embedding_idx
		ON chunks
		USING ivfflat (embedding vector_l2_ops)
		WITH (lists = 100)`
	if _, err := s.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	createAnswers := `
		CREATE TABLE IF NOT EXISTS answers (
			id TEXT PRIMARY KEY,
			full_answer TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`
	if _, err := s.pool.Exec(ctx, createAnswers); err != nil {
		return fmt.Errorf("failed to create answers table: %w", err)
	}

	return nil
}

// InsertDocument creates one document record and returns its generated id.
func (s *Store) InsertDocument(ctx context.Context, title string, pages *int) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		"INSERT INTO documents (title, pages) VALUES ($1, $2) RETURNING id",
		sanitizeUTF8(title), pages).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

// InsertChunks writes a document's chunk rows as one atomic batch: on
// any row failure the transaction rolls back and no chunk of the batch
// is visible. Partial chunk sets are not a legal state.
func (s *Store) InsertChunks(ctx context.Context, documentID string, rows []models.ChunkRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := `
		INSERT INTO chunks (document_id, content, snippet, page_from, page_to, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, r := range rows {
		_, err = tx.Exec(ctx, stmt,
			documentID,
			sanitizeUTF8(r.Content),
			sanitizeUTF8(r.Snippet),
			r.PageFrom,
			r.PageTo,
			pgvector.NewVector(r.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// VectorSearch returns the topK stored chunks closest to the query
// vector by L2 distance, joined with their document for attribution.
func (s *Store) VectorSearch(ctx context.Context, queryVec []float32, topK int) ([]models.SearchHit, error) {
	if topK <= 0 {
		topK = s.config.SearchLimit
	}

	query := `
		SELECT d.id, d.title, c.content, c.snippet, c.page_from, c.page_to
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		ORDER BY c.embedding <-> $1
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(queryVec), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.DocID, &h.Title, &h.Content, &h.Snippet, &h.PageFrom, &h.PageTo); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return hits, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
