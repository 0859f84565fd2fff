package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// SaveAnswer upserts a cached answer under the caller-generated id,
// resetting its expiry to now + ttl. The store never generates ids.
func (s *Store) SaveAnswer(ctx context.Context, id, fullText string, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO answers (id, full_answer, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT (id) DO UPDATE
		SET full_answer = EXCLUDED.full_answer,
		    expires_at  = EXCLUDED.expires_at`,
		id, fullText, ttl.Seconds())
	if err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}

// LoadAnswer returns the cached full text while its expiry is still in
// the future. Expired rows are invisible, not purged (lazy expiry).
func (s *Store) LoadAnswer(ctx context.Context, id string) (string, error) {
	var full string
	err := s.pool.QueryRow(ctx, `
		SELECT full_answer
		FROM answers
		WHERE id = $1 AND expires_at > now()
		LIMIT 1`, id).Scan(&full)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrAnswerNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load answer: %w", err)
	}
	return full, nil
}
