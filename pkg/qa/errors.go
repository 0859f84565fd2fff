package qa

import "errors"

var (
	// ErrEmptyQuestion is returned for a missing or blank question.
	// User-correctable; maps to a 400 at the HTTP layer.
	ErrEmptyQuestion = errors.New("missing question")

	// ErrEmptyAnswerID is returned for a missing or blank answer id.
	ErrEmptyAnswerID = errors.New("missing answer id")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrCacheRequired is returned when an answer cache is not provided.
	ErrCacheRequired = errors.New("answer cache required")

	// ErrDrafterRequired is returned when a drafter is not provided.
	ErrDrafterRequired = errors.New("drafter required")
)
