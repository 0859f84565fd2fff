package ingest

import "errors"

var (
	// ErrExtractorRequired is returned when an extractor is not provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrEmptyArchive is returned when an uploaded archive holds no
	// ingestible documents.
	ErrEmptyArchive = errors.New("archive contains no PDF entries")
)
