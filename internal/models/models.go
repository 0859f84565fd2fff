package models

// Document is one ingested PDF. Immutable after ingestion; a changed
// embedding model requires re-ingestion, never re-embedding in place.
type Document struct {
	ID    string
	Title string
	Pages *int
}

// ChunkRow is a single retrievable passage of a document, ready for
// insertion alongside its embedding.
type ChunkRow struct {
	Content   string
	Snippet   string
	PageFrom  *int
	PageTo    *int
	Embedding []float32
}

// SearchHit is one ranked result of a vector search, carrying enough
// to build answer context and attribution.
type SearchHit struct {
	DocID    string
	Title    string
	Content  string
	Snippet  string
	PageFrom *int
	PageTo   *int
}

// AskResult is what a caller gets back for one question.
type AskResult struct {
	AnswerPreview string `json:"answer_preview"`
	AnswerID      string `json:"answer_id"`
	IsTruncated   bool   `json:"is_truncated"`
}

// EntryResult summarizes one ingested archive entry.
type EntryResult struct {
	Title  string `json:"title"`
	Pages  *int   `json:"pages"`
	Chunks int    `json:"chunks"`
	Err    string `json:"error,omitempty"`
}
