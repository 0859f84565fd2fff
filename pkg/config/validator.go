package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.LLM.BaseURL != "" {
		if _, err := url.Parse(c.LLM.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid provider base URL",
			})
		}
	}

	// Validate Database config
	if c.Database.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "database URL is required",
		})
	} else if _, err := url.Parse(c.Database.URL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "invalid database URL",
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	// Validate Chunker config
	if c.Chunker.MaxTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.max_tokens",
			Message: "max_tokens must be positive",
		})
	}

	if c.Chunker.OverlapTokens < 0 || c.Chunker.OverlapTokens >= c.Chunker.MaxTokens {
		errors = append(errors, ValidationError{
			Field:   "chunker.overlap_tokens",
			Message: "overlap_tokens must be non-negative and less than max_tokens",
		})
	}

	// Validate QA config
	if c.QA.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "qa.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.QA.ContextBudget < 1 {
		errors = append(errors, ValidationError{
			Field:   "qa.context_budget",
			Message: "context_budget must be positive",
		})
	}

	if c.QA.PreviewMax < 1 {
		errors = append(errors, ValidationError{
			Field:   "qa.preview_max",
			Message: "preview_max must be positive",
		})
	}

	if c.QA.AnswerTTLMinutes < 1 || c.QA.EmptyAnswerTTLMinutes < 1 {
		errors = append(errors, ValidationError{
			Field:   "qa.answer_ttl_minutes",
			Message: "answer TTLs must be positive",
		})
	}

	// Validate Ingest config
	if c.Ingest.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.concurrency",
			Message: "concurrency must be positive",
		})
	}

	return errors
}
