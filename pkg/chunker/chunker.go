package chunker

import "strings"

// charsPerToken is a naive token estimate, avoiding a tokenizer dependency.
const charsPerToken = 4

type ChunkerConfig struct {
	MaxTokens     int
	OverlapTokens int
}

type Chunker struct {
	config ChunkerConfig
}

func NewWithConfig(config ChunkerConfig) Chunker {
	if config.MaxTokens == 0 {
		config.MaxTokens = 800
	}
	if config.OverlapTokens == 0 {
		config.OverlapTokens = 80
	}

	return Chunker{
		config: config,
	}
}

// Split cuts text into overlapping passages of at most MaxTokens
// estimated tokens. Windows that do not reach the end of the text are
// cut back to the last ". " when it falls past 60% of the window, so
// chunks tend to end on sentence boundaries. Consecutive passages
// overlap by roughly OverlapTokens tokens. Pure and stateless; empty
// input yields nil.
func (c *Chunker) Split(text string) []string {
	maxChars := c.config.MaxTokens * charsPerToken
	overlapChars := c.config.OverlapTokens * charsPerToken

	var out []string
	i := 0
	for i < len(text) {
		end := i + maxChars
		if end > len(text) {
			end = len(text)
		}
		window := text[i:end]

		if end < len(text) {
			if lastDot := strings.LastIndex(window, ". "); lastDot > maxChars*6/10 {
				window = window[:lastDot+1]
			}
		}

		out = append(out, strings.TrimSpace(window))
		if end >= len(text) {
			break
		}

		// Advance at least one byte so pathological inputs (windows
		// shorter than the overlap) cannot loop forever.
		advance := len(window) - overlapChars
		if advance < 1 {
			advance = 1
		}
		i += advance
	}

	return out
}
