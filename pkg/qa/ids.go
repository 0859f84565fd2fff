package qa

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// answerIDBytes is the entropy behind a cached-answer id. 12 random
// bytes hex-encode to a 24-character, URL-safe, unguessable token.
const answerIDBytes = 12

// NewAnswerID generates an opaque id for a cached answer. Ids are
// always generated here, never by the cache.
func NewAnswerID() (string, error) {
	buf := make([]byte, answerIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate answer id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
