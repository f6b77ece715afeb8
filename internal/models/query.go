package models

import (
	"fmt"
	"strings"
)

// SearchQuery is the wire shape of a search request. TopK is optional; nil means the configured default.
type SearchQuery struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

// Validate rejects empty queries and resolves TopK against defaultTopK.
// It does not clamp; the search service does that.
func (q *SearchQuery) Validate(defaultTopK int) (int, error) {
	if strings.TrimSpace(q.Query) == "" {
		return 0, fmt.Errorf("%w: query cannot be empty", ErrInvalidInput)
	}
	if q.TopK == nil {
		return defaultTopK, nil
	}
	if *q.TopK <= 0 {
		return 0, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidInput, *q.TopK)
	}
	return *q.TopK, nil
}
