package models

// SearchResult is a single ranked, attributed match.
type SearchResult struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	ChapterID  string  `json:"chapter_id,omitempty"`
	Score      float64 `json:"similarity_score"` // cosine similarity in [-1, 1]
	Rank       int     `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}
