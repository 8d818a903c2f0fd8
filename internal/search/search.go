package search

import "context"

// Result is a single search hit returned to the caller.
type Result struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Snippet      string `json:"snippet"`
	Session      string `json:"session"`
	DocumentType string `json:"document_type"`
	Verified     bool   `json:"verified"`
}

// Query describes a search request. Empty filters match everything.
type Query struct {
	Text         string
	Session      string
	DocumentType string
	Topic        string
	Verified     *bool
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push submissions into a search index.
type Indexer interface {
	IndexSubmissions(records []SubmissionRecord) error
	DeleteSubmission(id string) error
}

// SubmissionRecord is the data we index for a submission.
type SubmissionRecord struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Session      string   `json:"session"`
	DocumentType string   `json:"document_type"`
	Verified     bool     `json:"verified"`
	Topic        []string `json:"topic"`
	Author       []string `json:"author"`
	Created      int64    `json:"created"`
}

const defaultLimit = 20

func limitOf(q Query) int {
	if q.Limit <= 0 {
		return defaultLimit
	}
	return q.Limit
}
