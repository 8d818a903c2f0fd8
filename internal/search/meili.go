package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"negotiate/api/internal/logger"
)

const idxSubmissions = "submissions"

var errUnhealthy = errors.New("meilisearch unhealthy")

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	log     *logger.Logger
}

// NewMeili creates a Meilisearch client and configures the index. An
// unreachable server is tolerated; the health loop picks it up later.
func NewMeili(url, apiKey string, log *logger.Logger) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
		log:    log.With("service", "search", "backend", "meilisearch"),
	}

	if _, err := m.client.Health(); err != nil {
		m.log.Warn("meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idxSubmissions, PrimaryKey: "id"}); err != nil {
		m.log.Debug("create index (may already exist)", "index", idxSubmissions, "error", err)
	}

	index := m.client.Index(idxSubmissions)
	filterable := []interface{}{"session", "document_type", "verified", "topic", "author"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.log.Warn("update filterable attributes", "index", idxSubmissions, "error", err)
	}
	searchable := []string{"title", "description"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.log.Warn("update searchable attributes", "index", idxSubmissions, "error", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, errUnhealthy
	}

	request := &meili.SearchRequest{
		IndexUID:              idxSubmissions,
		Query:                 q.Text,
		Limit:                 int64(limitOf(q)),
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"title", "description"},
		AttributesToCrop:      []string{"description"},
		CropLength:            30,
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	if filters := meiliFilters(q); len(filters) > 0 {
		request.Filter = filters
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: []*meili.SearchRequest{request}})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	var (
		results []Result
		total   int
	)
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func meiliFilters(q Query) []string {
	var filters []string
	if q.Session != "" {
		filters = append(filters, fmt.Sprintf("session = %q", q.Session))
	}
	if q.DocumentType != "" {
		filters = append(filters, fmt.Sprintf("document_type = %q", q.DocumentType))
	}
	if q.Topic != "" {
		filters = append(filters, fmt.Sprintf("topic = %q", q.Topic))
	}
	if q.Verified != nil {
		filters = append(filters, fmt.Sprintf("verified = %t", *q.Verified))
	}
	return filters
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:           decodeString(hit, "id"),
		Session:      decodeString(hit, "session"),
		DocumentType: decodeString(hit, "document_type"),
	}
	r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	if raw, ok := hit["verified"]; ok {
		_ = json.Unmarshal(raw, &r.Verified)
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (m *Meili) IndexSubmissions(records []SubmissionRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxSubmissions).AddDocuments(records, nil)
	return err
}

func (m *Meili) DeleteSubmission(id string) error {
	_, err := m.client.Index(idxSubmissions).DeleteDocument(id, nil)
	return err
}
