package search

import (
	"context"
	"fmt"
	"time"

	"negotiate/api/internal/logger"
)

const indexTimeout = 30 * time.Second

type primaryIndex interface {
	Searcher
	Indexer
}

type recordLoader interface {
	LoadAllRecords(ctx context.Context) ([]SubmissionRecord, error)
}

// Service tries Meilisearch first and falls back to Postgres full-text
// search.
type Service struct {
	primary  primaryIndex
	fallback Searcher
	loader   recordLoader
	log      *logger.Logger
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(m *Meili, pgfts *PgFTS, log *logger.Logger) *Service {
	s := &Service{log: log.With("service", "search")}
	if m != nil {
		s.primary = m
	}
	if pgfts != nil {
		s.fallback = pgfts
		s.loader = pgfts
	}
	return s
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "meilisearch"}
		}
		s.log.Warn("meilisearch error, falling back to postgres", "error", err)
	}
	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text, Backend: "none"}
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.log.Error("postgres search failed", "error", err)
		return Response{Results: []Result{}, Query: q.Text, Backend: "postgres"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "postgres"}
}

// IndexSubmission pushes one record to Meilisearch without blocking.
func (s *Service) IndexSubmission(record SubmissionRecord) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := s.primary.IndexSubmissions([]SubmissionRecord{record}); err != nil {
			s.log.Warn("index submission failed", "submission_id", record.ID, "error", err)
		}
	}()
}

// DeleteSubmission removes a record from Meilisearch without blocking.
func (s *Service) DeleteSubmission(id string) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := s.primary.DeleteSubmission(id); err != nil {
			s.log.Warn("delete submission from index failed", "submission_id", id, "error", err)
		}
	}()
}

// ReindexAllFromPG reloads every submission into Meilisearch. It is a no-op
// when Meilisearch is absent or unhealthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) error {
	if s.primary == nil || !s.primary.Healthy() || s.loader == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	records, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		return fmt.Errorf("reindex load: %w", err)
	}
	if err := s.primary.IndexSubmissions(records); err != nil {
		return fmt.Errorf("reindex push: %w", err)
	}
	s.log.Info("search index rebuilt", "records", len(records))
	return nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
