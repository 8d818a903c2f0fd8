package jobs

import "context"

type Reindexer interface {
	ReindexAllFromPG(ctx context.Context) error
}

// SearchReindex rebuilds the search index from Postgres so documents missed
// by fire-and-forget indexing eventually show up.
type SearchReindex struct {
	reindexer Reindexer
	schedule  string
}

func NewSearchReindex(reindexer Reindexer, schedule string) *SearchReindex {
	return &SearchReindex{reindexer: reindexer, schedule: schedule}
}

func (j *SearchReindex) Name() string     { return "search_reindex" }
func (j *SearchReindex) Schedule() string { return j.schedule }

func (j *SearchReindex) Run(ctx context.Context) error {
	return j.reindexer.ReindexAllFromPG(ctx)
}
