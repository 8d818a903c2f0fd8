package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PgFTS implements Searcher on the generated submissions.fts column.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks with ts_rank when text is given and lists newest first
// otherwise.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	text := strings.TrimSpace(q.Text)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where, args := pgWhere(q, text)
	snippet := "left(description, 200)"
	rank := "0::real"
	order := "created DESC"
	if text != "" {
		snippet = "ts_headline('english', coalesce(description, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30')"
		rank = "ts_rank(fts, plainto_tsquery('english', $1))"
		order = "rank DESC, created DESC"
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM submissions`+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT id, title, %s AS snippet, session, document_type, verified, %s AS rank
		FROM submissions%s
		ORDER BY %s
		LIMIT %d OFFSET %d`, snippet, rank, whereSQL, order, limitOf(q), offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r     Result
			score float32
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.Session, &r.DocumentType, &r.Verified, &score); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

func pgWhere(q Query, text string) ([]string, []any) {
	var (
		where []string
		args  []any
	)
	if text != "" {
		args = append(args, text)
		where = append(where, "fts @@ plainto_tsquery('english', $1)")
	}
	if q.Session != "" {
		args = append(args, q.Session)
		where = append(where, fmt.Sprintf("session = $%d", len(args)))
	}
	if q.DocumentType != "" {
		args = append(args, q.DocumentType)
		where = append(where, fmt.Sprintf("document_type = $%d", len(args)))
	}
	if q.Topic != "" {
		args = append(args, q.Topic)
		where = append(where, fmt.Sprintf("topic @> jsonb_build_array($%d::text)", len(args)))
	}
	if q.Verified != nil {
		args = append(args, *q.Verified)
		where = append(where, fmt.Sprintf("verified = $%d", len(args)))
	}
	return where, args
}

// LoadAllRecords returns every submission for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]SubmissionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description, session, document_type, verified, topic, author, created
		FROM submissions
	`)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	defer rows.Close()

	records := make([]SubmissionRecord, 0)
	for rows.Next() {
		var (
			r             SubmissionRecord
			topic, author []byte
			created       sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.Session, &r.DocumentType, &r.Verified, &topic, &author, &created); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if len(topic) > 0 {
			_ = json.Unmarshal(topic, &r.Topic)
		}
		if len(author) > 0 {
			_ = json.Unmarshal(author, &r.Author)
		}
		if created.Valid {
			r.Created = created.Time.Unix()
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return records, nil
}
