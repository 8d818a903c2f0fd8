package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// IsUniqueViolation reports whether err is a unique constraint failure. When
// index is non-empty the violated constraint must match it.
func IsUniqueViolation(err error, index string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return index == "" || pgErr.ConstraintName == index
}

const submissionColumns = `id, title, description, href, file, session, document_type, verified,
	retriever_id, author, topic, key_element, created, updated`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (Submission, error) {
	var (
		item                    Submission
		author, topic, elements []byte
	)
	err := row.Scan(&item.ID, &item.Title, &item.Description, &item.Href, &item.File, &item.Session,
		&item.DocumentType, &item.Verified, &item.RetrieverID, &author, &topic, &elements,
		&item.Created, &item.Updated)
	if err != nil {
		return Submission{}, err
	}
	if err := decodeJSON(author, &item.Author); err != nil {
		return Submission{}, fmt.Errorf("decode author: %w", err)
	}
	if err := decodeJSON(topic, &item.Topic); err != nil {
		return Submission{}, fmt.Errorf("decode topic: %w", err)
	}
	if err := decodeJSON(elements, &item.KeyElement); err != nil {
		return Submission{}, fmt.Errorf("decode key_element: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) InsertSubmission(ctx context.Context, item *Submission) error {
	author, topic, elements, err := encodeSubmissionJSON(*item)
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO submissions (id, title, description, href, file, session, document_type, verified,
			retriever_id, author, topic, key_element)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created, updated
	`, item.ID, item.Title, item.Description, item.Href, item.File, item.Session, item.DocumentType,
		item.Verified, item.RetrieverID, author, topic, elements).Scan(&item.Created, &item.Updated)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	item, err := scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	if err != nil {
		return Submission{}, fmt.Errorf("get submission: %w", err)
	}
	return item, nil
}

// UpdateSubmission writes every mutable column. The retriever id is fixed at
// creation and never rewritten.
func (s *PostgresStore) UpdateSubmission(ctx context.Context, item *Submission) error {
	author, topic, elements, err := encodeSubmissionJSON(*item)
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx, `
		UPDATE submissions
		SET title=$2, description=$3, href=$4, file=$5, session=$6, document_type=$7, verified=$8,
			author=$9, topic=$10, key_element=$11, updated=NOW()
		WHERE id=$1
		RETURNING updated
	`, item.ID, item.Title, item.Description, item.Href, item.File, item.Session, item.DocumentType,
		item.Verified, author, topic, elements).Scan(&item.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetSubmissionVerified(ctx context.Context, id string, verified bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET verified=$2, updated=NOW() WHERE id=$1`, id, verified)
	if err != nil {
		return fmt.Errorf("set submission verified: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeleteSubmission(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM submissions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Session != "" {
		add("session=$%d", filter.Session)
	}
	if filter.DocumentType != "" {
		add("document_type=$%d", filter.DocumentType)
	}
	if filter.Verified != nil {
		add("verified=$%d", *filter.Verified)
	}
	if filter.Topic != "" {
		add("topic @> jsonb_build_array($%d::text)", filter.Topic)
	}
	if filter.Author != "" {
		add("author @> jsonb_build_array($%d::text)", filter.Author)
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	items := make([]Submission, 0)
	for rows.Next() {
		item, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) RetrieverIDExists(ctx context.Context, retrieverID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM submissions WHERE retriever_id=$1)`, retrieverID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check retriever id: %w", err)
	}
	return exists, nil
}

func scanTopic(row rowScanner) (Topic, error) {
	var (
		item            Topic
		elements, child []byte
	)
	if err := row.Scan(&item.ID, &item.Article, &item.Name, &elements, &child, &item.Created, &item.Updated); err != nil {
		return Topic{}, err
	}
	if err := decodeJSON(elements, &item.KeyElement); err != nil {
		return Topic{}, fmt.Errorf("decode key_element: %w", err)
	}
	if err := decodeJSON(child, &item.Child); err != nil {
		return Topic{}, fmt.Errorf("decode child: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) queryTopics(ctx context.Context, query string, args ...any) ([]Topic, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	items := make([]Topic, 0)
	for rows.Next() {
		item, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListTopics(ctx context.Context) ([]Topic, error) {
	return s.queryTopics(ctx, `
		SELECT id, article, name, key_element, child, created, updated
		FROM topics
		ORDER BY NULLIF(regexp_replace(article, '\D', '', 'g'), '')::INT NULLS LAST, name
	`)
}

// ListTopicsByIDs returns the matching topics in no particular order. Unknown
// ids are ignored.
func (s *PostgresStore) ListTopicsByIDs(ctx context.Context, ids []string) ([]Topic, error) {
	if len(ids) == 0 {
		return []Topic{}, nil
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode topic ids: %w", err)
	}
	return s.queryTopics(ctx, `
		SELECT id, article, name, key_element, child, created, updated
		FROM topics
		WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
	`, string(encoded))
}

// UpsertTopic inserts a topic or refreshes the article and key elements of
// the topic with the same name.
func (s *PostgresStore) UpsertTopic(ctx context.Context, item *Topic) error {
	elements, err := encodeList(item.KeyElement)
	if err != nil {
		return err
	}
	child, err := encodeList(item.Child)
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO topics (id, article, name, key_element, child)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
		SET article=EXCLUDED.article, key_element=EXCLUDED.key_element, child=EXCLUDED.child, updated=NOW()
		RETURNING id, created, updated
	`, item.ID, item.Article, item.Name, elements, child).Scan(&item.ID, &item.Created, &item.Updated)
	if err != nil {
		return fmt.Errorf("upsert topic: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuthors(ctx context.Context) ([]Author, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, geometry, created, updated
		FROM authors
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	defer rows.Close()

	items := make([]Author, 0)
	for rows.Next() {
		var (
			item     Author
			geometry []byte
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Type, &geometry, &item.Created, &item.Updated); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		if err := decodeJSON(geometry, &item.Geometry); err != nil {
			return nil, fmt.Errorf("decode geometry: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate authors: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertAuthor(ctx context.Context, item *Author) error {
	var geometry any
	if item.Geometry != nil {
		encoded, err := json.Marshal(item.Geometry)
		if err != nil {
			return fmt.Errorf("encode geometry: %w", err)
		}
		geometry = string(encoded)
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO authors (id, name, type, geometry)
		VALUES ($1, $2, $3, $4)
		RETURNING created, updated
	`, item.ID, item.Name, item.Type, geometry).Scan(&item.Created, &item.Updated)
	if err != nil {
		return fmt.Errorf("insert author: %w", err)
	}
	return nil
}

func (s *PostgresStore) SubmissionsPerSession(ctx context.Context) ([]SessionCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session, submissions_count
		FROM submissions_per_session
		ORDER BY session
	`)
	if err != nil {
		return nil, fmt.Errorf("submissions per session: %w", err)
	}
	defer rows.Close()

	items := make([]SessionCount, 0)
	for rows.Next() {
		var item SessionCount
		if err := rows.Scan(&item.Session, &item.SubmissionsCount); err != nil {
			return nil, fmt.Errorf("scan session count: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session counts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SubmissionsPerTopic(ctx context.Context) ([]TopicCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic_id, COALESCE(topic_name, ''), submissions_count
		FROM submissions_per_topic
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("submissions per topic: %w", err)
	}
	defer rows.Close()

	items := make([]TopicCount, 0)
	for rows.Next() {
		var item TopicCount
		if err := rows.Scan(&item.ID, &item.TopicID, &item.TopicName, &item.SubmissionsCount); err != nil {
			return nil, fmt.Errorf("scan topic count: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topic counts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, verified)
		VALUES ($1, LOWER($2), $3, $4, $5, $6)
		RETURNING email, created, updated
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Verified).
		Scan(&user.Email, &user.Created, &user.Updated)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, first_name, last_name, verified, created, updated
		FROM users
		WHERE `+where, arg).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FirstName,
		&user.LastName, &user.Verified, &user.Created, &user.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `email=LOWER($1)`, email)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `id=$1`, id)
}

// EnsureAPIToken stores value in api_tokens unless it is already present.
func (s *PostgresStore) EnsureAPIToken(ctx context.Context, id, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_tokens (id, value)
		VALUES ($1, $2)
		ON CONFLICT (value) DO NOTHING
	`, id, value)
	if err != nil {
		return fmt.Errorf("ensure api token: %w", err)
	}
	return nil
}

func (s *PostgresStore) APITokenExists(ctx context.Context, value string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM api_tokens WHERE value=$1)`, value).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check api token: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeSubmissionJSON(item Submission) (author, topic string, elements any, err error) {
	if author, err = encodeList(item.Author); err != nil {
		return "", "", nil, err
	}
	if topic, err = encodeList(item.Topic); err != nil {
		return "", "", nil, err
	}
	if item.KeyElement != nil {
		encoded, err := json.Marshal(item.KeyElement)
		if err != nil {
			return "", "", nil, fmt.Errorf("encode key_element: %w", err)
		}
		elements = string(encoded)
	}
	return author, topic, elements, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(encoded), nil
}

func decodeJSON(raw []byte, target any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, target)
}
