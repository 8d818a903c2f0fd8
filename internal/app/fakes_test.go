package app

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"negotiate/api/internal/authpw"
	"negotiate/api/internal/config"
	"negotiate/api/internal/filestore"
	"negotiate/api/internal/processing"
	"negotiate/api/internal/retriever"
	"negotiate/api/internal/search"
	"negotiate/api/internal/store"
	"negotiate/api/internal/verification"
)

const (
	testAPIToken = "service-token"
	testFileHost = "http://files.test"
)

type memStore struct {
	mu       sync.Mutex
	subs     map[string]store.Submission
	topics   map[string]store.Topic
	authors  []store.Author
	users    map[string]store.User
	tokens   map[string]bool
	verified []string

	insertErr          error
	pingErr            error
	retrieverIDExistFn func(string) bool
}

func newMemStore() *memStore {
	return &memStore{
		subs:   map[string]store.Submission{},
		topics: map[string]store.Topic{},
		users:  map[string]store.User{},
		tokens: map[string]bool{testAPIToken: true},
	}
}

func (m *memStore) InsertSubmission(_ context.Context, sub *store.Submission) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = *sub
	return nil
}

func (m *memStore) GetSubmission(_ context.Context, id string) (store.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return store.Submission{}, store.ErrNotFound
	}
	return sub, nil
}

func (m *memStore) UpdateSubmission(_ context.Context, sub *store.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[sub.ID]; !ok {
		return store.ErrNotFound
	}
	m.subs[sub.ID] = *sub
	return nil
}

func (m *memStore) SetSubmissionVerified(_ context.Context, id string, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return store.ErrNotFound
	}
	sub.Verified = verified
	m.subs[id] = sub
	m.verified = append(m.verified, id)
	return nil
}

func (m *memStore) DeleteSubmission(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.subs, id)
	return nil
}

func (m *memStore) ListSubmissions(_ context.Context, filter store.SubmissionFilter) ([]store.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Submission, 0, len(m.subs))
	for _, sub := range m.subs {
		if filter.Session != "" && sub.Session != filter.Session {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (m *memStore) RetrieverIDExists(_ context.Context, retrieverID string) (bool, error) {
	if m.retrieverIDExistFn != nil {
		return m.retrieverIDExistFn(retrieverID), nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.RetrieverID == retrieverID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListTopics(context.Context) ([]store.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Topic, 0, len(m.topics))
	for _, topic := range m.topics {
		out = append(out, topic)
	}
	return out, nil
}

func (m *memStore) ListTopicsByIDs(_ context.Context, ids []string) ([]store.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Topic
	for _, id := range ids {
		if topic, ok := m.topics[id]; ok {
			out = append(out, topic)
		}
	}
	return out, nil
}

func (m *memStore) UpsertTopic(_ context.Context, topic *store.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.topics {
		if existing.Name == topic.Name {
			topic.ID = id
		}
	}
	m.topics[topic.ID] = *topic
	return nil
}

func (m *memStore) ListAuthors(context.Context) ([]store.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Author(nil), m.authors...), nil
}

func (m *memStore) InsertAuthor(_ context.Context, author *store.Author) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authors = append(m.authors, *author)
	return nil
}

func (m *memStore) SubmissionsPerSession(context.Context) ([]store.SessionCount, error) {
	return []store.SessionCount{{Session: "1", SubmissionsCount: 3}, {Session: "", SubmissionsCount: 1}}, nil
}

func (m *memStore) SubmissionsPerTopic(context.Context) ([]store.TopicCount, error) {
	return []store.TopicCount{{ID: 1, TopicID: "t1", TopicName: "Objectives", SubmissionsCount: 2}}, nil
}

func (m *memStore) CreateUser(_ context.Context, user *store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Created = time.Now()
	user.Updated = user.Created
	m.users[user.ID] = *user
	return nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memStore) EnsureAPIToken(_ context.Context, _ string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[value] = true
	return nil
}

func (m *memStore) APITokenExists(_ context.Context, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[value], nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

type fakeProcessor struct {
	mu         sync.Mutex
	processErr error
	deleteErr  error
	processed  []processing.ProcessRequest
	deleted    []string
}

func (f *fakeProcessor) ProcessSubmission(_ context.Context, req processing.ProcessRequest) (processing.ProcessResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, req)
	if f.processErr != nil {
		return processing.ProcessResponse{}, f.processErr
	}
	return processing.ProcessResponse{TaskID: "task-1"}, nil
}

func (f *fakeProcessor) DeleteSubmissionVector(_ context.Context, retrieverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, retrieverID)
	return f.deleteErr
}

type memFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	removed []string
}

func newMemFiles() *memFiles {
	return &memFiles{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memFiles) Put(_ context.Context, submissionID, filename string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := filestore.ObjectKey(submissionID, filename)
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memFiles) Open(_ context.Context, submissionID, filename string) (io.ReadCloser, filestore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := filestore.ObjectKey(submissionID, filename)
	data, ok := m.objects[key]
	if !ok {
		return nil, filestore.ObjectInfo{}, filestore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), filestore.ObjectInfo{Size: int64(len(data)), ContentType: m.types[key]}, nil
}

func (m *memFiles) Remove(_ context.Context, submissionID, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := filestore.ObjectKey(submissionID, filename)
	delete(m.objects, key)
	m.removed = append(m.removed, key)
	return nil
}

func (m *memFiles) has(submissionID, filename string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[filestore.ObjectKey(submissionID, filename)]
	return ok
}

type fakeSearch struct {
	mu         sync.Mutex
	indexed    []search.SubmissionRecord
	deleted    []string
	reindexed  chan struct{}
	reindexErr error
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{reindexed: make(chan struct{}, 4)}
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	return search.Response{Results: []search.Result{{ID: "s1", Title: "match"}}, Total: 1, Query: q.Text, Backend: "fake"}
}

func (f *fakeSearch) IndexSubmission(record search.SubmissionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, record)
}

func (f *fakeSearch) DeleteSubmission(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

func (f *fakeSearch) ReindexAllFromPG(context.Context) error {
	f.reindexed <- struct{}{}
	return f.reindexErr
}

type testEnv struct {
	store     *memStore
	processor *fakeProcessor
	files     *memFiles
	search    *fakeSearch
	service   *Service
}

func testConfig() config.Config {
	return config.Config{
		AuthSecret:             "test-secret",
		AccessTTL:              time.Hour,
		PublicHost:             testFileHost,
		RetrieverIDMaxAttempts: 5,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     newMemStore(),
		processor: &fakeProcessor{},
		files:     newMemFiles(),
		search:    newFakeSearch(),
	}
	cfg := testConfig()
	allocator := retriever.NewAllocator(env.store, cfg.RetrieverIDMaxAttempts, nil)
	workflow := verification.New(verification.Settings{FileHost: cfg.PublicHost}, env.processor, env.store, allocator, nil)
	env.service = New(cfg, env.store, workflow, Options{
		Files:    env.files,
		Search:   env.search,
		Accounts: authpw.NewService(env.store),
	})
	return env
}

func (e *testEnv) addTopic(id, article string, elements ...string) {
	e.store.topics[id] = store.Topic{ID: id, Article: article, Name: "topic " + id, KeyElement: elements}
}

func textUpload(name, body string) *Upload {
	return &Upload{Filename: name, ContentType: "application/pdf", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func signUpRequest(email string) authpw.SignUpRequest {
	return authpw.SignUpRequest{Email: email, Password: "correct horse battery", FirstName: "Ada"}
}
