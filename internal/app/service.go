package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"negotiate/api/internal/auth"
	"negotiate/api/internal/authpw"
	"negotiate/api/internal/config"
	"negotiate/api/internal/filestore"
	"negotiate/api/internal/logger"
	"negotiate/api/internal/rbac"
	"negotiate/api/internal/search"
	"negotiate/api/internal/store"
	"negotiate/api/internal/util"
	"negotiate/api/internal/verification"
)

type dataStore interface {
	InsertSubmission(context.Context, *store.Submission) error
	GetSubmission(context.Context, string) (store.Submission, error)
	UpdateSubmission(context.Context, *store.Submission) error
	SetSubmissionVerified(context.Context, string, bool) error
	DeleteSubmission(context.Context, string) error
	ListSubmissions(context.Context, store.SubmissionFilter) ([]store.Submission, error)
	ListTopics(context.Context) ([]store.Topic, error)
	ListTopicsByIDs(context.Context, []string) ([]store.Topic, error)
	UpsertTopic(context.Context, *store.Topic) error
	ListAuthors(context.Context) ([]store.Author, error)
	InsertAuthor(context.Context, *store.Author) error
	SubmissionsPerSession(context.Context) ([]store.SessionCount, error)
	SubmissionsPerTopic(context.Context) ([]store.TopicCount, error)
	GetUserByID(context.Context, string) (store.User, error)
	EnsureAPIToken(context.Context, string, string) error
	APITokenExists(context.Context, string) (bool, error)
	Ping(context.Context) error
}

// lifecycle is the set of hooks run around submission writes.
type lifecycle interface {
	BeforeCreate(ctx context.Context, sub *store.Submission) error
	AfterCreate(ctx context.Context, sub *store.Submission) verification.Result
	BeforeUpdate(ctx context.Context, prev, next *store.Submission) verification.Result
	AfterDelete(ctx context.Context, sub store.Submission) verification.Result
}

type fileStore interface {
	Put(ctx context.Context, submissionID, filename string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, submissionID, filename string) (io.ReadCloser, filestore.ObjectInfo, error)
	Remove(ctx context.Context, submissionID, filename string) error
}

type searchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexSubmission(record search.SubmissionRecord)
	DeleteSubmission(id string)
	ReindexAllFromPG(ctx context.Context) error
}

type accounts interface {
	SignUp(ctx context.Context, req authpw.SignUpRequest) (store.User, error)
	SignIn(ctx context.Context, email, password string) (store.User, error)
}

// Options carries the optional collaborators. Nil members disable the
// feature that needs them.
type Options struct {
	Files    fileStore
	Search   searchIndex
	Accounts accounts
	Logger   *logger.Logger
}

type Service struct {
	cfg      config.Config
	store    dataStore
	hooks    lifecycle
	files    fileStore
	search   searchIndex
	accounts accounts
	log      *logger.Logger
}

func New(cfg config.Config, store dataStore, hooks lifecycle, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		hooks:    hooks,
		files:    opts.Files,
		search:   opts.Search,
		accounts: opts.Accounts,
		log:      log.With("service", "app"),
	}
}

// Principal is the caller of a request.
type Principal struct {
	Role      rbac.Role
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
}

func anonymous() Principal {
	return Principal{Role: rbac.RoleAnonymous}
}

func (p Principal) Can(action rbac.Action) bool {
	return rbac.Can(p.Role, action)
}

// Bootstrap seeds the configured api token and the topic taxonomy, then
// rebuilds the search index in the background.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.cfg.APIToken != "" {
		if err := s.store.EnsureAPIToken(ctx, util.NewID(), s.cfg.APIToken); err != nil {
			return err
		}
	}

	topics, err := s.store.ListTopics(ctx)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		count, err := s.SeedTopics(ctx)
		if err != nil {
			return err
		}
		s.log.Info("topics seeded", "count", count)
	}

	if s.search != nil {
		go func() {
			if err := s.search.ReindexAllFromPG(context.Background()); err != nil {
				s.log.Warn("initial search reindex failed", "error", err)
			}
		}()
	}
	return nil
}

// Authenticate resolves the caller. A matching X-API-Token makes the caller
// a service; otherwise a valid bearer token makes it a user. A bearer token
// that does not verify is an error; no credentials at all is anonymous.
func (s *Service) Authenticate(ctx context.Context, apiToken, bearer string) (Principal, error) {
	if apiToken != "" {
		ok, err := s.store.APITokenExists(ctx, apiToken)
		if err != nil {
			return Principal{}, err
		}
		if ok {
			return Principal{Role: rbac.RoleService}, nil
		}
	}
	if bearer == "" {
		return anonymous(), nil
	}

	claims, err := auth.ParseToken([]byte(s.cfg.AuthSecret), bearer)
	if err != nil {
		return Principal{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if errors.Is(err, store.ErrNotFound) {
		return Principal{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		Role:      rbac.Normalize(claims.Role),
		UserID:    user.ID,
		Email:     user.Email,
		Token:     bearer,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      store.User
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (AuthResult, error) {
	if s.accounts == nil {
		return AuthResult{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
	}
	user, err := s.accounts.SignUp(ctx, req)
	if err != nil {
		return AuthResult{}, mapAccountError(err)
	}
	return s.issue(user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (AuthResult, error) {
	if s.accounts == nil {
		return AuthResult{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
	}
	user, err := s.accounts.SignIn(ctx, email, password)
	if err != nil {
		return AuthResult{}, mapAccountError(err)
	}
	return s.issue(user)
}

func (s *Service) issue(user store.User) (AuthResult, error) {
	token, claims, err := auth.Issue([]byte(s.cfg.AuthSecret), user.ID, user.Email, string(rbac.RoleUser), s.cfg.AccessTTL)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{Token: token, ExpiresAt: time.Unix(claims.Exp, 0), User: user}, nil
}

func mapAccountError(err error) error {
	switch {
	case errors.Is(err, authpw.ErrInvalidInput):
		return validationError(err.Error(), nil)
	case errors.Is(err, authpw.ErrEmailTaken):
		return domainError(http.StatusConflict, "EMAIL_TAKEN", "Email already registered", nil)
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	default:
		return err
	}
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text, Backend: "none"}
	}
	return s.search.Search(ctx, q)
}

func (s *Service) Reindex(ctx context.Context) error {
	if s.search == nil {
		return domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	return s.search.ReindexAllFromPG(ctx)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
