package app

import (
	"context"
	"net/http"
	"strings"

	"negotiate/api/internal/store"
	"negotiate/api/internal/taxonomy"
	"negotiate/api/internal/util"
)

type TopicInput struct {
	Article    string   `json:"article"`
	Name       string   `json:"name"`
	KeyElement []string `json:"key_element"`
	Child      []string `json:"child"`
}

type AuthorInput struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Geometry *store.Geometry `json:"geometry"`
}

func (s *Service) ListTopics(ctx context.Context) ([]store.Topic, error) {
	return s.store.ListTopics(ctx)
}

// SaveTopic creates a topic, or refreshes the one with the same name.
func (s *Service) SaveTopic(ctx context.Context, in TopicInput) (store.Topic, error) {
	topic := store.Topic{
		ID:         util.NewID(),
		Article:    strings.TrimSpace(in.Article),
		Name:       strings.TrimSpace(in.Name),
		KeyElement: in.KeyElement,
		Child:      in.Child,
	}
	details := map[string]string{}
	if topic.Name == "" {
		details["name"] = "required"
	}
	if unknown := taxonomy.Validate(topic.KeyElement); len(unknown) > 0 {
		details["key_element"] = "unknown key elements: " + strings.Join(unknown, ", ")
	}
	if len(details) > 0 {
		return store.Topic{}, validationError("Invalid topic", details)
	}
	if err := s.store.UpsertTopic(ctx, &topic); err != nil {
		return store.Topic{}, err
	}
	return topic, nil
}

// SeedTopics upserts one topic per taxonomy article and returns how many
// were written.
func (s *Service) SeedTopics(ctx context.Context) (int, error) {
	articles := taxonomy.Articles()
	for _, article := range articles {
		topic := store.Topic{
			ID:         util.NewID(),
			Article:    article.Number,
			Name:       article.Title,
			KeyElement: article.KeyElements,
			Child:      []string{},
		}
		if err := s.store.UpsertTopic(ctx, &topic); err != nil {
			return 0, err
		}
	}
	return len(articles), nil
}

func (s *Service) Taxonomy() []taxonomy.Article {
	return taxonomy.Articles()
}

func (s *Service) ListAuthors(ctx context.Context) ([]store.Author, error) {
	return s.store.ListAuthors(ctx)
}

func (s *Service) CreateAuthor(ctx context.Context, in AuthorInput) (store.Author, error) {
	author := store.Author{
		ID:       util.NewID(),
		Name:     strings.TrimSpace(in.Name),
		Type:     strings.TrimSpace(in.Type),
		Geometry: in.Geometry,
	}
	if author.Name == "" {
		return store.Author{}, validationError("Invalid author", map[string]string{"name": "required"})
	}
	if g := author.Geometry; g != nil && (g.Lat < -90 || g.Lat > 90 || g.Lon < -180 || g.Lon > 180) {
		return store.Author{}, validationError("Invalid author", map[string]string{"geometry": "coordinates out of range"})
	}
	if err := s.store.InsertAuthor(ctx, &author); err != nil {
		if store.IsUniqueViolation(err, "") {
			return store.Author{}, domainError(http.StatusConflict, "AUTHOR_EXISTS", "An author with this name already exists", nil)
		}
		return store.Author{}, err
	}
	return author, nil
}

func (s *Service) SubmissionsPerSession(ctx context.Context) ([]store.SessionCount, error) {
	return s.store.SubmissionsPerSession(ctx)
}

func (s *Service) SubmissionsPerTopic(ctx context.Context) ([]store.TopicCount, error) {
	return s.store.SubmissionsPerTopic(ctx)
}
