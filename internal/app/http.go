package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"negotiate/api/internal/auth"
	"negotiate/api/internal/authpw"
	"negotiate/api/internal/logger"
	"negotiate/api/internal/rbac"
	"negotiate/api/internal/search"
	"negotiate/api/internal/store"
)

const maxUploadBytes = 100 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	limiter    func(http.Handler) http.Handler
	log        *logger.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, log *logger.Logger) *HTTPServer {
	if log == nil {
		log = logger.Nop()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: log.With("service", "http")}
}

// WithRateLimit puts mw in front of every route.
func (s *HTTPServer) WithRateLimit(mw func(http.Handler) http.Handler) *HTTPServer {
	s.limiter = mw
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	var next http.Handler = http.HandlerFunc(s.handle)
	if s.limiter != nil {
		next = s.limiter(next)
	}
	return s.withMiddleware(next)
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		principal, err := s.service.Authenticate(r.Context(), r.Header.Get("X-API-Token"), bearerToken(r))
		if err != nil || principal.Role == rbac.RoleAnonymous {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "role": rbac.RoleAnonymous})
			return
		}
		response := map[string]any{"authenticated": true, "role": principal.Role}
		if principal.UserID != "" {
			response["userId"] = principal.UserID
			response["email"] = principal.Email
			response["expiresAt"] = principal.ExpiresAt.Unix()
		}
		writeJSON(w, http.StatusOK, response)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/taxonomy" {
		writeJSON(w, http.StatusOK, map[string]any{"articles": s.service.Taxonomy()})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}

	switch parts[1] {
	case "submissions":
		if len(parts) > 3 {
			break
		}
		id := ""
		if len(parts) == 3 {
			id = parts[2]
		}
		s.handleSubmissions(w, r, id)
		return
	case "files":
		if len(parts) == 5 && parts[2] == "submissions" && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
			s.handleFile(w, r, parts[3], parts[4])
			return
		}
	case "topics":
		if len(parts) == 2 {
			s.handleTopics(w, r)
			return
		}
	case "authors":
		if len(parts) == 2 {
			s.handleAuthors(w, r)
			return
		}
	case "stats":
		if len(parts) == 3 && r.Method == http.MethodGet {
			s.handleStats(w, r, parts[2])
			return
		}
	case "search":
		if len(parts) == 2 && r.Method == http.MethodGet {
			s.handleSearch(w, r)
			return
		}
	case "admin":
		if len(parts) == 3 && parts[2] == "reindex" && r.Method == http.MethodPost {
			principal, ok := s.require(w, r, rbac.ActionAdmin)
			if !ok {
				return
			}
			if err := s.service.Reindex(r.Context()); err != nil {
				s.fail(w, err)
				return
			}
			s.log.Info("search reindexed", "role", principal.Role)
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleTopics(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		topics, err := s.service.ListTopics(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		items := make([]topicJSON, 0, len(topics))
		for _, topic := range topics {
			items = append(items, toTopicJSON(topic))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if _, ok := s.require(w, r, rbac.ActionAdmin); !ok {
			return
		}
		var body TopicInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		topic, err := s.service.SaveTopic(r.Context(), body)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toTopicJSON(topic))
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleAuthors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		authors, err := s.service.ListAuthors(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		items := make([]authorJSON, 0, len(authors))
		for _, author := range authors {
			items = append(items, toAuthorJSON(author))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if _, ok := s.require(w, r, rbac.ActionAdmin); !ok {
			return
		}
		var body AuthorInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		author, err := s.service.CreateAuthor(r.Context(), body)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAuthorJSON(author))
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request, name string) {
	switch name {
	case "submissions-per-session":
		counts, err := s.service.SubmissionsPerSession(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		items := make([]map[string]any, 0, len(counts))
		for _, count := range counts {
			items = append(items, map[string]any{
				"session":           count.Session,
				"submissions_count": count.SubmissionsCount,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case "submissions-per-topic":
		counts, err := s.service.SubmissionsPerTopic(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		items := make([]map[string]any, 0, len(counts))
		for _, count := range counts {
			items = append(items, map[string]any{
				"id":                count.ID,
				"topic_id":          count.TopicID,
				"topic_name":        count.TopicName,
				"submissions_count": count.SubmissionsCount,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	verified, err := optionalBool(query.Get("verified"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "verified must be true or false", nil)
		return
	}
	q := search.Query{
		Text:         strings.TrimSpace(query.Get("q")),
		Session:      query.Get("session"),
		DocumentType: query.Get("document_type"),
		Topic:        query.Get("topic"),
		Verified:     verified,
		Limit:        atoiDefault(query.Get("limit"), 0),
		Offset:       atoiDefault(query.Get("offset"), 0),
	}
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), q))
}

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.SignUp(r.Context(), authpw.SignUpRequest{
		Email:     body.Email,
		Password:  body.Password,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse(result))
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(result))
}

func authResponse(result AuthResult) map[string]any {
	return map[string]any{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt.Unix(),
		"record": map[string]any{
			"id":         result.User.ID,
			"email":      result.User.Email,
			"first_name": result.User.FirstName,
			"last_name":  result.User.LastName,
			"verified":   result.User.Verified,
		},
	}
}

// require resolves the caller and checks it may perform action. Anonymous
// callers get 401, authenticated callers without the role get 403.
func (s *HTTPServer) require(w http.ResponseWriter, r *http.Request, action rbac.Action) (Principal, bool) {
	principal, err := s.service.Authenticate(r.Context(), r.Header.Get("X-API-Token"), bearerToken(r))
	if err != nil {
		s.fail(w, err)
		return Principal{}, false
	}
	if principal.Can(action) {
		return principal, true
	}
	if principal.Role == rbac.RoleAnonymous {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Principal{}, false
	}
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	return Principal{}, false
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "code", code, "error", err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	logged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)
		writer.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(writer, r)

		s.log.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})

	return cors.New(cors.Options{
		AllowedOrigins:   corsOrigins(s.corsOrigin),
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID", "X-API-Token"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
	}).Handler(logged)
}

func corsOrigins(value string) []string {
	var origins []string
	for _, origin := range strings.Split(value, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func optionalBool(value string) (*bool, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func atoiDefault(value string, fallback int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
