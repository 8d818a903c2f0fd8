package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negotiate/api/internal/ratelimit"
	"negotiate/api/internal/store"
)

func newTestServer(t *testing.T) (*testEnv, http.Handler) {
	t.Helper()
	env := newTestEnv(t)
	return env, NewHTTPServer(env.service, "*", nil).Handler()
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func jsonRequest(method, path string, payload any) *http.Request {
	var body bytes.Buffer
	_ = json.NewEncoder(&body).Encode(payload)
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decodeJSON(t, rr)["ok"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestReadyEndpointReportsDatabase(t *testing.T) {
	env, handler := newTestServer(t)

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	env.store.pingErr = errors.New("connection refused")
	rr = serve(handler, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decodeJSON(t, rr)
	assert.Equal(t, "not_ready", body["status"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	_, handler := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")

	rr := serve(handler, req)

	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestCreateSubmissionRequiresCredentials(t *testing.T) {
	env, handler := newTestServer(t)

	rr := serve(handler, jsonRequest(http.MethodPost, "/api/submissions", statementInput(false)))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeJSON(t, rr)["code"])
	assert.Empty(t, env.store.subs)
}

func TestCreateSubmissionWithAPIToken(t *testing.T) {
	_, handler := newTestServer(t)
	req := jsonRequest(http.MethodPost, "/api/submissions", statementInput(true))
	req.Header.Set("X-API-Token", testAPIToken)

	rr := serve(handler, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	body := decodeJSON(t, rr)
	sub := body["submission"].(map[string]any)
	assert.Equal(t, false, sub["verified"])
	assert.Regexp(t, retrieverPattern, sub["retriever_id"])
	assert.Equal(t, []any{}, sub["topic"])
	sync := body["sync"].(map[string]any)
	assert.Equal(t, true, sync["coerced"])
	assert.NotContains(t, sync, "error")
}

func TestCreateSubmissionValidationError(t *testing.T) {
	_, handler := newTestServer(t)
	in := statementInput(false)
	in.DocumentType = "memo"
	req := jsonRequest(http.MethodPost, "/api/submissions", in)
	req.Header.Set("X-API-Token", testAPIToken)

	rr := serve(handler, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decodeJSON(t, rr)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Contains(t, body["details"], "document_type")
}

func multipartSubmission(t *testing.T, method, path string, data any, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	encoded, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("data", string(encoded)))
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Token", testAPIToken)
	return req
}

func TestCreateSubmissionMultipartAndDownload(t *testing.T) {
	env, handler := newTestServer(t)

	rr := serve(handler, multipartSubmission(t, http.MethodPost, "/api/submissions", statementInput(true), "My Statement.pdf", "%PDF-1.7"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	body := decodeJSON(t, rr)
	sub := body["submission"].(map[string]any)
	file := sub["file"].(string)
	assert.True(t, strings.HasPrefix(file, "My_Statement_"))
	assert.True(t, strings.HasSuffix(file, ".pdf"))
	assert.Equal(t, testFileHost+"/api/files/submissions/"+sub["id"].(string)+"/"+file, sub["file_url"])
	assert.Equal(t, true, sub["verified"])
	assert.Equal(t, "synced", body["sync"].(map[string]any)["status"])
	require.Len(t, env.processor.processed, 1)

	rr = serve(handler, httptest.NewRequest(http.MethodGet, "/api/files/submissions/"+sub["id"].(string)+"/"+file, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "%PDF-1.7", rr.Body.String())
	assert.Equal(t, "8", rr.Header().Get("Content-Length"))
}

func TestUpdateSubmissionWithBearerToken(t *testing.T) {
	env, handler := newTestServer(t)
	seedSubmission(t, env, store.Submission{Verified: true, File: "a.pdf"})
	signed, err := env.service.SignUp(context.Background(), signUpRequest("ada@example.org"))
	require.NoError(t, err)

	req := jsonRequest(http.MethodPatch, "/api/submissions/sub1", map[string]any{"verified": false})
	req.Header.Set("Authorization", "Bearer "+signed.Token)
	rr := serve(handler, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeJSON(t, rr)
	assert.Equal(t, "delete", body["sync"].(map[string]any)["action"])
	assert.Equal(t, []string{"4821"}, env.processor.deleted)
}

func TestUpdateSubmissionRejectsExpiredToken(t *testing.T) {
	env, handler := newTestServer(t)
	seedSubmission(t, env, store.Submission{})

	req := jsonRequest(http.MethodPatch, "/api/submissions/sub1", map[string]any{"title": "x"})
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := serve(handler, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDeleteSubmissionEndpoint(t *testing.T) {
	env, handler := newTestServer(t)
	seedSubmission(t, env, store.Submission{})

	req := httptest.NewRequest(http.MethodDelete, "/api/submissions/sub1", nil)
	req.Header.Set("X-API-Token", testAPIToken)
	rr := serve(handler, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "sub1", decodeJSON(t, rr)["id"])

	req = httptest.NewRequest(http.MethodDelete, "/api/submissions/sub1", nil)
	req.Header.Set("X-API-Token", testAPIToken)
	rr = serve(handler, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReadsArePublic(t *testing.T) {
	env, handler := newTestServer(t)
	seedSubmission(t, env, store.Submission{Session: "1"})

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/submissions?session=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeJSON(t, rr)["items"], 1)

	rr = serve(handler, httptest.NewRequest(http.MethodGet, "/api/submissions/sub1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "4821", decodeJSON(t, rr)["retriever_id"])

	rr = serve(handler, httptest.NewRequest(http.MethodGet, "/api/submissions?verified=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTopicWritesNeedService(t *testing.T) {
	env, handler := newTestServer(t)
	signed, err := env.service.SignUp(context.Background(), signUpRequest("ada@example.org"))
	require.NoError(t, err)
	topic := TopicInput{Name: "Custom", KeyElement: []string{"objectives - life cycle approach"}}

	req := jsonRequest(http.MethodPost, "/api/topics", topic)
	req.Header.Set("Authorization", "Bearer "+signed.Token)
	assert.Equal(t, http.StatusForbidden, serve(handler, req).Code)

	req = jsonRequest(http.MethodPost, "/api/topics", topic)
	req.Header.Set("X-API-Token", testAPIToken)
	assert.Equal(t, http.StatusCreated, serve(handler, req).Code)

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/topics", nil))
	assert.Len(t, decodeJSON(t, rr)["items"], 1)
}

func TestAuthorsEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	req := jsonRequest(http.MethodPost, "/api/authors", AuthorInput{Name: "Kenya", Geometry: &store.Geometry{Lon: 37.9, Lat: -0.02}})
	req.Header.Set("X-API-Token", testAPIToken)
	require.Equal(t, http.StatusCreated, serve(handler, req).Code)

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/authors", nil))
	items := decodeJSON(t, rr)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Kenya", items[0].(map[string]any)["name"])
}

func TestTaxonomyEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/taxonomy", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	articles := decodeJSON(t, rr)["articles"].([]any)
	assert.Len(t, articles, 35)
	assert.Equal(t, "1", articles[0].(map[string]any)["article"])
}

func TestStatsEndpoints(t *testing.T) {
	_, handler := newTestServer(t)

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/stats/submissions-per-session", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	items := decodeJSON(t, rr)["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, float64(3), items[0].(map[string]any)["submissions_count"])

	rr = serve(handler, httptest.NewRequest(http.MethodGet, "/api/stats/submissions-per-topic", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	items = decodeJSON(t, rr)["items"].([]any)
	assert.Equal(t, "Objectives", items[0].(map[string]any)["topic_name"])

	rr = serve(handler, httptest.NewRequest(http.MethodGet, "/api/stats/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSearchEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/search?q=plastic&verified=true", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeJSON(t, rr)
	assert.Equal(t, "plastic", body["query"])
	assert.Equal(t, "fake", body["backend"])
}

func TestSearchWithoutBackend(t *testing.T) {
	env := newTestEnv(t)
	env.service.search = nil
	handler := NewHTTPServer(env.service, "*", nil).Handler()

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/search?q=x", nil))

	body := decodeJSON(t, rr)
	assert.Equal(t, "none", body["backend"])
	assert.Equal(t, []any{}, body["results"])
}

func TestAdminReindex(t *testing.T) {
	env, handler := newTestServer(t)

	rr := serve(handler, httptest.NewRequest(http.MethodPost, "/api/admin/reindex", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/reindex", nil)
	req.Header.Set("X-API-Token", testAPIToken)
	rr = serve(handler, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	<-env.search.reindexed
}

func TestSignUpSignInAndSession(t *testing.T) {
	_, handler := newTestServer(t)

	rr := serve(handler, jsonRequest(http.MethodPost, "/api/auth/signup", map[string]any{
		"email": "ada@example.org", "password": "correct horse battery", "first_name": "Ada",
	}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = serve(handler, jsonRequest(http.MethodPost, "/api/auth/signin", map[string]any{
		"email": "ada@example.org", "password": "correct horse battery",
	}))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeJSON(t, rr)
	token := body["token"].(string)
	assert.Equal(t, "ada@example.org", body["record"].(map[string]any)["email"])

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	session := decodeJSON(t, serve(handler, req))
	assert.Equal(t, true, session["authenticated"])
	assert.Equal(t, "user", session["role"])

	session = decodeJSON(t, serve(handler, httptest.NewRequest(http.MethodGet, "/api/session", nil)))
	assert.Equal(t, false, session["authenticated"])
}

func TestUnknownRoute(t *testing.T) {
	_, handler := newTestServer(t)

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/nothing/here", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decodeJSON(t, rr)["code"])
}

func TestCORSPreflight(t *testing.T) {
	_, handler := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/submissions", nil)
	req.Header.Set("Origin", "https://negotiate.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "x-api-token")

	rr := serve(handler, req)

	assert.Less(t, rr.Code, 300)
	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestOptionsWithoutPreflightIsEmpty(t *testing.T) {
	_, handler := newTestServer(t)
	rr := serve(handler, httptest.NewRequest(http.MethodOptions, "/api/submissions", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Empty(t, rr.Header().Get("Content-Type"))
}

func TestRateLimitedServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := ratelimit.NewWithClient(client, ratelimit.Options{Limit: 1, Window: time.Minute}, nil)

	env := newTestEnv(t)
	handler := NewHTTPServer(env.service, "*", nil).WithRateLimit(limiter.Middleware).Handler()

	assert.Equal(t, http.StatusOK, serve(handler, httptest.NewRequest(http.MethodGet, "/api/health", nil)).Code)
	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}
