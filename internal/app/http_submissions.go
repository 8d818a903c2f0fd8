package app

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"negotiate/api/internal/rbac"
	"negotiate/api/internal/store"
	"negotiate/api/internal/verification"
)

type submissionJSON struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Href         string              `json:"href"`
	File         string              `json:"file"`
	FileURL      string              `json:"file_url,omitempty"`
	Session      string              `json:"session"`
	DocumentType string              `json:"document_type"`
	Verified     bool                `json:"verified"`
	RetrieverID  string              `json:"retriever_id"`
	Author       []string            `json:"author"`
	Topic        []string            `json:"topic"`
	KeyElement   map[string][]string `json:"key_element"`
	Created      time.Time           `json:"created"`
	Updated      time.Time           `json:"updated"`
}

type topicJSON struct {
	ID         string    `json:"id"`
	Article    string    `json:"article"`
	Name       string    `json:"name"`
	KeyElement []string  `json:"key_element"`
	Child      []string  `json:"child"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
}

type authorJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Geometry *store.Geometry `json:"geometry"`
	Created  time.Time       `json:"created"`
	Updated  time.Time       `json:"updated"`
}

func (s *HTTPServer) toSubmissionJSON(sub store.Submission) submissionJSON {
	out := submissionJSON{
		ID:           sub.ID,
		Title:        sub.Title,
		Description:  sub.Description,
		Href:         sub.Href,
		File:         sub.File,
		Session:      sub.Session,
		DocumentType: sub.DocumentType,
		Verified:     sub.Verified,
		RetrieverID:  sub.RetrieverID,
		Author:       nonNilStrings(sub.Author),
		Topic:        nonNilStrings(sub.Topic),
		KeyElement:   sub.KeyElement,
		Created:      sub.Created,
		Updated:      sub.Updated,
	}
	if sub.File != "" {
		out.FileURL = verification.FileURL(s.service.cfg.PublicHost, sub.ID, sub.File)
	}
	if out.KeyElement == nil {
		out.KeyElement = map[string][]string{}
	}
	return out
}

func toTopicJSON(topic store.Topic) topicJSON {
	return topicJSON{
		ID:         topic.ID,
		Article:    topic.Article,
		Name:       topic.Name,
		KeyElement: nonNilStrings(topic.KeyElement),
		Child:      nonNilStrings(topic.Child),
		Created:    topic.Created,
		Updated:    topic.Updated,
	}
}

func toAuthorJSON(author store.Author) authorJSON {
	return authorJSON{
		ID:       author.ID,
		Name:     author.Name,
		Type:     author.Type,
		Geometry: author.Geometry,
		Created:  author.Created,
		Updated:  author.Updated,
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (s *HTTPServer) handleSubmissions(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		switch r.Method {
		case http.MethodGet:
			s.handleListSubmissions(w, r)
		case http.MethodPost:
			s.handleCreateSubmission(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		sub, err := s.service.GetSubmission(r.Context(), id)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.toSubmissionJSON(sub))
	case http.MethodPatch:
		if _, ok := s.require(w, r, rbac.ActionWrite); !ok {
			return
		}
		var patch SubmissionPatch
		upload, cleanup, err := readSubmissionRequest(w, r, &patch)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		defer cleanup()
		result, err := s.service.UpdateSubmission(r.Context(), id, patch, upload)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"submission": s.toSubmissionJSON(result.Submission),
			"sync":       result.Sync,
		})
	case http.MethodDelete:
		if _, ok := s.require(w, r, rbac.ActionWrite); !ok {
			return
		}
		report, err := s.service.DeleteSubmission(r.Context(), id)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "sync": report})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	verified, err := optionalBool(query.Get("verified"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "verified must be true or false", nil)
		return
	}
	filter := store.SubmissionFilter{
		Session:      query.Get("session"),
		DocumentType: query.Get("document_type"),
		Topic:        query.Get("topic"),
		Author:       query.Get("author"),
		Verified:     verified,
		Limit:        atoiDefault(query.Get("limit"), 0),
		Offset:       atoiDefault(query.Get("offset"), 0),
	}
	subs, err := s.service.ListSubmissions(r.Context(), filter)
	if err != nil {
		s.fail(w, err)
		return
	}
	items := make([]submissionJSON, 0, len(subs))
	for _, sub := range subs {
		items = append(items, s.toSubmissionJSON(sub))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "offset": filter.Offset})
}

func (s *HTTPServer) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, rbac.ActionWrite); !ok {
		return
	}
	var input SubmissionInput
	upload, cleanup, err := readSubmissionRequest(w, r, &input)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	defer cleanup()
	result, err := s.service.CreateSubmission(r.Context(), input, upload)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"submission": s.toSubmissionJSON(result.Submission),
		"sync":       result.Sync,
	})
}

func (s *HTTPServer) handleFile(w http.ResponseWriter, r *http.Request, submissionID, filename string) {
	body, info, err := s.service.OpenFile(r.Context(), submissionID, filename)
	if err != nil {
		s.fail(w, err)
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		s.log.Warn("stream file failed", "submission_id", submissionID, "file", filename, "error", err)
	}
}

// readSubmissionRequest decodes a JSON body, or a multipart form with the
// record as JSON in the "data" field and an optional "file" part.
func readSubmissionRequest(w http.ResponseWriter, r *http.Request, target any) (*Upload, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil, noop, decodeBody(r, target)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, noop, errors.New("invalid multipart body")
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	if data := strings.TrimSpace(r.FormValue("data")); data != "" {
		if err := json.Unmarshal([]byte(data), target); err != nil {
			cleanup()
			return nil, noop, errors.New("invalid JSON in data field")
		}
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, cleanup, nil
	}
	if err != nil {
		cleanup()
		return nil, noop, errors.New("invalid file part")
	}
	upload := &Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return upload, func() {
		_ = file.Close()
		cleanup()
	}, nil
}
