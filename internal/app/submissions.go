package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"negotiate/api/internal/filestore"
	"negotiate/api/internal/retriever"
	"negotiate/api/internal/search"
	"negotiate/api/internal/store"
	"negotiate/api/internal/taxonomy"
	"negotiate/api/internal/util"
	"negotiate/api/internal/verification"
)

const maxListLimit = 200

type SubmissionInput struct {
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Href         string              `json:"href"`
	Session      string              `json:"session"`
	DocumentType string              `json:"document_type"`
	Verified     bool                `json:"verified"`
	Author       []string            `json:"author"`
	Topic        []string            `json:"topic"`
	KeyElement   map[string][]string `json:"key_element"`
}

// SubmissionPatch holds the fields of a partial update. File only accepts
// the empty string, which detaches the current file; new files arrive as
// uploads.
type SubmissionPatch struct {
	Title        *string              `json:"title"`
	Description  *string              `json:"description"`
	Href         *string              `json:"href"`
	File         *string              `json:"file"`
	Session      *string              `json:"session"`
	DocumentType *string              `json:"document_type"`
	Verified     *bool                `json:"verified"`
	Author       *[]string            `json:"author"`
	Topic        *[]string            `json:"topic"`
	KeyElement   *map[string][]string `json:"key_element"`
}

// Upload is a file received with a create or update request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SyncReport tells the caller what happened to the vector store.
type SyncReport struct {
	Action  string `json:"action"`
	Status  string `json:"status"`
	Coerced bool   `json:"coerced"`
	Error   string `json:"error,omitempty"`
}

func syncReport(r verification.Result) SyncReport {
	report := SyncReport{Action: string(r.Action), Status: string(r.Status), Coerced: r.Coerced}
	if r.Err != nil {
		report.Error = r.Err.Error()
	}
	return report
}

type SubmissionResult struct {
	Submission store.Submission
	Sync       SyncReport
}

func (s *Service) ListSubmissions(ctx context.Context, filter store.SubmissionFilter) ([]store.Submission, error) {
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.ListSubmissions(ctx, filter)
}

func (s *Service) GetSubmission(ctx context.Context, id string) (store.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Submission{}, notFound("Submission not found")
	}
	return sub, err
}

// CreateSubmission validates the input, assigns a retriever id, stores the
// upload and the record, then runs the post-create sync. A failed sync never
// fails the request; it is reported in the result.
func (s *Service) CreateSubmission(ctx context.Context, in SubmissionInput, upload *Upload) (SubmissionResult, error) {
	sub := store.Submission{
		ID:           util.NewID(),
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Href:         strings.TrimSpace(in.Href),
		Session:      strings.TrimSpace(in.Session),
		DocumentType: strings.TrimSpace(in.DocumentType),
		Verified:     in.Verified,
		Author:       in.Author,
		Topic:        in.Topic,
		KeyElement:   in.KeyElement,
	}
	if err := s.validateSubmission(ctx, sub); err != nil {
		return SubmissionResult{}, err
	}

	if err := s.hooks.BeforeCreate(ctx, &sub); err != nil {
		if errors.Is(err, retriever.ErrExhausted) {
			return SubmissionResult{}, domainError(http.StatusServiceUnavailable, "RETRIEVER_ID_EXHAUSTED", "Could not allocate a retriever id", nil)
		}
		return SubmissionResult{}, err
	}

	if upload != nil {
		name, err := s.storeUpload(ctx, sub.ID, upload)
		if err != nil {
			return SubmissionResult{}, err
		}
		sub.File = name
	}

	now := time.Now().UTC()
	sub.Created = now
	sub.Updated = now
	if err := s.store.InsertSubmission(ctx, &sub); err != nil {
		s.discardUpload(ctx, sub.ID, sub.File)
		return SubmissionResult{}, mapWriteError(err)
	}

	result := s.hooks.AfterCreate(ctx, &sub)
	if result.Coerced {
		if err := s.store.SetSubmissionVerified(ctx, sub.ID, false); err != nil {
			s.log.Error("persist verified correction failed", "submission_id", sub.ID, "error", err)
		}
	}

	s.index(sub)
	return SubmissionResult{Submission: sub, Sync: syncReport(result)}, nil
}

// UpdateSubmission applies patch on top of the stored record. The workflow
// sees the previous and next state before the write and may rewrite
// verified on the next state.
func (s *Service) UpdateSubmission(ctx context.Context, id string, patch SubmissionPatch, upload *Upload) (SubmissionResult, error) {
	prev, err := s.GetSubmission(ctx, id)
	if err != nil {
		return SubmissionResult{}, err
	}

	next := prev
	if err := applyPatch(&next, patch); err != nil {
		return SubmissionResult{}, err
	}
	if err := s.validateSubmission(ctx, next); err != nil {
		return SubmissionResult{}, err
	}
	// A verified record keeps its file; unverify before detaching it.
	if prev.Verified && next.Verified && next.File == "" && upload == nil {
		return SubmissionResult{}, validationError("Invalid submission", map[string]string{"file": "a verified submission must keep its file"})
	}

	if upload != nil {
		name, err := s.storeUpload(ctx, next.ID, upload)
		if err != nil {
			return SubmissionResult{}, err
		}
		next.File = name
	}

	result := s.hooks.BeforeUpdate(ctx, &prev, &next)

	next.Updated = time.Now().UTC()
	if err := s.store.UpdateSubmission(ctx, &next); err != nil {
		if next.File != prev.File {
			s.discardUpload(ctx, next.ID, next.File)
		}
		if errors.Is(err, store.ErrNotFound) {
			return SubmissionResult{}, notFound("Submission not found")
		}
		return SubmissionResult{}, mapWriteError(err)
	}

	if prev.File != "" && prev.File != next.File {
		s.discardUpload(ctx, prev.ID, prev.File)
	}

	s.index(next)
	return SubmissionResult{Submission: next, Sync: syncReport(result)}, nil
}

// DeleteSubmission removes the record, then its vectors, file and search
// document. Cleanup failures after the delete are logged only.
func (s *Service) DeleteSubmission(ctx context.Context, id string) (SyncReport, error) {
	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return SyncReport{}, err
	}
	if err := s.store.DeleteSubmission(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SyncReport{}, notFound("Submission not found")
		}
		return SyncReport{}, err
	}

	result := s.hooks.AfterDelete(ctx, sub)
	s.discardUpload(ctx, sub.ID, sub.File)
	if s.search != nil {
		s.search.DeleteSubmission(sub.ID)
	}
	return syncReport(result), nil
}

// OpenFile streams a stored submission file. Only the file currently
// attached to the submission can be read.
func (s *Service) OpenFile(ctx context.Context, submissionID, filename string) (io.ReadCloser, filestore.ObjectInfo, error) {
	if s.files == nil {
		return nil, filestore.ObjectInfo{}, domainError(http.StatusServiceUnavailable, "FILES_UNAVAILABLE", "File storage is not configured", nil)
	}
	sub, err := s.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, filestore.ObjectInfo{}, err
	}
	if sub.File == "" || sub.File != filename {
		return nil, filestore.ObjectInfo{}, notFound("File not found")
	}
	body, info, err := s.files.Open(ctx, submissionID, filename)
	if errors.Is(err, filestore.ErrNotFound) {
		return nil, filestore.ObjectInfo{}, notFound("File not found")
	}
	return body, info, err
}

func (s *Service) validateSubmission(ctx context.Context, sub store.Submission) error {
	details := map[string]string{}
	if sub.DocumentType == "" {
		details["document_type"] = "required"
	} else if !slices.Contains(store.DocumentTypes, sub.DocumentType) {
		details["document_type"] = "must be one of: " + strings.Join(store.DocumentTypes, ", ")
	}
	if sub.Session != "" && !slices.Contains(store.Sessions, sub.Session) {
		details["session"] = "must be one of: " + strings.Join(store.Sessions, ", ")
	}
	var unknownElements []string
	for _, elements := range sub.KeyElement {
		unknownElements = append(unknownElements, taxonomy.Validate(elements)...)
	}
	if len(unknownElements) > 0 {
		details["key_element"] = "unknown key elements: " + strings.Join(unknownElements, ", ")
	}
	if len(details) > 0 {
		return validationError("Invalid submission", details)
	}

	if len(sub.Topic) == 0 {
		return nil
	}
	topics, err := s.store.ListTopicsByIDs(ctx, sub.Topic)
	if err != nil {
		return err
	}
	found := make(map[string]bool, len(topics))
	for _, topic := range topics {
		found[topic.ID] = true
	}
	var missing []string
	for _, id := range sub.Topic {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return validationError("Invalid submission", map[string]string{"topic": "unknown topics: " + strings.Join(missing, ", ")})
	}
	return nil
}

func applyPatch(sub *store.Submission, patch SubmissionPatch) error {
	if patch.Title != nil {
		sub.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		sub.Description = *patch.Description
	}
	if patch.Href != nil {
		sub.Href = strings.TrimSpace(*patch.Href)
	}
	if patch.File != nil {
		if *patch.File != "" {
			return validationError("Invalid submission", map[string]string{"file": "files must be uploaded; only an empty value is accepted"})
		}
		sub.File = ""
	}
	if patch.Session != nil {
		sub.Session = strings.TrimSpace(*patch.Session)
	}
	if patch.DocumentType != nil {
		sub.DocumentType = strings.TrimSpace(*patch.DocumentType)
	}
	if patch.Verified != nil {
		sub.Verified = *patch.Verified
	}
	if patch.Author != nil {
		sub.Author = *patch.Author
	}
	if patch.Topic != nil {
		sub.Topic = *patch.Topic
	}
	if patch.KeyElement != nil {
		sub.KeyElement = *patch.KeyElement
	}
	return nil
}

func (s *Service) storeUpload(ctx context.Context, submissionID string, upload *Upload) (string, error) {
	if s.files == nil {
		return "", domainError(http.StatusServiceUnavailable, "FILES_UNAVAILABLE", "File storage is not configured", nil)
	}
	if strings.TrimSpace(upload.Filename) == "" {
		return "", validationError("Invalid submission", map[string]string{"file": "filename required"})
	}
	name := filestore.StoredName(upload.Filename)
	if err := s.files.Put(ctx, submissionID, name, upload.Body, upload.Size, upload.ContentType); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return name, nil
}

func (s *Service) discardUpload(ctx context.Context, submissionID, filename string) {
	if s.files == nil || filename == "" {
		return
	}
	if err := s.files.Remove(ctx, submissionID, filename); err != nil {
		s.log.Warn("remove file failed", "submission_id", submissionID, "file", filename, "error", err)
	}
}

func (s *Service) index(sub store.Submission) {
	if s.search == nil {
		return
	}
	s.search.IndexSubmission(search.SubmissionRecord{
		ID:           sub.ID,
		Title:        sub.Title,
		Description:  sub.Description,
		Session:      sub.Session,
		DocumentType: sub.DocumentType,
		Verified:     sub.Verified,
		Topic:        sub.Topic,
		Author:       sub.Author,
		Created:      sub.Created.Unix(),
	})
}

func mapWriteError(err error) error {
	switch {
	case store.IsUniqueViolation(err, "idx_submissions_retriever_id"):
		return domainError(http.StatusConflict, "RETRIEVER_ID_CONFLICT", "Retriever id already in use", nil)
	case store.IsUniqueViolation(err, "idx_submissions_href"):
		return domainError(http.StatusConflict, "HREF_TAKEN", "A submission with this href already exists", nil)
	default:
		return err
	}
}
