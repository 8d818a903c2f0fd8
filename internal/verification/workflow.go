// Package verification keeps the vector store in step with each submission's
// verified flag. It runs inside the record lifecycle: before create, after
// create, before update and after delete.
package verification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"negotiate/api/internal/logger"
	"negotiate/api/internal/processing"
	"negotiate/api/internal/store"
)

type Processor interface {
	ProcessSubmission(ctx context.Context, req processing.ProcessRequest) (processing.ProcessResponse, error)
	DeleteSubmissionVector(ctx context.Context, retrieverID string) error
}

type TopicLookup interface {
	ListTopicsByIDs(ctx context.Context, ids []string) ([]store.Topic, error)
}

type RetrieverAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

// Settings carries the values the workflow needs from configuration.
type Settings struct {
	// FileHost is the public base URL files are served from.
	FileHost string
}

type Action string

const (
	ActionNone    Action = "none"
	ActionProcess Action = "process"
	ActionDelete  Action = "delete"
)

type Status string

const (
	StatusSkipped Status = "skipped"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

// Result reports what a lifecycle step did to the vector store. The record
// write itself is never blocked by a failed sync; Coerced tells the caller
// that verified was forced to false.
type Result struct {
	Action  Action
	Status  Status
	Coerced bool
	Err     error
}

func (r Result) Failed() bool {
	return r.Status == StatusFailed
}

var ErrMissingRetrieverID = errors.New("submission has no retriever id")

type Workflow struct {
	settings  Settings
	processor Processor
	topics    TopicLookup
	allocator RetrieverAllocator
	log       *logger.Logger
}

func New(settings Settings, processor Processor, topics TopicLookup, allocator RetrieverAllocator, log *logger.Logger) *Workflow {
	if log == nil {
		log = logger.Nop()
	}
	return &Workflow{
		settings:  settings,
		processor: processor,
		topics:    topics,
		allocator: allocator,
		log:       log.With("service", "verification"),
	}
}

// BeforeCreate assigns the retriever id. It is the only lifecycle step that
// can reject a write.
func (w *Workflow) BeforeCreate(ctx context.Context, sub *store.Submission) error {
	id, err := w.allocator.Allocate(ctx)
	if err != nil {
		return fmt.Errorf("allocate retriever id: %w", err)
	}
	sub.RetrieverID = id
	return nil
}

// AfterCreate runs once the record is stored. A verified submission without
// a file is flipped back to unverified; a verified submission with a file is
// sent for processing and flipped back when that fails.
func (w *Workflow) AfterCreate(ctx context.Context, sub *store.Submission) Result {
	if sub.Verified && sub.File == "" {
		sub.Verified = false
		w.log.Info("verified submission has no file, unverifying", "submission_id", sub.ID)
		return Result{Action: ActionNone, Status: StatusSkipped, Coerced: true}
	}
	if !sub.Verified {
		return Result{Action: ActionNone, Status: StatusSkipped}
	}
	return w.process(ctx, sub)
}

// BeforeUpdate compares the stored record with the incoming one and mutates
// next.Verified when the sync cannot be honoured. Only a change of verified
// triggers external calls; replacing the file of an already verified
// submission does not reprocess it.
func (w *Workflow) BeforeUpdate(ctx context.Context, prev, next *store.Submission) Result {
	if prev.Verified == next.Verified {
		return Result{Action: ActionNone, Status: StatusSkipped}
	}
	if next.Verified && next.File == "" {
		next.Verified = false
		w.log.Info("verified submission has no file, unverifying", "submission_id", next.ID)
		return Result{Action: ActionNone, Status: StatusSkipped, Coerced: true}
	}
	if !next.Verified {
		result := w.deleteVectors(ctx, next)
		if result.Failed() {
			next.Verified = false
		}
		return result
	}
	return w.process(ctx, next)
}

// AfterDelete removes the submission's vectors. Failures are logged only.
func (w *Workflow) AfterDelete(ctx context.Context, sub store.Submission) Result {
	return w.deleteVectors(ctx, &sub)
}

func (w *Workflow) process(ctx context.Context, sub *store.Submission) Result {
	keyElements, err := w.keyElements(ctx, sub.Topic)
	if err != nil {
		w.log.Warn("topic expansion failed, sending without key elements",
			"submission_id", sub.ID, "error", err)
	}

	fileURL := FileURL(w.settings.FileHost, sub.ID, sub.File)
	resp, err := w.processor.ProcessSubmission(ctx, processing.ProcessRequest{
		FilePath:     fileURL,
		SubmissionID: sub.ID,
		RetrieverID:  sub.RetrieverID,
		Href:         fileURL,
		KeyElements:  keyElements,
		Session:      sub.Session,
	})
	if err != nil {
		sub.Verified = false
		w.log.Error("process submission failed, unverifying",
			"submission_id", sub.ID, "retriever_id", sub.RetrieverID, "error", err)
		return Result{Action: ActionProcess, Status: StatusFailed, Coerced: true, Err: err}
	}
	w.log.Info("submission sent for processing",
		"submission_id", sub.ID, "retriever_id", sub.RetrieverID, "task_id", resp.TaskID)
	return Result{Action: ActionProcess, Status: StatusSynced}
}

func (w *Workflow) deleteVectors(ctx context.Context, sub *store.Submission) Result {
	if sub.RetrieverID == "" {
		w.log.Error("cannot delete vectors", "submission_id", sub.ID, "error", ErrMissingRetrieverID)
		return Result{Action: ActionDelete, Status: StatusFailed, Err: ErrMissingRetrieverID}
	}
	if err := w.processor.DeleteSubmissionVector(ctx, sub.RetrieverID); err != nil {
		w.log.Error("delete submission vectors failed",
			"submission_id", sub.ID, "retriever_id", sub.RetrieverID, "error", err)
		return Result{Action: ActionDelete, Status: StatusFailed, Err: err}
	}
	w.log.Info("submission vectors deleted", "submission_id", sub.ID, "retriever_id", sub.RetrieverID)
	return Result{Action: ActionDelete, Status: StatusSynced}
}

// keyElements expands topic ids in relation order. Ids with no matching topic
// are dropped.
func (w *Workflow) keyElements(ctx context.Context, topicIDs []string) (map[string][]string, error) {
	if len(topicIDs) == 0 {
		return nil, nil
	}
	found, err := w.topics.ListTopicsByIDs(ctx, topicIDs)
	if err != nil {
		return nil, fmt.Errorf("expand topics: %w", err)
	}
	byID := make(map[string]store.Topic, len(found))
	for _, topic := range found {
		byID[topic.ID] = topic
	}
	ordered := make([]store.Topic, 0, len(topicIDs))
	for _, id := range topicIDs {
		if topic, ok := byID[id]; ok {
			ordered = append(ordered, topic)
		}
	}
	return FoldKeyElements(ordered), nil
}

// FileURL is the public download address of a submission's stored file.
func FileURL(host, submissionID, filename string) string {
	return strings.TrimRight(host, "/") + "/api/files/submissions/" +
		url.PathEscape(submissionID) + "/" + url.PathEscape(filename)
}
