// Package processing talks to the document processing API that chunks
// submission files into the vector store.
package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	OpProcessSubmission      = "process_submission"
	OpDeleteSubmissionVector = "delete_submission_vector"

	processPath = "/api/process-submission"
	deletePath  = "/api/delete-submission-vector"

	tokenHeader       = "X-API-Token"
	maxErrorBodyBytes = 1024
	defaultTimeout    = 30 * time.Second
)

// ProcessRequest is the enrichment payload. A nil KeyElements encodes as
// JSON null.
type ProcessRequest struct {
	FilePath     string              `json:"file_path"`
	SubmissionID string              `json:"submission_id"`
	RetrieverID  string              `json:"retriever_id"`
	Href         string              `json:"href"`
	KeyElements  map[string][]string `json:"key_elements"`
	Session      string              `json:"session"`
}

type ProcessResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

type deleteRequest struct {
	RetrieverID string `json:"retriever_id"`
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// ProcessSubmission asks the processing API to (re)ingest a submission file.
// The response body is informational; an unreadable body on a 2xx status is
// not an error.
func (c *Client) ProcessSubmission(ctx context.Context, req ProcessRequest) (ProcessResponse, error) {
	raw, err := c.doJSON(ctx, OpProcessSubmission, http.MethodPost, processPath, req)
	if err != nil {
		return ProcessResponse{}, err
	}
	var out ProcessResponse
	_ = json.Unmarshal(raw, &out)
	return out, nil
}

// DeleteSubmissionVector removes every vector tagged with retrieverID.
func (c *Client) DeleteSubmissionVector(ctx context.Context, retrieverID string) error {
	_, err := c.doJSON(ctx, OpDeleteSubmissionVector, http.MethodDelete, deletePath, deleteRequest{RetrieverID: retrieverID})
	return err
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(in); err != nil {
		return nil, opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyHTTPCallError(op, "processing request failed", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &OperationError{
			Code:       OperationErrorRejected,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}
	return raw, nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
