package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

const (
	DocumentTypeStatement      = "statement"
	DocumentTypePreSession     = "pre session submission"
	DocumentTypeInSessionPaper = "insession document"
)

var DocumentTypes = []string{DocumentTypeStatement, DocumentTypePreSession, DocumentTypeInSessionPaper}

// Sessions are the negotiation rounds a submission can be filed under. The
// empty string means unassigned.
var Sessions = []string{"1", "2", "3", "4", "5.1", "5.2"}

type Submission struct {
	ID           string
	Title        string
	Description  string
	Href         string
	File         string
	Session      string
	DocumentType string
	Verified     bool
	RetrieverID  string
	Author       []string
	Topic        []string
	KeyElement   map[string][]string
	Created      time.Time
	Updated      time.Time
}

type SubmissionFilter struct {
	Session      string
	DocumentType string
	Topic        string
	Author       string
	Verified     *bool
	Limit        int
	Offset       int
}

type Topic struct {
	ID         string
	Article    string
	Name       string
	KeyElement []string
	Child      []string
	Created    time.Time
	Updated    time.Time
}

type Geometry struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type Author struct {
	ID       string
	Name     string
	Type     string
	Geometry *Geometry
	Created  time.Time
	Updated  time.Time
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Verified     bool
	Created      time.Time
	Updated      time.Time
}

type SessionCount struct {
	Session          string
	SubmissionsCount int64
}

type TopicCount struct {
	ID               int64
	TopicID          string
	TopicName        string
	SubmissionsCount int64
}
