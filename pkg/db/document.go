package db

import (
	"errors"
	"time"

	"golang.org/x/oauth2"
)

var (
	ErrJobNotFound   = errors.New("merge job not found")
	ErrTokenNotFound = errors.New("oauth token not found")
)

// JobStatus tracks how far a merge job got.
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusCopied  JobStatus = "copied"
	StatusIndexed JobStatus = "indexed"
	StatusApplied JobStatus = "applied"
	// StatusSkipped means the plan was empty and no batch was submitted.
	StatusSkipped JobStatus = "skipped"
	StatusFailed  JobStatus = "failed"
)

// MergeJob records one template merge
type MergeJob struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"template_id"`
	DocumentID string    `json:"document_id,omitempty"`
	Title      string    `json:"title"`
	FolderID   string    `json:"folder_id,omitempty"`
	Status     JobStatus `json:"status"`
	Operations int       `json:"operations"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IMergeStore persists merge jobs
type IMergeStore interface {
	CreateJob(templateID, title, folderID string) (*MergeJob, error)
	GetJob(id string) (*MergeJob, error)
	// UpdateJob applies partial updates. Use pointer fields in MergeJobUpdate
	// to indicate which fields should be modified.
	UpdateJob(id string, updates *MergeJobUpdate) (*MergeJob, error)
	DeleteJob(id string) error
	ListJobs() ([]*MergeJob, error)
}

// MergeJobUpdate represents partial updates to a job. Pointer fields
// allow distinguishing between "not provided" (nil) and "set to empty".
type MergeJobUpdate struct {
	DocumentID *string    `json:"document_id,omitempty"`
	Status     *JobStatus `json:"status,omitempty"`
	Operations *int       `json:"operations,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

// ITokenStore persists OAuth tokens per account
type ITokenStore interface {
	LoadToken(account string) (*oauth2.Token, error)
	SaveToken(account string, token *oauth2.Token) error
}
