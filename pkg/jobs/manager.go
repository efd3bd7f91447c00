// Package jobs runs template merges: it copies the template, locates the
// placeholders, builds the edit plan and submits it as one batch, recording
// every step as a merge job.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/romangluhoedov/GoogleDocsAPI/pkg/db"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/gdocs"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/merge"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("docmerge.jobs")

// ErrMissingTemplate is returned for a merge request without a template id.
var ErrMissingTemplate = errors.New("template id is required")

// DocumentService is the external document store.
type DocumentService interface {
	CreateDocument(ctx context.Context, title string) (*gdocs.Document, error)
	GetDocument(ctx context.Context, id string) (*gdocs.Document, error)
	CopyDocument(ctx context.Context, templateID, title, folderID string) (string, error)
	ShareDocument(ctx context.Context, id string) error
	ViewLink(ctx context.Context, id string) (string, error)
	ExportLink(ctx context.Context, id string) (string, error)
	ExportPDF(ctx context.Context, id string) ([]byte, error)
	CreateFolder(ctx context.Context, name string) (string, error)
	ListFolders(ctx context.Context) ([]gdocs.Folder, error)
	IndexPlaceholders(ctx context.Context, id string, names []string) (*gdocs.Index, error)
	BatchUpdate(ctx context.Context, id string, plan merge.Plan, requiredRevisionID string) (*gdocs.Receipt, error)
}

// Publisher is notified of every job transition.
type Publisher interface {
	Publish(job *db.MergeJob)
}

// Values is the caller's merge input. ElementIndexes and ListItems are
// optional; when ElementIndexes is nil the document is scanned instead.
type Values struct {
	Substitutions  []merge.Substitution  `json:"values"`
	ListItems      []string              `json:"listItems,omitempty"`
	ElementIndexes merge.ElementIndexMap `json:"elementIndexes,omitempty"`
}

func (v Values) variables() []string {
	names := make([]string, 0, len(v.Substitutions))
	for _, sub := range v.Substitutions {
		names = append(names, sub.Variable)
	}
	return names
}

// MergeRequest asks for a new document built from a template.
type MergeRequest struct {
	TemplateID string `json:"templateId"`
	Title      string `json:"title"`
	FolderID   string `json:"folderId,omitempty"`
	Values
}

// Result describes an in-place merge.
type Result struct {
	DocumentID string         `json:"documentId"`
	Applied    bool           `json:"applied"`
	Operations int            `json:"operations"`
	Receipt    *gdocs.Receipt `json:"receipt,omitempty"`
}

// Manager coordinates merges
type Manager struct {
	docs   DocumentService
	store  db.IMergeStore
	events Publisher
	share  bool
}

// NewManager creates a manager; share grants link read access to every copy
func NewManager(docs DocumentService, store db.IMergeStore, events Publisher, share bool) *Manager {
	return &Manager{docs: docs, store: store, events: events, share: share}
}

// Store exposes the job store to the HTTP layer
func (m *Manager) Store() db.IMergeStore {
	return m.store
}

// Docs exposes the document service to the HTTP layer
func (m *Manager) Docs() DocumentService {
	return m.docs
}

// Plan builds the edit plan for values without touching any document.
func (m *Manager) Plan(values Values) (merge.Plan, error) {
	return merge.Prepare(values.Substitutions, merge.NewListItemSet(values.ListItems...), values.ElementIndexes)
}

// Merge copies the template and fills it in. The returned job reflects the
// final state; a non-nil error means the job is marked failed.
func (m *Manager) Merge(ctx context.Context, req MergeRequest) (*db.MergeJob, error) {
	if req.TemplateID == "" {
		return nil, ErrMissingTemplate
	}

	// Reject malformed offsets before creating anything remotely.
	if req.ElementIndexes != nil {
		if _, err := merge.Collect(req.ElementIndexes); err != nil {
			return nil, err
		}
	}

	job, err := m.store.CreateJob(req.TemplateID, req.Title, req.FolderID)
	if err != nil {
		return nil, err
	}
	m.publish(job)

	docID, err := m.docs.CopyDocument(ctx, req.TemplateID, req.Title, req.FolderID)
	if err != nil {
		return m.fail(job, err)
	}
	if m.share {
		if err := m.docs.ShareDocument(ctx, docID); err != nil {
			return m.fail(job, err)
		}
	}
	status := db.StatusCopied
	copied, err := m.update(job.ID, &db.MergeJobUpdate{DocumentID: &docID, Status: &status})
	if err != nil {
		return m.fail(job, fmt.Errorf("recording copy %s: %w", docID, err))
	}
	job = copied

	result, err := m.insert(ctx, docID, req.Values, func() {
		status := db.StatusIndexed
		updated, err := m.update(job.ID, &db.MergeJobUpdate{Status: &status})
		if err != nil {
			log.Warningf("failed to mark merge job %s indexed: %v", job.ID, err)
			return
		}
		job = updated
	})
	if err != nil {
		return m.fail(job, err)
	}

	status = db.StatusApplied
	if !result.Applied {
		status = db.StatusSkipped
	}
	return m.update(job.ID, &db.MergeJobUpdate{Status: &status, Operations: &result.Operations})
}

// InsertValues merges values into an existing document in place.
func (m *Manager) InsertValues(ctx context.Context, docID string, values Values) (*Result, error) {
	return m.insert(ctx, docID, values, nil)
}

func (m *Manager) insert(ctx context.Context, docID string, values Values, indexed func()) (*Result, error) {
	index := &gdocs.Index{Elements: values.ElementIndexes, ListItems: merge.NewListItemSet(values.ListItems...)}
	if values.ElementIndexes == nil {
		scanned, err := m.docs.IndexPlaceholders(ctx, docID, values.variables())
		if err != nil {
			return nil, err
		}
		index = scanned
		if index.ListItems == nil {
			index.ListItems = merge.ListItemSet{}
		}
		for _, name := range values.ListItems {
			index.ListItems.Add(name)
		}
		if indexed != nil {
			indexed()
		}
	}

	plan, err := merge.Prepare(values.Substitutions, index.ListItems, index.Elements)
	if err != nil {
		return nil, err
	}

	result := &Result{DocumentID: docID, Operations: len(plan)}
	if plan.Empty() {
		log.Infof("nothing to merge into %s, batch skipped", docID)
		return result, nil
	}

	receipt, err := m.docs.BatchUpdate(ctx, docID, plan, index.RevisionID)
	if err != nil {
		return nil, err
	}
	result.Applied = true
	result.Receipt = receipt
	return result, nil
}

func (m *Manager) update(id string, updates *db.MergeJobUpdate) (*db.MergeJob, error) {
	job, err := m.store.UpdateJob(id, updates)
	if err != nil {
		return nil, err
	}
	m.publish(job)
	return job, nil
}

func (m *Manager) fail(job *db.MergeJob, cause error) (*db.MergeJob, error) {
	log.Errorf("merge job %s failed: %v", job.ID, cause)
	status := db.StatusFailed
	message := cause.Error()
	failed, err := m.update(job.ID, &db.MergeJobUpdate{Status: &status, Error: &message})
	if err != nil {
		return job, fmt.Errorf("%w (recording failure: %v)", cause, err)
	}
	return failed, cause
}

func (m *Manager) publish(job *db.MergeJob) {
	if m.events != nil {
		m.events.Publish(job)
	}
}
