// Package gdocs adapts the Google Docs and Drive APIs to the operations the
// merge service needs.
package gdocs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/romangluhoedov/GoogleDocsAPI/pkg/merge"

	"github.com/tliron/commonlog"
	"golang.org/x/oauth2"
	docs "google.golang.org/api/docs/v1"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

var log = commonlog.GetLogger("docmerge.gdocs")

const (
	mimeFolder = "application/vnd.google-apps.folder"
	mimeDocx   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePDF    = "application/pdf"
)

var (
	// ErrEmptyPlan is returned when asked to submit a plan with no operations.
	ErrEmptyPlan = errors.New("empty batch")
	// ErrBatchRejected wraps the service error when a batch update fails.
	ErrBatchRejected = errors.New("batch update rejected")
	// ErrNoExportLink is returned when Drive offers no DOCX export for a file.
	ErrNoExportLink = errors.New("no docx export link")
)

// Document is the metadata of a Docs document.
type Document struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	RevisionID string `json:"revision_id"`
}

// Folder is a Drive folder.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Receipt is what the service returned for an applied batch.
type Receipt struct {
	DocumentID string `json:"document_id"`
	RevisionID string `json:"revision_id,omitempty"`
	Replies    int    `json:"replies"`
}

// Client talks to Docs and Drive on behalf of one credential.
type Client struct {
	docs  *docs.Service
	drive *drive.Service
}

// NewClient builds the API services from ts.
func NewClient(ctx context.Context, ts oauth2.TokenSource, applicationName string, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithTokenSource(ts), option.WithUserAgent(applicationName)}, opts...)

	docsService, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docs service: %w", err)
	}
	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Client{docs: docsService, drive: driveService}, nil
}

// CreateDocument creates an empty document titled title.
func (c *Client) CreateDocument(ctx context.Context, title string) (*Document, error) {
	doc, err := c.docs.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return &Document{ID: doc.DocumentId, Title: doc.Title, RevisionID: doc.RevisionId}, nil
}

// GetDocument fetches document metadata.
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	doc, err := c.docs.Documents.Get(id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return &Document{ID: doc.DocumentId, Title: doc.Title, RevisionID: doc.RevisionId}, nil
}

// CopyDocument copies templateID into folderID under title and returns the copy's id.
func (c *Client) CopyDocument(ctx context.Context, templateID, title, folderID string) (string, error) {
	file := &drive.File{Name: title}
	if folderID != "" {
		file.Parents = []string{folderID}
	}

	copied, err := c.drive.Files.Copy(templateID, file).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to copy document %s: %w", templateID, err)
	}
	log.Infof("copied template %s to %s", templateID, copied.Id)
	return copied.Id, nil
}

// ShareDocument lets anyone with the link read the file.
func (c *Client) ShareDocument(ctx context.Context, id string) error {
	permission := &drive.Permission{Role: "reader", Type: "anyone"}
	if _, err := c.drive.Permissions.Create(id, permission).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to share document %s: %w", id, err)
	}
	return nil
}

// ViewLink returns the browser link of a file.
func (c *Client) ViewLink(ctx context.Context, id string) (string, error) {
	file, err := c.drive.Files.Get(id).Fields("webViewLink").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get view link for %s: %w", id, err)
	}
	return file.WebViewLink, nil
}

// ExportLink returns the DOCX download link of a file.
func (c *Client) ExportLink(ctx context.Context, id string) (string, error) {
	file, err := c.drive.Files.Get(id).Fields("exportLinks").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get export links for %s: %w", id, err)
	}
	link, ok := file.ExportLinks[mimeDocx]
	if !ok {
		return "", ErrNoExportLink
	}
	return link, nil
}

// ExportPDF renders a file as PDF.
func (c *Client) ExportPDF(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.drive.Files.Export(id, mimePDF).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to export %s as pdf: %w", id, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf export of %s: %w", id, err)
	}
	return content, nil
}

// CreateFolder creates a Drive folder and returns its id.
func (c *Client) CreateFolder(ctx context.Context, name string) (string, error) {
	folder, err := c.drive.Files.Create(&drive.File{Name: name, MimeType: mimeFolder}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", name, err)
	}
	return folder.Id, nil
}

// ListFolders returns every folder that is not in the trash.
func (c *Client) ListFolders(ctx context.Context) ([]Folder, error) {
	folders := []Folder{}
	pageToken := ""
	for {
		call := c.drive.Files.List().
			Q("mimeType='" + mimeFolder + "' and trashed = false").
			Spaces("drive").
			Fields("nextPageToken, files(id, name)").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list folders: %w", err)
		}
		for _, f := range list.Files {
			folders = append(folders, Folder{ID: f.Id, Name: f.Name})
		}

		if list.NextPageToken == "" {
			return folders, nil
		}
		pageToken = list.NextPageToken
	}
}

// IndexPlaceholders fetches the document and locates the stand-alone
// paragraphs of the given placeholders.
func (c *Client) IndexPlaceholders(ctx context.Context, id string, names []string) (*Index, error) {
	doc, err := c.docs.Documents.Get(id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return BuildIndex(doc, names), nil
}

// BatchUpdate submits plan as a single atomic batch. When requiredRevisionID
// is set the service rejects the batch if the document changed since then.
func (c *Client) BatchUpdate(ctx context.Context, id string, plan merge.Plan, requiredRevisionID string) (*Receipt, error) {
	if plan.Empty() {
		return nil, ErrEmptyPlan
	}

	requests, err := ToRequests(plan)
	if err != nil {
		return nil, err
	}

	batch := &docs.BatchUpdateDocumentRequest{Requests: requests}
	if requiredRevisionID != "" {
		batch.WriteControl = &docs.WriteControl{RequiredRevisionId: requiredRevisionID}
	}

	resp, err := c.docs.Documents.BatchUpdate(id, batch).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: document %s: %w", ErrBatchRejected, id, err)
	}

	receipt := &Receipt{DocumentID: resp.DocumentId, Replies: len(resp.Replies)}
	if resp.WriteControl != nil {
		receipt.RevisionID = resp.WriteControl.RequiredRevisionId
	}
	log.Infof("applied %d operations to %s", len(requests), id)
	return receipt, nil
}
