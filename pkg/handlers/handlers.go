package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/romangluhoedov/GoogleDocsAPI/pkg/auth"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/db"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/events"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/gdocs"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/jobs"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/merge"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/tliron/commonlog"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var log = commonlog.GetLogger("docmerge.handlers")

// Authorizer runs the OAuth consent flow
type Authorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Handlers contains all HTTP and WebSocket handlers
type Handlers struct {
	jobs *jobs.Manager
	auth Authorizer
	hub  *events.Hub
}

// NewHandlers creates a new handlers instance
func NewHandlers(manager *jobs.Manager, authorizer Authorizer, hub *events.Hub) *Handlers {
	return &Handlers{
		jobs: manager,
		auth: authorizer,
		hub:  hub,
	}
}

// Routes registers every endpoint on r
func (h *Handlers) Routes(r *mux.Router) {
	r.HandleFunc("/ws/merges", h.HandleWebSocket)

	r.HandleFunc("/api/merges", h.CreateMerge).Methods("POST")
	r.HandleFunc("/api/merges", h.ListMerges).Methods("GET")
	r.HandleFunc("/api/merges/{id}", h.GetMerge).Methods("GET")
	r.HandleFunc("/api/merges/{id}", h.DeleteMerge).Methods("DELETE")
	r.HandleFunc("/api/plans", h.CreatePlan).Methods("POST")

	r.HandleFunc("/api/documents", h.CreateDocument).Methods("POST")
	r.HandleFunc("/api/documents/{id}", h.GetDocument).Methods("GET")
	r.HandleFunc("/api/documents/{id}/values", h.InsertValues).Methods("POST")
	r.HandleFunc("/api/documents/{id}/link", h.GetViewLink).Methods("GET")
	r.HandleFunc("/api/documents/{id}/docx", h.GetDocxLink).Methods("GET")
	r.HandleFunc("/api/documents/{id}/pdf", h.GetPDF).Methods("GET")

	r.HandleFunc("/api/folders", h.ListFolders).Methods("GET")
	r.HandleFunc("/api/folders", h.CreateFolder).Methods("POST")

	r.HandleFunc("/auth/url", h.AuthURL).Methods("GET")
	r.HandleFunc("/auth/callback", h.AuthCallback).Methods("GET")
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// HandleWebSocket streams job events; ?job= limits the stream to one job
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warningf("websocket upgrade error: %v", err)
		return
	}
	events.NewSubscriber(h.hub, conn, r.URL.Query().Get("job")).Serve()
}

type errorResponse struct {
	Error string       `json:"error"`
	Job   *db.MergeJob `json:"job,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("failed to write response: %v", err)
	}
}

func statusFor(err error) int {
	var apiErr *googleapi.Error
	switch {
	case errors.Is(err, merge.ErrInvalidRange), errors.Is(err, jobs.ErrMissingTemplate):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrNotAuthorized):
		return http.StatusUnauthorized
	case errors.As(err, &apiErr):
		// missing or inaccessible documents keep their status
		if apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusForbidden {
			return apiErr.Code
		}
		return http.StatusBadGateway
	case errors.Is(err, gdocs.ErrBatchRejected), errors.Is(err, gdocs.ErrNoExportLink):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// CreateMerge copies a template and fills it in
func (h *Handlers) CreateMerge(w http.ResponseWriter, r *http.Request) {
	var req jobs.MergeRequest
	if !decode(w, r, &req) {
		return
	}

	job, err := h.jobs.Merge(r.Context(), req)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Job: job})
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// ListMerges returns recent merge jobs
func (h *Handlers) ListMerges(w http.ResponseWriter, r *http.Request) {
	list, err := h.jobs.Store().ListJobs()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetMerge retrieves a merge job by ID
func (h *Handlers) GetMerge(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Store().GetJob(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// DeleteMerge removes a merge job record; the document itself is kept
func (h *Handlers) DeleteMerge(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Store().DeleteJob(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatePlan returns the operations a merge would submit
func (h *Handlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var values jobs.Values
	if !decode(w, r, &values) {
		return
	}

	plan, err := h.jobs.Plan(values)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"operations": plan,
		"empty":      plan.Empty(),
	})
}

// CreateDocument creates a new blank document
func (h *Handlers) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decode(w, r, &req) {
		return
	}

	doc, err := h.jobs.Docs().CreateDocument(r.Context(), req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// GetDocument retrieves document metadata by ID
func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.jobs.Docs().GetDocument(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// InsertValues merges values into an existing document
func (h *Handlers) InsertValues(w http.ResponseWriter, r *http.Request) {
	var values jobs.Values
	if !decode(w, r, &values) {
		return
	}

	result, err := h.jobs.InsertValues(r.Context(), mux.Vars(r)["id"], values)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetViewLink returns the browser link of a document
func (h *Handlers) GetViewLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.jobs.Docs().ViewLink(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

// GetDocxLink returns the Word export link of a document
func (h *Handlers) GetDocxLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.jobs.Docs().ExportLink(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

// GetPDF streams the document exported as PDF
func (h *Handlers) GetPDF(w http.ResponseWriter, r *http.Request) {
	data, err := h.jobs.Docs().ExportPDF(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Debugf("failed to write pdf: %v", err)
	}
}

// ListFolders returns the folders visible to the account
func (h *Handlers) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.jobs.Docs().ListFolders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if folders == nil {
		folders = []gdocs.Folder{}
	}
	writeJSON(w, http.StatusOK, folders)
}

// CreateFolder creates a folder
func (h *Handlers) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "folder name is required"})
		return
	}

	id, err := h.jobs.Docs().CreateFolder(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, gdocs.Folder{ID: id, Name: req.Name})
}

// AuthURL returns the consent page to visit
func (h *Handlers) AuthURL(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"url": h.auth.AuthCodeURL(uuid.New().String())})
}

// AuthCallback exchanges the consent code for a stored token
func (h *Handlers) AuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing code"})
		return
	}

	if _, err := h.auth.Exchange(r.Context(), code); err != nil {
		log.Warningf("oauth exchange failed: %v", err)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authorized": true})
}
