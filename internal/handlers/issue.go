package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"path"
	"strconv"

	"github.com/apnisec/apiserver/internal/services"
	"github.com/apnisec/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	reportFormField = "report"
	// maxReportBytes caps a single report upload at 25 MiB.
	maxReportBytes = 25 << 20
)

// IssueHandler serves the issue CRUD and report routes.
type IssueHandler struct {
	issueService *services.IssueService
}

// IssueRouter mounts the issue routes. All of them require auth, and
// the rate limit is keyed per user.
func IssueRouter(r chi.Router, issueService *services.IssueService, requireAuth, rateLimit func(http.Handler) http.Handler) {
	h := &IssueHandler{issueService: issueService}

	r.Use(requireAuth, rateLimit)
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{issueID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/report", h.UploadReport)
		r.Get("/report", h.DownloadReport)
		r.Delete("/report", h.DeleteReport)
	})
}

type createIssueRequest struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
}

func (h *IssueHandler) List(w http.ResponseWriter, r *http.Request) {
	authUser, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	issues, err := h.issueService.GetAll(r.Context(), authUser.ID, r.URL.Query().Get("type"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, issues, "")
}

func (h *IssueHandler) Create(w http.ResponseWriter, r *http.Request) {
	authUser, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	var req createIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	issue, err := h.issueService.Create(r.Context(), authUser.ID, types.Issue{
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, issue, "Issue created successfully")
}

func (h *IssueHandler) Get(w http.ResponseWriter, r *http.Request) {
	authUser, id, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	issue, err := h.issueService.GetByID(r.Context(), id, authUser.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, issue, "")
}

func (h *IssueHandler) Update(w http.ResponseWriter, r *http.Request) {
	authUser, id, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	var patch types.IssuePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	issue, err := h.issueService.Update(r.Context(), id, authUser.ID, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, issue, "Issue updated successfully")
}

func (h *IssueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	authUser, id, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	if err := h.issueService.Delete(r.Context(), id, authUser.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, "Issue deleted successfully")
}

func (h *IssueHandler) UploadReport(w http.ResponseWriter, r *http.Request) {
	authUser, id, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	filename, data, contentType, err := readReportFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	issue, err := h.issueService.UploadReport(r.Context(), id, authUser.ID, filename, data, contentType)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, issue, "Report uploaded successfully")
}

func (h *IssueHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	authUser, id, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	reader, key, err := h.issueService.OpenReport(r.Context(), id, authUser.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+path.Base(key)+"\"")
	if _, err := io.Copy(w, reader); err != nil {
		log.Printf("issues: streaming report %s failed: %v", key, err)
	}
}

func (h *IssueHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	authUser, id, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	if err := h.issueService.DeleteReport(r.Context(), id, authUser.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, "Report deleted successfully")
}

// requestScope resolves the authenticated user and the issue id from
// the URL, writing the error response itself when either is missing.
func (h *IssueHandler) requestScope(w http.ResponseWriter, r *http.Request) (AuthUser, int, bool) {
	authUser, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return AuthUser{}, 0, false
	}

	id, err := strconv.Atoi(chi.URLParam(r, "issueID"))
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "Invalid issue ID")
		return AuthUser{}, 0, false
	}

	return authUser, id, true
}

// readReportFile pulls the report file out of a multipart form,
// rejecting bodies over the upload cap.
func readReportFile(r *http.Request) (filename string, data []byte, contentType string, err error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxReportBytes)
	if err := r.ParseMultipartForm(maxReportBytes); err != nil {
		return "", nil, "", errors.New("Report file is too large or malformed")
	}

	file, header, err := r.FormFile(reportFormField)
	if err != nil {
		return "", nil, "", errors.New("Report file is required")
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return "", nil, "", errors.New("Report file could not be read")
	}

	contentType = header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return header.Filename, data, contentType, nil
}
