// handlers_upload.go - File upload operation handlers
package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pdptw-visualizer/backend/internal/models"
	"github.com/pdptw-visualizer/backend/internal/storage"
)

const (
	recentFilesScan  = 100
	recentFilesLimit = 20
)

// UploadOptions carries the upload policy from configuration
type UploadOptions struct {
	AllowedFileTypes  []string // lower-case extensions; empty allows all
	AllowFileDeletion bool
}

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store      storage.Store
	workspaces WorkspaceManager
	jobs       UploadJobs
	opts       UploadOptions
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store, workspaces WorkspaceManager, jobs UploadJobs, opts UploadOptions) UploadHandler {
	return &UploadHandlerImpl{
		store:      store,
		workspaces: workspaces,
		jobs:       jobs,
		opts:       opts,
	}
}

// ParseAllowedTypes splits a comma-separated extension list.
func ParseAllowedTypes(list string) []string {
	var out []string
	for _, ext := range strings.Split(list, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func (h *UploadHandlerImpl) checkFileType(name string) error {
	if len(h.opts.AllowedFileTypes) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range h.opts.AllowedFileTypes {
		if ext == allowed {
			return nil
		}
	}
	return NewBadRequestError(fmt.Sprintf("file type %q is not allowed", ext), nil)
}

// HandleUploadFile accepts a file as base64 JSON and saves it to storage
func (h *UploadHandlerImpl) HandleUploadFile(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	if err := h.checkFileType(req.Name); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.SaveBytes(req.Name, decoded)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleUploadChunk accepts a single chunk of a chunked upload
func (h *UploadHandlerImpl) HandleUploadChunk(c echo.Context) error {
	var req uploadChunkRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.store.SaveChunkBytes(req.UploadID, req.ChunkIndex, decoded); err != nil {
		return NewInternalError("failed to save chunk", err)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload completes a chunked upload and starts async processing
func (h *UploadHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	if err := h.checkFileType(req.Name); err != nil {
		return err
	}
	if h.jobs == nil {
		return NewServiceUnavailableError("upload processing is not available")
	}

	job := h.jobs.StartJob(
		req.UploadID,
		req.Name,
		req.TotalChunks,
		req.OriginalSize,
		req.CompressedSize,
		req.Encoding,
	)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// HandleUploadJobStatus reports the progress of a chunked upload job
func (h *UploadHandlerImpl) HandleUploadJobStatus(c echo.Context) error {
	jobID := c.Param("jobId")
	if jobID == "" {
		return NewValidationError("jobId")
	}
	if h.jobs == nil {
		return NewNotFoundError("upload job", jobID)
	}

	job, ok := h.jobs.GetJob(jobID)
	if !ok {
		return NewNotFoundError("upload job", jobID)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleUploadBinary accepts raw binary file upload (multipart/form-data)
func (h *UploadHandlerImpl) HandleUploadBinary(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	if err := h.checkFileType(file.Filename); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentFiles returns recently uploaded files, optionally filtered
// by ?kind=instance|solution|unknown and capped by ?limit
func (h *UploadHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	limit := recentFilesLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return NewBadRequestError("limit must be a positive integer", err)
		}
		limit = n
	}

	files, err := h.store.List(recentFilesScan)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	files = filterByKind(files, models.FileKind(c.QueryParam("kind")))
	if len(files) > limit {
		files = files[:limit]
	}

	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file
func (h *UploadHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes a file and any workspace opened from it
func (h *UploadHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	if !h.opts.AllowFileDeletion {
		return NewForbiddenError("file deletion is disabled")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("file", id)
	}

	if h.workspaces != nil {
		for _, ws := range h.workspaces.ListWorkspaces() {
			if ws.InstanceFileID == id {
				h.workspaces.DeleteWorkspace(ws.ID)
			}
		}
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the name of a file
func (h *UploadHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// Request/Response types

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type uploadChunkRequest struct {
	UploadID    string `json:"uploadId"`
	ChunkIndex  int    `json:"chunkIndex"`
	Data        string `json:"data"` // Base64-encoded chunk
	TotalChunks int    `json:"totalChunks"`
}

func (r *uploadChunkRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	if r.ChunkIndex < 0 {
		return NewValidationError("chunkIndex")
	}
	return nil
}

type completeUploadRequest struct {
	UploadID       string `json:"uploadId"`
	Name           string `json:"name"`
	TotalChunks    int    `json:"totalChunks"`
	OriginalSize   int64  `json:"originalSize"`
	CompressedSize int64  `json:"compressedSize"`
	Encoding       string `json:"encoding"`
}

func (r *completeUploadRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	return nil
}

type renameFileRequest struct {
	Name string `json:"name"`
}

// filterByKind keeps files of the given kind; an empty kind keeps all.
func filterByKind(files []*models.FileInfo, kind models.FileKind) []*models.FileInfo {
	if kind == "" {
		return files
	}
	out := make([]*models.FileInfo, 0, len(files))
	for _, f := range files {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}
