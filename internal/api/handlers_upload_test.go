// handlers_upload_test.go - Tests for upload handlers
package api

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pdptw-visualizer/backend/internal/models"
	"github.com/pdptw-visualizer/backend/internal/session"
	"github.com/pdptw-visualizer/backend/internal/testutil"
	"github.com/pdptw-visualizer/backend/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var openUpload = UploadOptions{AllowFileDeletion: true}

func TestUploadHandler_HandleUploadFile(t *testing.T) {
	tests := []struct {
		name       string
		request    uploadFileRequest
		opts       UploadOptions
		wantStatus int
		errCode    string
		wantKind   models.FileKind
	}{
		{
			name:       "instance upload",
			request:    uploadFileRequest{Name: "tiny.txt", Data: base64.StdEncoding.EncodeToString([]byte(testInstance))},
			wantStatus: http.StatusCreated,
			wantKind:   models.FileKindInstance,
		},
		{
			name:       "solution upload",
			request:    uploadFileRequest{Name: "tiny.sol", Data: base64.StdEncoding.EncodeToString([]byte(testSolution))},
			wantStatus: http.StatusCreated,
			wantKind:   models.FileKindSolution,
		},
		{
			name:       "empty name",
			request:    uploadFileRequest{Data: base64.StdEncoding.EncodeToString([]byte("x"))},
			wantStatus: http.StatusBadRequest,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name:       "empty data",
			request:    uploadFileRequest{Name: "tiny.txt"},
			wantStatus: http.StatusBadRequest,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name:       "invalid base64",
			request:    uploadFileRequest{Name: "tiny.txt", Data: "not-valid-base64!!!"},
			wantStatus: http.StatusBadRequest,
			errCode:    "BAD_REQUEST",
		},
		{
			name:       "disallowed extension",
			request:    uploadFileRequest{Name: "tiny.exe", Data: base64.StdEncoding.EncodeToString([]byte("x"))},
			opts:       UploadOptions{AllowedFileTypes: ParseAllowedTypes(".txt, sol")},
			wantStatus: http.StatusBadRequest,
			errCode:    "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage()
			handler := NewUploadHandler(store, nil, nil, tt.opts)

			c, rec := newContext(http.MethodPost, "/api/files/upload", tt.request, nil)
			err := handler.HandleUploadFile(c)

			if tt.errCode != "" {
				assertAPIError(t, err, tt.wantStatus, tt.errCode)
				assert.Equal(t, 0, store.GetFileCount())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var info models.FileInfo
			decodeJSON(t, rec, &info)
			assert.NotEmpty(t, info.ID)
			assert.Equal(t, tt.request.Name, info.Name)
			assert.Equal(t, tt.wantKind, info.Kind)
		})
	}
}

func TestParseAllowedTypes(t *testing.T) {
	assert.Equal(t, []string{".txt", ".sol", ".gz"}, ParseAllowedTypes(" .TXT, sol,,.gz "))
	assert.Nil(t, ParseAllowedTypes(""))
}

func TestUploadHandler_HandleUploadBinary(t *testing.T) {
	store := testutil.NewMockStorage()
	handler := NewUploadHandler(store, nil, nil, openUpload)

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "tiny.txt")
	require.NoError(t, err)
	part.Write([]byte(testInstance))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload/binary", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, handler.HandleUploadBinary(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var info models.FileInfo
	decodeJSON(t, rec, &info)
	assert.Equal(t, models.FileKindInstance, info.Kind)

	// Missing form file
	c, _ = newContext(http.MethodPost, "/api/files/upload/binary", nil, nil)
	assertAPIError(t, handler.HandleUploadBinary(c), http.StatusBadRequest, "BAD_REQUEST")
}

func TestUploadHandler_HandleGetRecentFiles(t *testing.T) {
	tests := []struct {
		name      string
		files     int
		query     string
		wantCount int
		wantErr   bool
	}{
		{name: "empty storage", files: 0, wantCount: 0},
		{name: "default limit", files: 30, wantCount: recentFilesLimit},
		{name: "explicit limit", files: 10, query: "?limit=3", wantCount: 3},
		{name: "kind filter", files: 6, query: "?kind=instance", wantCount: 3},
		{name: "bad limit", files: 1, query: "?limit=zero", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage()
			for i := 0; i < tt.files; i++ {
				data := []byte("plain notes")
				if i%2 == 0 {
					data = []byte(testInstance)
				}
				store.AddFile(fmt.Sprintf("id-%d", i), fmt.Sprintf("file%d.txt", i), data)
			}
			handler := NewUploadHandler(store, nil, nil, openUpload)

			c, rec := newContext(http.MethodGet, "/api/files/recent"+tt.query, nil, nil)
			err := handler.HandleGetRecentFiles(c)
			if tt.wantErr {
				assertAPIError(t, err, http.StatusBadRequest, "BAD_REQUEST")
				return
			}
			require.NoError(t, err)

			var files []*models.FileInfo
			decodeJSON(t, rec, &files)
			assert.Len(t, files, tt.wantCount)
		})
	}
}

func TestUploadHandler_FileLookup(t *testing.T) {
	store := testutil.NewMockStorage()
	store.AddFile("file-1", "tiny.txt", []byte(testInstance))
	handler := NewUploadHandler(store, nil, nil, openUpload)

	c, rec := newContext(http.MethodGet, "/api/files/file-1", nil, map[string]string{"id": "file-1"})
	require.NoError(t, handler.HandleGetFile(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, _ = newContext(http.MethodGet, "/api/files/", nil, map[string]string{"id": ""})
	assertAPIError(t, handler.HandleGetFile(c), http.StatusBadRequest, "VALIDATION_ERROR")

	c, _ = newContext(http.MethodGet, "/api/files/nope", nil, map[string]string{"id": "nope"})
	assertAPIError(t, handler.HandleGetFile(c), http.StatusNotFound, "NOT_FOUND")

	c, rec = newContext(http.MethodPut, "/api/files/file-1", renameFileRequest{Name: "renamed.txt"}, map[string]string{"id": "file-1"})
	require.NoError(t, handler.HandleRenameFile(c))
	var info models.FileInfo
	decodeJSON(t, rec, &info)
	assert.Equal(t, "renamed.txt", info.Name)

	c, _ = newContext(http.MethodPut, "/api/files/file-1", renameFileRequest{}, map[string]string{"id": "file-1"})
	assertAPIError(t, handler.HandleRenameFile(c), http.StatusBadRequest, "VALIDATION_ERROR")

	c, _ = newContext(http.MethodPut, "/api/files/nope", renameFileRequest{Name: "x"}, map[string]string{"id": "nope"})
	assertAPIError(t, handler.HandleRenameFile(c), http.StatusNotFound, "NOT_FOUND")
}

func TestUploadHandler_HandleDeleteFile(t *testing.T) {
	store := testutil.NewMockStorage()
	store.AddFile("inst-1", "tiny.txt", []byte(testInstance))
	workspaces := session.NewManager()
	ws, err := workspaces.CreateWorkspace("inst-1", testInstance)
	require.NoError(t, err)

	handler := NewUploadHandler(store, workspaces, nil, openUpload)

	c, rec := newContext(http.MethodDelete, "/api/files/inst-1", nil, map[string]string{"id": "inst-1"})
	require.NoError(t, handler.HandleDeleteFile(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, store.GetFileCount())

	_, ok := workspaces.GetWorkspace(ws.ID)
	assert.False(t, ok, "workspace opened from the file is closed")

	c, _ = newContext(http.MethodDelete, "/api/files/inst-1", nil, map[string]string{"id": "inst-1"})
	assertAPIError(t, handler.HandleDeleteFile(c), http.StatusNotFound, "NOT_FOUND")

	locked := NewUploadHandler(store, nil, nil, UploadOptions{})
	c, _ = newContext(http.MethodDelete, "/api/files/x", nil, map[string]string{"id": "x"})
	assertAPIError(t, locked.HandleDeleteFile(c), http.StatusForbidden, "FORBIDDEN")
}

func TestUploadHandler_HandleUploadChunk(t *testing.T) {
	tests := []struct {
		name       string
		request    uploadChunkRequest
		wantStatus int
		errCode    string
	}{
		{
			name:       "valid chunk upload",
			request:    uploadChunkRequest{UploadID: "up-1", ChunkIndex: 0, Data: base64.StdEncoding.EncodeToString([]byte("chunk")), TotalChunks: 2},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "missing upload id",
			request:    uploadChunkRequest{Data: base64.StdEncoding.EncodeToString([]byte("chunk"))},
			wantStatus: http.StatusBadRequest,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name:       "negative index",
			request:    uploadChunkRequest{UploadID: "up-1", ChunkIndex: -1, Data: base64.StdEncoding.EncodeToString([]byte("chunk"))},
			wantStatus: http.StatusBadRequest,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name:       "invalid base64",
			request:    uploadChunkRequest{UploadID: "up-1", Data: "!!!"},
			wantStatus: http.StatusBadRequest,
			errCode:    "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewUploadHandler(testutil.NewMockStorage(), nil, nil, openUpload)
			c, rec := newContext(http.MethodPost, "/api/files/upload/chunk", tt.request, nil)

			err := handler.HandleUploadChunk(c)
			if tt.errCode != "" {
				assertAPIError(t, err, tt.wantStatus, tt.errCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestUploadHandler_ChunkedUploadJob(t *testing.T) {
	store := testutil.NewMockStorageWithTempDir(t.TempDir())
	jobs := upload.NewManager(store)
	handler := NewUploadHandler(store, nil, jobs, openUpload)

	half := len(testInstance) / 2
	for i, part := range []string{testInstance[:half], testInstance[half:]} {
		req := uploadChunkRequest{UploadID: "up-1", ChunkIndex: i, Data: base64.StdEncoding.EncodeToString([]byte(part))}
		c, _ := newContext(http.MethodPost, "/api/files/upload/chunk", req, nil)
		require.NoError(t, handler.HandleUploadChunk(c))
	}

	c, rec := newContext(http.MethodPost, "/api/files/upload/complete",
		completeUploadRequest{UploadID: "up-1", Name: "tiny.txt", TotalChunks: 2, OriginalSize: int64(len(testInstance))}, nil)
	require.NoError(t, handler.HandleCompleteUpload(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var started struct {
		JobID string `json:"jobId"`
	}
	decodeJSON(t, rec, &started)
	require.NotEmpty(t, started.JobID)

	var job upload.Job
	require.Eventually(t, func() bool {
		c, rec := newContext(http.MethodGet, "/api/files/upload/x/status", nil, map[string]string{"jobId": started.JobID})
		if handler.HandleUploadJobStatus(c) != nil {
			return false
		}
		decodeJSON(t, rec, &job)
		return job.Status == upload.StatusComplete
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.FileKindInstance, job.FileInfo.Kind)

	c, _ = newContext(http.MethodGet, "/api/files/upload/x/status", nil, map[string]string{"jobId": "missing"})
	assertAPIError(t, handler.HandleUploadJobStatus(c), http.StatusNotFound, "NOT_FOUND")

	c, _ = newContext(http.MethodPost, "/api/files/upload/complete", completeUploadRequest{UploadID: "up-2", Name: "x.txt"}, nil)
	assertAPIError(t, handler.HandleCompleteUpload(c), http.StatusBadRequest, "BAD_REQUEST")
}
