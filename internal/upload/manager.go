package upload

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdptw-visualizer/backend/internal/models"
)

// Status represents the upload processing status.
type Status string

const (
	StatusProcessing    Status = "processing"
	StatusAssembling    Status = "assembling"
	StatusDecompressing Status = "decompressing"
	StatusDetecting     Status = "detecting"
	StatusComplete      Status = "complete"
	StatusError         Status = "error"
)

// EncodingGzip marks a chunked upload whose assembled body is gzip data.
const EncodingGzip = "gzip"

// Job represents an async upload processing job.
type Job struct {
	ID             string           `json:"id"`
	UploadID       string           `json:"uploadId"`
	FileName       string           `json:"fileName"`
	TotalChunks    int              `json:"totalChunks"`
	OriginalSize   int64            `json:"originalSize"`
	CompressedSize int64            `json:"compressedSize"`
	Encoding       string           `json:"encoding"`
	Status         Status           `json:"status"`
	Progress       float64          `json:"progress"`
	Stage          string           `json:"stage"`
	StageProgress  float64          `json:"stageProgress"`
	FileInfo       *models.FileInfo `json:"fileInfo,omitempty"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
}

// Store defines the interface needed from storage layer.
type Store interface {
	CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error)
	GetFilePath(id string) (string, error)
	RegisterFile(info *models.FileInfo)
}

// Manager handles async upload processing.
type Manager struct {
	jobs  map[string]*Job
	mu    sync.RWMutex
	store Store
}

// NewManager creates a new upload processing manager.
func NewManager(store Store) *Manager {
	return &Manager{
		jobs:  make(map[string]*Job),
		store: store,
	}
}

// StartJob begins async processing of a chunked upload.
func (m *Manager) StartJob(uploadID, fileName string, totalChunks int, originalSize, compressedSize int64, encoding string) *Job {
	job := &Job{
		ID:             uuid.New().String(),
		UploadID:       uploadID,
		FileName:       fileName,
		TotalChunks:    totalChunks,
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
		Encoding:       encoding,
		Status:         StatusProcessing,
		Stage:          "preparing",
		CreatedAt:      time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	go m.processJob(job)

	return job
}

// GetJob returns a snapshot of a job by ID.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

func (m *Manager) processJob(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			m.markJobError(job, fmt.Sprintf("panic during upload processing: %v", r))
		}
	}()

	fmt.Printf("[UploadJob %s] Starting processing: %s\n", shortID(job.ID), job.FileName)

	m.updateJobStatus(job, StatusAssembling, "assembling chunks", 0)
	info, err := m.store.CompleteChunkedUpload(job.UploadID, job.FileName, job.TotalChunks)
	if err != nil {
		m.markJobError(job, fmt.Sprintf("failed to assemble chunks: %v", err))
		return
	}
	m.updateJobStatus(job, StatusAssembling, "assembling chunks", 100)
	fmt.Printf("[UploadJob %s] Chunks assembled: %s (%d bytes)\n", shortID(job.ID), info.ID, info.Size)

	if job.Encoding == EncodingGzip {
		m.updateJobStatus(job, StatusDecompressing, "decompressing file", 0)
		written, err := m.gunzipInPlace(job, info.ID)
		if err != nil {
			// An undecodable body is kept as-is; detection marks it unknown.
			fmt.Printf("[UploadJob %s] Warning: failed to decompress %s: %v\n", shortID(job.ID), info.ID, err)
		} else {
			info.Size = written
		}
		m.updateJobStatus(job, StatusDecompressing, "decompressing file", 100)
	}

	// The kind detected on assembly saw gzip bytes or a partial head; detect again.
	m.updateJobStatus(job, StatusDetecting, "detecting file kind", 0)
	m.store.RegisterFile(info)

	m.markJobComplete(job, info)
	fmt.Printf("[UploadJob %s] Processing complete: %s kind=%s (%d bytes)\n", shortID(job.ID), info.ID, info.Kind, info.Size)
}

// gunzipInPlace replaces a stored gzip file with its decompressed content
// and returns the decompressed size.
func (m *Manager) gunzipInPlace(job *Job, fileID string) (int64, error) {
	path, err := m.store.GetFilePath(fileID)
	if err != nil {
		return 0, err
	}

	src, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	br := bufio.NewReader(src)
	magic, err := br.Peek(2)
	if err != nil {
		return 0, err
	}
	if magic[0] != 0x1f || magic[1] != 0x8b {
		return 0, fmt.Errorf("not a gzip file")
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	tempPath := path + ".decompressing"
	dst, err := os.Create(tempPath)
	if err != nil {
		return 0, err
	}

	pw := &progressWriter{w: dst, onProgress: func(written int64) {
		if job.OriginalSize <= 0 {
			return
		}
		m.updateJobStatus(job, StatusDecompressing, "decompressing file", min(float64(written)/float64(job.OriginalSize)*100, 99))
	}}
	written, copyErr := io.Copy(pw, zr)
	closeErr := dst.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("decompressing: %w", copyErr)
	}

	if job.OriginalSize > 0 && written != job.OriginalSize {
		os.Remove(tempPath)
		return 0, fmt.Errorf("decompressed size mismatch: got %d bytes, expected %d bytes", written, job.OriginalSize)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return 0, err
	}
	return written, nil
}

// progressWriter reports bytes written at most every 100ms.
type progressWriter struct {
	w          io.Writer
	written    int64
	last       time.Time
	onProgress func(written int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if time.Since(p.last) > 100*time.Millisecond {
		p.onProgress(p.written)
		p.last = time.Now()
	}
	return n, err
}

// updateJobStatus updates job progress (thread-safe).
// Overall progress: assembling 0-40%, decompressing 40-90%, detecting 90-100%.
func (m *Manager) updateJobStatus(job *Job, status Status, stage string, stageProgress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = status
	job.Stage = stage
	job.StageProgress = stageProgress

	switch status {
	case StatusAssembling:
		job.Progress = stageProgress * 0.4
	case StatusDecompressing:
		job.Progress = 40 + stageProgress*0.5
	case StatusDetecting:
		job.Progress = 90 + stageProgress*0.1
	}
}

func (m *Manager) markJobComplete(job *Job, info *models.FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.FileInfo = info
	job.Status = StatusComplete
	job.Stage = "complete"
	job.Progress = 100
	now := time.Now()
	job.CompletedAt = &now
}

func (m *Manager) markJobError(job *Job, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = errMsg
	now := time.Now()
	job.CompletedAt = &now
	fmt.Printf("[UploadJob %s] Error: %s\n", shortID(job.ID), errMsg)
}

// CleanupOldJobs removes finished jobs older than maxAge and returns how
// many were dropped.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range m.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
