package models

import "time"

// FileKind classifies an uploaded file by its content.
type FileKind string

const (
	FileKindInstance FileKind = "instance"
	FileKindSolution FileKind = "solution"
	FileKindUnknown  FileKind = "unknown"
)

// FileInfo represents metadata about an uploaded file.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Kind       FileKind  `json:"kind"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "parsed", "error"
}
