package models

import "time"

// WorkspaceStatus represents the status of a workspace.
type WorkspaceStatus string

const (
	WorkspaceStatusReady WorkspaceStatus = "ready"
	WorkspaceStatusError WorkspaceStatus = "error"
)

// ParseError is a recoverable problem found while parsing. Fatal problems are
// returned as errors instead.
type ParseError struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// Workspace pairs one parsed instance with the solutions parsed against it.
type Workspace struct {
	ID             string          `json:"id"`
	InstanceFileID string          `json:"instanceFileId"`
	Instance       InstanceSummary `json:"instance"`
	Status         WorkspaceStatus `json:"status"`
	Solutions      []SolutionInfo  `json:"solutions"`
	CreatedAt      time.Time       `json:"createdAt"`
	LastAccessed   time.Time       `json:"lastAccessed"`
	Persisted      bool            `json:"persisted"`
}

// SolutionInfo describes one solution parsed inside a workspace.
type SolutionInfo struct {
	ID           string       `json:"id"`
	FileID       string       `json:"fileId,omitempty"`
	InstanceName string       `json:"instanceName"`
	Authors      string       `json:"authors,omitempty"`
	RouteCount   int          `json:"routeCount"`
	TotalCost    int          `json:"totalCost"`
	Warnings     []ParseError `json:"warnings,omitempty"`
	ParsedAt     time.Time    `json:"parsedAt"`
	ParseTimeMs  int64        `json:"parseTimeMs"`
}
