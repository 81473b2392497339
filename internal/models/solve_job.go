package models

import "time"

// SolveStatus is the lifecycle state of a solve job.
type SolveStatus string

const (
	SolveStatusQueued   SolveStatus = "queued"
	SolveStatusRunning  SolveStatus = "running"
	SolveStatusComplete SolveStatus = "complete"
	SolveStatusError    SolveStatus = "error"
)

// SysInfo records the machine a solver ran on.
type SysInfo struct {
	Platform string `json:"platform"`
	CPU      string `json:"cpu"`
	RAM      string `json:"ram"`
}

// SolveJob tracks one invocation of the external solver.
type SolveJob struct {
	ID           string            `json:"id"`
	InstanceName string            `json:"instanceName"`
	Params       map[string]string `json:"params"`
	Status       SolveStatus       `json:"status"`
	Cached       bool              `json:"cached"`
	SolutionText string            `json:"solutionText,omitempty"`
	Solution     *Solution         `json:"solution,omitempty"`
	Warnings     []ParseError      `json:"warnings,omitempty"`
	Error        string            `json:"error,omitempty"`
	System       *SysInfo          `json:"system,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	StartedAt    *time.Time        `json:"startedAt,omitempty"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
	DurationMs   int64             `json:"durationMs,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (j *SolveJob) Done() bool {
	return j.Status == SolveStatusComplete || j.Status == SolveStatusError
}
