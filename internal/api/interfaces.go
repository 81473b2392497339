// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pdptw-visualizer/backend/internal/models"
	"github.com/pdptw-visualizer/backend/internal/session"
	"github.com/pdptw-visualizer/backend/internal/solver"
	"github.com/pdptw-visualizer/backend/internal/upload"
)

// UploadHandler handles file upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleUploadJobStatus(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// WorkspaceHandler handles instance workspaces and their solutions
type WorkspaceHandler interface {
	HandleCreateWorkspace(c echo.Context) error
	HandleListWorkspaces(c echo.Context) error
	HandleGetWorkspace(c echo.Context) error
	HandleDeleteWorkspace(c echo.Context) error
	HandleKeepAlive(c echo.Context) error
	HandleGetInstance(c echo.Context) error
	HandleAddSolution(c echo.Context) error
	HandleListSolutions(c echo.Context) error
	HandleGetSolution(c echo.Context) error
	HandleGetRoutesMsgpack(c echo.Context) error
	HandleGetStoredRoutes(c echo.Context) error
	HandleGetAnalysis(c echo.Context) error
}

// SolveHandler handles external solver jobs
type SolveHandler interface {
	HandleSubmitSolve(c echo.Context) error
	HandleGetSolveJob(c echo.Context) error
	HandleGetPresets(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SolveStreamHandler streams solve job status over WebSocket
type SolveStreamHandler interface {
	HandleSolveStream(c echo.Context) error
}

// WorkspaceManager defines the workspace operations used by handlers.
// This allows mocking in tests
type WorkspaceManager interface {
	CreateWorkspace(fileID, text string) (*models.Workspace, error)
	AddSolution(workspaceID, fileID, text string) (*models.SolutionInfo, error)
	GetWorkspace(id string) (*models.Workspace, bool)
	GetInstance(id string) (*models.Instance, bool)
	GetSolution(workspaceID, solutionID string) (*models.Solution, bool)
	ListSolutions(workspaceID string) ([]models.SolutionInfo, bool)
	ListWorkspaces() []*models.Workspace
	DeleteWorkspace(id string) bool
	TouchWorkspace(id string) bool
}

// RouteStore reads persisted route rows
type RouteStore interface {
	RouteSummaries(ctx context.Context, solutionID string) ([]session.RouteSummary, error)
	RouteStops(ctx context.Context, solutionID string, routeID int) ([]session.RouteStop, error)
}

// SolveManager defines the solve job operations used by handlers
type SolveManager interface {
	Submit(ctx context.Context, req solver.Request) (*models.SolveJob, error)
	GetJob(id string) (*models.SolveJob, bool)
	Subscribe(id string) (<-chan models.SolveJob, func(), bool)
	Presets() *models.SolverPresets
}

// UploadJobs defines the async upload job operations used by handlers
type UploadJobs interface {
	StartJob(uploadID, fileName string, totalChunks int, originalSize, compressedSize int64, encoding string) *upload.Job
	GetJob(id string) (*upload.Job, bool)
}
