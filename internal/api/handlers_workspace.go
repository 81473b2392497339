// handlers_workspace.go - Instance workspace and solution handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pdptw-visualizer/backend/internal/analysis"
	"github.com/pdptw-visualizer/backend/internal/models"
	"github.com/pdptw-visualizer/backend/internal/storage"
	"github.com/vmihailenco/msgpack/v5"
)

const msgpackContentType = "application/msgpack"

// WorkspaceHandlerImpl implements the WorkspaceHandler interface
type WorkspaceHandlerImpl struct {
	store      storage.Store
	workspaces WorkspaceManager
	routes     RouteStore
}

// NewWorkspaceHandler creates a workspace handler. routes may be nil when
// persistence is disabled.
func NewWorkspaceHandler(store storage.Store, workspaces WorkspaceManager, routes RouteStore) WorkspaceHandler {
	return &WorkspaceHandlerImpl{
		store:      store,
		workspaces: workspaces,
		routes:     routes,
	}
}

type fileRefRequest struct {
	FileID string `json:"fileId"`
}

// readFile loads the text of an uploaded file.
func (h *WorkspaceHandlerImpl) readFile(c echo.Context) (string, string, error) {
	var req fileRefRequest
	if err := c.Bind(&req); err != nil {
		return "", "", NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return "", "", NewValidationError("fileId")
	}
	if _, err := h.store.Get(req.FileID); err != nil {
		return "", "", NewNotFoundError("file", req.FileID)
	}

	text, err := h.store.ReadText(req.FileID)
	if err != nil {
		return "", "", FromError("failed to read file", err)
	}
	return req.FileID, text, nil
}

// HandleCreateWorkspace parses an uploaded instance file into a new workspace
func (h *WorkspaceHandlerImpl) HandleCreateWorkspace(c echo.Context) error {
	fileID, text, err := h.readFile(c)
	if err != nil {
		return err
	}

	ws, err := h.workspaces.CreateWorkspace(fileID, text)
	if err != nil {
		return FromError("failed to parse instance", err)
	}
	return c.JSON(http.StatusCreated, ws)
}

// HandleListWorkspaces returns every open workspace
func (h *WorkspaceHandlerImpl) HandleListWorkspaces(c echo.Context) error {
	return c.JSON(http.StatusOK, h.workspaces.ListWorkspaces())
}

// HandleGetWorkspace returns workspace metadata and its solutions
func (h *WorkspaceHandlerImpl) HandleGetWorkspace(c echo.Context) error {
	id := c.Param("id")
	ws, ok := h.workspaces.GetWorkspace(id)
	if !ok {
		return NewNotFoundError("workspace", id)
	}
	return c.JSON(http.StatusOK, ws)
}

// HandleDeleteWorkspace closes a workspace and drops its stored rows
func (h *WorkspaceHandlerImpl) HandleDeleteWorkspace(c echo.Context) error {
	id := c.Param("id")
	if !h.workspaces.DeleteWorkspace(id) {
		return NewNotFoundError("workspace", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleKeepAlive extends workspace lifetime for active viewing
func (h *WorkspaceHandlerImpl) HandleKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if !h.workspaces.TouchWorkspace(id) {
		return NewNotFoundError("workspace", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetInstance returns the full parsed instance of a workspace
func (h *WorkspaceHandlerImpl) HandleGetInstance(c echo.Context) error {
	id := c.Param("id")
	inst, ok := h.workspaces.GetInstance(id)
	if !ok {
		return NewNotFoundError("workspace", id)
	}
	return c.JSON(http.StatusOK, inst)
}

// HandleAddSolution parses an uploaded solution file against the workspace instance
func (h *WorkspaceHandlerImpl) HandleAddSolution(c echo.Context) error {
	id := c.Param("id")
	if _, ok := h.workspaces.GetWorkspace(id); !ok {
		return NewNotFoundError("workspace", id)
	}

	fileID, text, err := h.readFile(c)
	if err != nil {
		return err
	}

	info, err := h.workspaces.AddSolution(id, fileID, text)
	if err != nil {
		return FromError("failed to parse solution", err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleListSolutions returns solution summaries of a workspace
func (h *WorkspaceHandlerImpl) HandleListSolutions(c echo.Context) error {
	id := c.Param("id")
	solutions, ok := h.workspaces.ListSolutions(id)
	if !ok {
		return NewNotFoundError("workspace", id)
	}
	return c.JSON(http.StatusOK, solutions)
}

func (h *WorkspaceHandlerImpl) solution(c echo.Context) (*models.Instance, *models.Solution, error) {
	id := c.Param("id")
	solutionID := c.Param("solutionId")

	inst, ok := h.workspaces.GetInstance(id)
	if !ok {
		return nil, nil, NewNotFoundError("workspace", id)
	}
	sol, ok := h.workspaces.GetSolution(id, solutionID)
	if !ok {
		return nil, nil, NewNotFoundError("solution", solutionID)
	}
	h.workspaces.TouchWorkspace(id)
	return inst, sol, nil
}

// HandleGetSolution returns a parsed solution with its routes
func (h *WorkspaceHandlerImpl) HandleGetSolution(c echo.Context) error {
	_, sol, err := h.solution(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"solution":  sol,
		"totalCost": sol.TotalCost(),
		"stopCount": sol.StopCount(),
	})
}

// HandleGetRoutesMsgpack returns solution routes in MessagePack format
func (h *WorkspaceHandlerImpl) HandleGetRoutesMsgpack(c echo.Context) error {
	_, sol, err := h.solution(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(map[string]interface{}{
		"instanceName": sol.InstanceName,
		"routes":       sol.Routes,
		"totalCost":    sol.TotalCost(),
	})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, msgpackContentType, data)
}

// HandleGetStoredRoutes reads route summaries back from the persistent store.
// With ?route=<index> the stops of that route are returned instead.
func (h *WorkspaceHandlerImpl) HandleGetStoredRoutes(c echo.Context) error {
	if _, _, err := h.solution(c); err != nil {
		return err
	}
	if h.routes == nil {
		return NewServiceUnavailableError("persistent storage is disabled")
	}

	ctx := c.Request().Context()
	solutionID := c.Param("solutionId")

	if raw := c.QueryParam("route"); raw != "" {
		routeID, err := strconv.Atoi(raw)
		if err != nil || routeID < 0 {
			return NewBadRequestError("route must be a non-negative integer", err)
		}
		stops, err := h.routes.RouteStops(ctx, solutionID, routeID)
		if err != nil {
			return NewInternalError("failed to read route stops", err)
		}
		return c.JSON(http.StatusOK, stops)
	}

	summaries, err := h.routes.RouteSummaries(ctx, solutionID)
	if err != nil {
		return NewInternalError("failed to read routes", err)
	}
	return c.JSON(http.StatusOK, summaries)
}

// HandleGetAnalysis replays every route against time windows and capacity
func (h *WorkspaceHandlerImpl) HandleGetAnalysis(c echo.Context) error {
	inst, sol, err := h.solution(c)
	if err != nil {
		return err
	}

	reports := analysis.AnalyzeSolution(inst, sol)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"summary": analysis.Summarize(reports),
		"routes":  reports,
	})
}
