// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version    string
	started    time.Time
	workspaces WorkspaceManager
	solverUp   bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, workspaces WorkspaceManager, solverUp bool) HealthHandler {
	return &HealthHandlerImpl{
		version:    version,
		started:    time.Now(),
		workspaces: workspaces,
		solverUp:   solverUp,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	workspaces := 0
	if h.workspaces != nil {
		workspaces = len(h.workspaces.ListWorkspaces())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    h.version,
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"workspaces": workspaces,
		"solver":     h.solverUp,
	})
}
