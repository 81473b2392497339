// handlers_solve.go - External solver job handlers
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pdptw-visualizer/backend/internal/solver"
)

// SolveHandlerImpl implements the SolveHandler interface
type SolveHandlerImpl struct {
	solves SolveManager
}

// NewSolveHandler creates a solve handler
func NewSolveHandler(solves SolveManager) SolveHandler {
	return &SolveHandlerImpl{solves: solves}
}

// HandleSubmitSolve validates an instance and queues a solver run
func (h *SolveHandlerImpl) HandleSubmitSolve(c echo.Context) error {
	if h.solves == nil {
		return NewServiceUnavailableError("solver is not configured")
	}

	var req solver.Request
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if strings.TrimSpace(req.Instance) == "" {
		return NewValidationError("instance")
	}

	job, err := h.solves.Submit(c.Request().Context(), req)
	if err != nil {
		return FromError("failed to submit solve", err)
	}

	status := http.StatusAccepted
	if job.Done() {
		status = http.StatusOK
	}
	return c.JSON(status, job)
}

// HandleGetSolveJob returns the current state of a solve job
func (h *SolveHandlerImpl) HandleGetSolveJob(c echo.Context) error {
	jobID := c.Param("jobId")
	if h.solves == nil {
		return NewNotFoundError("solve job", jobID)
	}

	job, ok := h.solves.GetJob(jobID)
	if !ok {
		return NewNotFoundError("solve job", jobID)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleGetPresets lists the named solver parameter sets
func (h *SolveHandlerImpl) HandleGetPresets(c echo.Context) error {
	if h.solves == nil || h.solves.Presets() == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"default": "",
			"presets": []interface{}{},
		})
	}
	return c.JSON(http.StatusOK, h.solves.Presets())
}
