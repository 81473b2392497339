// routes.go - Route registration helpers
package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pdptw-visualizer/backend/internal/metrics"
	"github.com/pdptw-visualizer/backend/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store        storage.Store
	Workspaces   WorkspaceManager
	Routes       RouteStore
	UploadJobs   UploadJobs
	Solves       SolveManager
	Upload       UploadOptions
	WSMaxMessage int
	Version      string
}

// Handlers holds all handler instances
type Handlers struct {
	Health      HealthHandler
	Upload      UploadHandler
	Workspace   WorkspaceHandler
	Solve       SolveHandler
	SolveStream SolveStreamHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:      NewHealthHandler(deps.Version, deps.Workspaces, deps.Solves != nil),
		Upload:      NewUploadHandler(deps.Store, deps.Workspaces, deps.UploadJobs, deps.Upload),
		Workspace:   NewWorkspaceHandler(deps.Store, deps.Workspaces, deps.Routes),
		Solve:       NewSolveHandler(deps.Solves),
		SolveStream: NewWebSocketHandler(deps.Solves, deps.WSMaxMessage),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// File management
	files := apiGroup.Group("/files")
	files.POST("/upload", handlers.Upload.HandleUploadFile)
	files.POST("/upload/binary", handlers.Upload.HandleUploadBinary)
	files.POST("/upload/chunk", handlers.Upload.HandleUploadChunk)
	files.POST("/upload/complete", handlers.Upload.HandleCompleteUpload)
	files.GET("/upload/:jobId/status", handlers.Upload.HandleUploadJobStatus)
	files.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	files.GET("/:id", handlers.Upload.HandleGetFile)
	files.PUT("/:id", handlers.Upload.HandleRenameFile)
	files.DELETE("/:id", handlers.Upload.HandleDeleteFile)

	// Workspaces
	ws := apiGroup.Group("/workspaces")
	ws.POST("", handlers.Workspace.HandleCreateWorkspace)
	ws.GET("", handlers.Workspace.HandleListWorkspaces)
	ws.GET("/:id", handlers.Workspace.HandleGetWorkspace)
	ws.DELETE("/:id", handlers.Workspace.HandleDeleteWorkspace)
	ws.POST("/:id/keepalive", handlers.Workspace.HandleKeepAlive)
	ws.GET("/:id/instance", handlers.Workspace.HandleGetInstance)
	ws.POST("/:id/solutions", handlers.Workspace.HandleAddSolution)
	ws.GET("/:id/solutions", handlers.Workspace.HandleListSolutions)
	ws.GET("/:id/solutions/:solutionId", handlers.Workspace.HandleGetSolution)
	ws.GET("/:id/solutions/:solutionId/routes/msgpack", handlers.Workspace.HandleGetRoutesMsgpack)
	ws.GET("/:id/solutions/:solutionId/routes/stored", handlers.Workspace.HandleGetStoredRoutes)
	ws.GET("/:id/solutions/:solutionId/analysis", handlers.Workspace.HandleGetAnalysis)

	// Solver
	solve := apiGroup.Group("/solve")
	solve.POST("", handlers.Solve.HandleSubmitSolve)
	solve.GET("/presets", handlers.Solve.HandleGetPresets)
	solve.GET("/:jobId", handlers.Solve.HandleGetSolveJob)

	// WebSocket
	apiGroup.GET("/ws/solve/:jobId", handlers.SolveStream.HandleSolveStream)
}

// RegisterMetrics exposes the Prometheus registry at /metrics and records
// request counts and latency for every other route.
func RegisterMetrics(e *echo.Echo) {
	metrics.RegisterDefault()
	e.Use(MetricsMiddleware())
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
}

// MetricsMiddleware records HTTP request metrics labelled by route pattern.
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if apiErr, ok := err.(*APIError); ok {
					status = apiErr.Status
				} else if httpErr, ok := err.(*echo.HTTPError); ok {
					status = httpErr.Code
				}
			}
			labels := []string{c.Request().Method, c.Path(), strconv.Itoa(status)}
			metrics.HTTPRequests.WithLabelValues(labels...).Inc()
			metrics.HTTPDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// SetupMiddleware configures the error handler, recovery and optional
// request logging.
func SetupMiddleware(e *echo.Echo, requestLogging bool) {
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 * 1024,
	}))

	if requestLogging {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Skipper: func(c echo.Context) bool {
				path := c.Path()
				return path == "/api/health" || path == "/metrics" ||
					path == "/api/files/upload/:jobId/status"
			},
		}))
	}
}
