package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pdptw-visualizer/backend/internal/api"
	"github.com/pdptw-visualizer/backend/internal/config"
	"github.com/pdptw-visualizer/backend/internal/models"
	"github.com/pdptw-visualizer/backend/internal/parser"
	"github.com/pdptw-visualizer/backend/internal/session"
	"github.com/pdptw-visualizer/backend/internal/solver"
	"github.com/pdptw-visualizer/backend/internal/storage"
	"github.com/pdptw-visualizer/backend/internal/upload"
	"github.com/pdptw-visualizer/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const configFileName = "PDPTWVisualizer.config"

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	if err := config.LoadDotEnv(exeDir); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	// Load XML configuration
	configPath := filepath.Join(exeDir, configFileName)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}
	if os.Getenv("DUCKDB_TEMP_DIR") == "" {
		os.Setenv("DUCKDB_TEMP_DIR", cfg.Storage.TempDirectory)
	}

	// Check if running in embedded mode (viewer built into binary)
	embeddedMode := web.HasEmbeddedFiles()

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	workspaceMgr := newWorkspaceManager(cfg)
	defer workspaceMgr.Close()

	uploadMgr := upload.NewManager(fileStore)

	solveMgr := newSolveManager(cfg)
	if solveMgr != nil {
		defer solveMgr.Close()
	}

	go runCleanup(cfg, workspaceMgr, uploadMgr, solveMgr)

	deps := &api.Dependencies{
		Store:      fileStore,
		Workspaces: workspaceMgr,
		UploadJobs: uploadMgr,
		Upload: api.UploadOptions{
			AllowedFileTypes:  api.ParseAllowedTypes(cfg.Security.AllowedFileTypes),
			AllowFileDeletion: cfg.Security.AllowFileDeletion,
		},
		WSMaxMessage: cfg.Advanced.WebSocketMaxMessageSize,
		Version:      Version,
	}
	// Interface fields stay nil when the backing component is disabled.
	if store := workspaceMgr.Store(); store != nil {
		deps.Routes = store
	}
	if solveMgr != nil {
		deps.Solves = solveMgr
	}

	e := echo.New()
	e.HideBanner = true

	api.SetupMiddleware(e, cfg.Advanced.EnableRequestLogging)
	if cfg.Advanced.EnableMetrics {
		api.RegisterMetrics(e)
	}

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/api/ws/") ||
				strings.Contains(path, "/upload")
		},
		ErrorMessage: "Request timeout",
	}))

	// Compression middleware
	if cfg.Processing.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Processing.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(corsConfig(cfg, embeddedMode)))
	}

	api.RegisterRoutes(e, api.NewHandlers(deps))

	// Register embedded viewer if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			fmt.Printf("Warning: failed to register static routes: %v\n", err)
		} else {
			fmt.Println("Serving embedded viewer from binary")
		}
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath, embeddedMode, solveMgr != nil)

	e.Logger.Fatal(e.StartServer(s))
}

// newWorkspaceManager opens the DuckDB route store when persistence is on.
// A store that fails to open leaves workspaces in memory only.
func newWorkspaceManager(cfg *config.AppConfig) *session.Manager {
	if !cfg.Storage.EnablePersistence {
		return session.NewManager()
	}
	store, err := session.NewDuckStore(cfg.Storage.ParsedDataDirectory)
	if err != nil {
		fmt.Printf("Warning: persistent route store disabled: %v\n", err)
		return session.NewManager()
	}
	return session.NewManagerWithStore(store)
}

// newSolveManager wires the external solver, its presets and the result
// cache. It returns nil when no solver binary is available.
func newSolveManager(cfg *config.AppConfig) *solver.Manager {
	if cfg.Solver.BinaryPath == "" {
		return nil
	}
	if _, err := os.Stat(cfg.Solver.BinaryPath); err != nil {
		fmt.Printf("Warning: solver disabled: %v\n", err)
		return nil
	}

	var presets *models.SolverPresets
	if _, err := os.Stat(cfg.Solver.PresetsFile); err == nil {
		presets, err = parser.ParsePresets(cfg.Solver.PresetsFile)
		if err != nil {
			fmt.Printf("Warning: failed to load solver presets: %v\n", err)
		} else {
			fmt.Printf("Loaded %d solver presets (default %q)\n", len(presets.Presets), presets.Default)
		}
	}

	runner := solver.NewRunner(cfg.Solver.BinaryPath, cfg.Solver.WorkDirectory, cfg.SolverTimeout(), cfg.Solver.KeepWorkFiles)
	return solver.NewManager(runner, newCache(cfg), solver.Options{
		MaxConcurrent:     cfg.Solver.MaxConcurrent,
		RequestsPerMinute: cfg.Solver.RequestsPerMinute,
		Presets:           presets,
	})
}

// newCache prefers Redis when configured and falls back to memory.
func newCache(cfg *config.AppConfig) solver.Cache {
	if cfg.Cache.RedisURL != "" {
		cache, err := solver.NewRedisCache(cfg.Cache.RedisURL, cfg.Cache.KeyPrefix, cfg.CacheTTL())
		if err == nil {
			fmt.Println("Solve cache: redis")
			return cache
		}
		fmt.Printf("Warning: redis cache unavailable, using memory: %v\n", err)
	}
	return solver.NewMemoryCache(cfg.CacheTTL(), cfg.Cache.MaxEntries)
}

func runCleanup(cfg *config.AppConfig, workspaces *session.Manager, uploads *upload.Manager, solves *solver.Manager) {
	ticker := time.NewTicker(cfg.CleanupInterval())
	defer ticker.Stop()

	uploadMaxAge := time.Duration(cfg.Processing.UploadJobMaxAgeMinutes) * time.Minute
	solveMaxAge := time.Duration(cfg.Solver.JobMaxAgeMinutes) * time.Minute

	for range ticker.C {
		workspaces.CleanupOldWorkspaces(cfg.WorkspaceTimeout())
		uploads.CleanupOldJobs(uploadMaxAge)
		if solves != nil {
			solves.CleanupOldJobs(solveMaxAge)
		}
	}
}

func corsConfig(cfg *config.AppConfig, embeddedMode bool) middleware.CORSConfig {
	methods := []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}

	if !embeddedMode {
		// Development mode - only allow localhost
		return middleware.CORSConfig{
			AllowOrigins: []string{
				"http://localhost:5173", "http://127.0.0.1:5173",
				"http://localhost:3000", "http://127.0.0.1:3000",
			},
			AllowMethods: methods,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}
	}

	origins := strings.Split(cfg.Server.AllowOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	if len(origins) == 1 && origins[0] == "" {
		origins = []string{"*"}
	}
	return middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: methods,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}
}

func printBanner(cfg *config.AppConfig, configPath string, embeddedMode, solverUp bool) {
	mode := "Development"
	if embeddedMode {
		mode = "Air-Gapped (Embedded)"
	}
	solverState := "disabled"
	if solverUp {
		solverState = cfg.Solver.BinaryPath
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           PDPTW Visualizer Server                         ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  Solver:    %-46s║\n", solverState)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}
}
