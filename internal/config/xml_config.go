// Package config provides XML-based configuration management for air-gapped deployment.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"PDPTWVisualizer"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Processing configuration
	Processing ProcessingConfig `xml:"Processing"`

	// External solver configuration
	Solver SolverConfig `xml:"Solver"`

	// Solve result cache configuration
	Cache CacheConfig `xml:"Cache"`

	// Security configuration
	Security SecurityConfig `xml:"Security"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory       string `xml:"DataDirectory"`
	UploadsDirectory    string `xml:"UploadsDirectory"`
	TempDirectory       string `xml:"TempDirectory"`
	ParsedDataDirectory string `xml:"ParsedDataDirectory"`
	MaxUploadSize       string `xml:"MaxUploadSize"`
	EnablePersistence   bool   `xml:"EnablePersistence"`
}

// ProcessingConfig contains parsing and workspace lifetime settings
type ProcessingConfig struct {
	WorkspaceTimeoutMinutes int  `xml:"WorkspaceTimeoutMinutes"`
	CleanupIntervalMinutes  int  `xml:"CleanupIntervalMinutes"`
	UploadJobMaxAgeMinutes  int  `xml:"UploadJobMaxAgeMinutes"`
	EnableCompression       bool `xml:"EnableCompression"`
	CompressionLevel        int  `xml:"CompressionLevel"`
}

// SolverConfig describes the external solver executable
type SolverConfig struct {
	BinaryPath        string `xml:"BinaryPath"`
	WorkDirectory     string `xml:"WorkDirectory"`
	TimeoutSeconds    int    `xml:"TimeoutSeconds"`
	MaxConcurrent     int    `xml:"MaxConcurrentSolves"`
	RequestsPerMinute int    `xml:"RequestsPerMinute"`
	PresetsFile       string `xml:"PresetsFile"`
	KeepWorkFiles     bool   `xml:"KeepWorkFiles"`
	JobMaxAgeMinutes  int    `xml:"JobMaxAgeMinutes"`
}

// CacheConfig selects the solve result cache backend
type CacheConfig struct {
	RedisURL   string `xml:"RedisURL"` // empty selects the in-memory cache
	KeyPrefix  string `xml:"KeyPrefix"`
	TTLMinutes int    `xml:"TTLMinutes"`
	MaxEntries int    `xml:"MaxMemoryEntries"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AllowFileDeletion bool   `xml:"AllowFileDeletion"`
	AllowedFileTypes  string `xml:"AllowedFileTypes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	EnableRequestLogging    bool `xml:"EnableRequestLogging"`
	EnableMetrics           bool `xml:"EnableMetrics"`
	WebSocketMaxMessageSize int  `xml:"WebSocketMaxMessageSizeKB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "100M",
		},
		Storage: StorageConfig{
			DataDirectory:       "./data",
			UploadsDirectory:    "./data/uploads",
			TempDirectory:       "./data/temp",
			ParsedDataDirectory: "./data/parsed",
			MaxUploadSize:       "100M",
			EnablePersistence:   true,
		},
		Processing: ProcessingConfig{
			WorkspaceTimeoutMinutes: 30,
			CleanupIntervalMinutes:  5,
			UploadJobMaxAgeMinutes:  60,
			EnableCompression:       true,
			CompressionLevel:        5,
		},
		Solver: SolverConfig{
			BinaryPath:        "./bin/pdptw-solver",
			WorkDirectory:     "./data/solver",
			TimeoutSeconds:    300,
			MaxConcurrent:     2,
			RequestsPerMinute: 30,
			PresetsFile:       "./solver_presets.yaml",
			KeepWorkFiles:     false,
			JobMaxAgeMinutes:  60,
		},
		Cache: CacheConfig{
			RedisURL:   "",
			KeyPrefix:  "pdptw:solve:",
			TTLMinutes: 24 * 60,
			MaxEntries: 256,
		},
		Security: SecurityConfig{
			AllowFileDeletion: true,
			AllowedFileTypes:  ".txt,.sol,.pdptw,.gz",
		},
		Advanced: AdvancedConfig{
			EnableRequestLogging:    true,
			EnableMetrics:           true,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadDotEnv loads a .env file from dir into the process environment.
// Variables already set are not overwritten and a missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	fmt.Printf("[Config] Loaded environment from %s\n", path)
	return nil
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- PDPTW Visualizer Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if tempDir := os.Getenv("DUCKDB_TEMP_DIR"); tempDir != "" {
		c.Storage.TempDirectory = tempDir
	}

	if bin := os.Getenv("SOLVER_BIN"); bin != "" {
		c.Solver.BinaryPath = bin
	}
	if timeout := os.Getenv("SOLVER_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			c.Solver.TimeoutSeconds = t
		}
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Cache.RedisURL = redisURL
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	paths := []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.TempDirectory,
		&c.Storage.ParsedDataDirectory,
		&c.Solver.WorkDirectory,
		&c.Solver.PresetsFile,
		&c.Solver.BinaryPath,
	}
	for _, p := range paths {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// SolverTimeout returns the per-run solver timeout.
func (c *AppConfig) SolverTimeout() time.Duration {
	return time.Duration(c.Solver.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long solve results are cached.
func (c *AppConfig) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// WorkspaceTimeout returns how long idle workspaces are kept.
func (c *AppConfig) WorkspaceTimeout() time.Duration {
	return time.Duration(c.Processing.WorkspaceTimeoutMinutes) * time.Minute
}

// CleanupInterval returns the period of the background cleanup loop.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.TempDirectory,
		c.Storage.ParsedDataDirectory,
		c.Solver.WorkDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
