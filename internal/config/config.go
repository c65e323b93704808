// Package config provides configuration management for the CourtCut agent.
// Configuration is loaded from environment variables with sensible defaults.
// An optional .env file is read first; real environment variables take precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort     = 8797
	DefaultLogLevel = "info"
	DefaultDataDir  = ".courtcut"

	// Environment variable names
	EnvPort       = "COURTCUT_PORT"
	EnvLogLevel   = "COURTCUT_LOG_LEVEL"
	EnvDataDir    = "COURTCUT_DATA_DIR"
	EnvClipsDir   = "COURTCUT_CLIPS_DIR"
	EnvFFmpegPath = "COURTCUT_FFMPEG_PATH"
	EnvHeadless   = "COURTCUT_HEADLESS"

	// Database filename
	DBFilename = "courtcut.db"

	// EnvFilename is the optional dotenv file looked up in the working directory
	// and in the data directory.
	EnvFilename = ".env"

	// Clip creation defaults
	DefaultMaxAttempts  = 3
	DefaultLowDiskBytes = 1 << 30 // 1 GiB
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ClipsDir() string
	ThumbnailsDir() string
	ExportsDir() string
	FFmpegPath() string
	Headless() bool
	MaxAttempts() int
	LowDiskBytes() uint64
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port       int
	logLevel   string
	dataDir    string
	clipsDir   string
	ffmpegPath string
	headless   bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.clipsDir = os.Getenv(EnvClipsDir)
	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(strings.TrimSpace(h))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	return cfg, nil
}

// loadDotEnv reads .env files without overriding variables that are already set.
// A missing file is not an error; a malformed one is.
func loadDotEnv() error {
	candidates := []string{EnvFilename}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		candidates = append(candidates, filepath.Join(dd, EnvFilename))
	} else {
		candidates = append(candidates, filepath.Join(defaultDataDir(), EnvFilename))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ClipsDir returns the directory encoded clips are written to
func (c *EnvConfig) ClipsDir() string {
	if c.clipsDir != "" {
		return c.clipsDir
	}
	return filepath.Join(c.dataDir, "clips")
}

// ThumbnailsDir returns the directory clip thumbnails are written to
func (c *EnvConfig) ThumbnailsDir() string {
	return filepath.Join(c.ClipsDir(), "thumbnails")
}

// ExportsDir returns the default export destination
func (c *EnvConfig) ExportsDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// FFmpegPath returns the configured encoder binary; empty means look it up on PATH.
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) MaxAttempts() int {
	return DefaultMaxAttempts
}

func (c *EnvConfig) LowDiskBytes() uint64 {
	return DefaultLowDiskBytes
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
