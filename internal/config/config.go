// Package config provides configuration management for zashedit.
// Defaults are overridden by an optional TOML file, which is in turn
// overridden by ZASHEDIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort                 = 8797
	DefaultLogLevel             = "info"
	DefaultDataDir              = ".zashedit"
	DefaultFFmpegPath           = "ffmpeg"
	DefaultFFprobePath          = "ffprobe"
	DefaultEncodeTimeoutSeconds = 0 // no limit

	// Environment variable names
	EnvConfigFile    = "ZASHEDIT_CONFIG"
	EnvPort          = "ZASHEDIT_PORT"
	EnvLogLevel      = "ZASHEDIT_LOG_LEVEL"
	EnvDataDir       = "ZASHEDIT_DATA_DIR"
	EnvFFmpegPath    = "ZASHEDIT_FFMPEG_PATH"
	EnvFFprobePath   = "ZASHEDIT_FFPROBE_PATH"
	EnvEncodeTimeout = "ZASHEDIT_ENCODE_TIMEOUT_SECONDS"
	EnvDryRun        = "ZASHEDIT_DRY_RUN"

	// Files inside the data directory
	ConfigFilename = "config.toml"
	DBFilename     = "zashedit.db"
	LockFilename   = "zashedit.lock"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	MediaDir() string
	StagingDir() string
	LockPath() string
	FFmpegPath() string
	FFprobePath() string
	EncodeTimeout() time.Duration
	DryRun() bool
}

// fileConfig mirrors config.toml. Absent keys keep their defaults.
type fileConfig struct {
	Port                 int    `toml:"port"`
	LogLevel             string `toml:"log_level"`
	DataDir              string `toml:"data_dir"`
	FFmpegPath           string `toml:"ffmpeg_path"`
	FFprobePath          string `toml:"ffprobe_path"`
	EncodeTimeoutSeconds *int   `toml:"encode_timeout_seconds"`
	DryRun               *bool  `toml:"dry_run"`
}

// EnvConfig is the resolved configuration.
type EnvConfig struct {
	port          int
	logLevel      string
	dataDir       string
	ffmpegPath    string
	ffprobePath   string
	encodeTimeout int
	dryRun        bool

	file       string
	fileLoaded bool
}

// New loads the configuration from the default file location and the
// environment.
func New() (*EnvConfig, error) {
	return Load("")
}

// Load applies defaults, then the TOML file at path, then environment
// overrides. An empty path means $ZASHEDIT_CONFIG, falling back to
// config.toml in the default data directory. A missing file is not an error.
func Load(path string) (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		ffmpegPath:    DefaultFFmpegPath,
		ffprobePath:   DefaultFFprobePath,
		encodeTimeout: DefaultEncodeTimeoutSeconds,
	}

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path == "" {
		path = filepath.Join(cfg.dataDir, ConfigFilename)
	}
	expanded, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	cfg.file = expanded
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) loadFile() error {
	f, err := os.Open(c.file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fmt.Errorf("parse config %s: %w", c.file, err)
	}
	c.fileLoaded = true

	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		dir, err := expandPath(fc.DataDir)
		if err != nil {
			return err
		}
		c.dataDir = dir
	}
	if fc.FFmpegPath != "" {
		c.ffmpegPath = fc.FFmpegPath
	}
	if fc.FFprobePath != "" {
		c.ffprobePath = fc.FFprobePath
	}
	if fc.EncodeTimeoutSeconds != nil {
		c.encodeTimeout = *fc.EncodeTimeoutSeconds
	}
	if fc.DryRun != nil {
		c.dryRun = *fc.DryRun
	}
	return nil
}

func (c *EnvConfig) loadEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		dir, err := expandPath(dd)
		if err != nil {
			return err
		}
		c.dataDir = dir
	}
	if v := os.Getenv(EnvFFmpegPath); v != "" {
		c.ffmpegPath = v
	}
	if v := os.Getenv(EnvFFprobePath); v != "" {
		c.ffprobePath = v
	}
	if v := os.Getenv(EnvEncodeTimeout); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvEncodeTimeout, err)
		}
		c.encodeTimeout = secs
	}
	if v := os.Getenv(EnvDryRun); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDryRun, err)
		}
		c.dryRun = dry
	}
	return nil
}

func (c *EnvConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.port)
	}
	if c.encodeTimeout < 0 {
		return fmt.Errorf("invalid encode timeout %d: must not be negative", c.encodeTimeout)
	}
	switch strings.ToLower(c.logLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.logLevel)
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

// MediaDir holds encoder outputs that projects reference.
func (c *EnvConfig) MediaDir() string {
	return filepath.Join(c.dataDir, "media")
}

// StagingDir holds encoder outputs until they are promoted.
func (c *EnvConfig) StagingDir() string {
	return filepath.Join(c.dataDir, "staging")
}

func (c *EnvConfig) LockPath() string {
	return filepath.Join(c.dataDir, LockFilename)
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

// EncodeTimeout bounds a single encoder run; zero means no limit.
func (c *EnvConfig) EncodeTimeout() time.Duration {
	return time.Duration(c.encodeTimeout) * time.Second
}

// DryRun replaces the ffmpeg encoder with one that only records instructions.
func (c *EnvConfig) DryRun() bool {
	return c.dryRun
}

// File returns the config file path and whether it was read.
func (c *EnvConfig) File() (string, bool) {
	return c.file, c.fileLoaded
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", p, err)
	}
	return abs, nil
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
