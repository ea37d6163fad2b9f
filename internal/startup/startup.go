package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yrk1n/video-platform/internal/logging"
	"github.com/yrk1n/video-platform/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	UploadDir       string
	ProcessedDir    string
	CacheDir        string
	DatabaseDir     string
	StaticDir       string
	Port            string
	CORSOrigins     []string
	MaxUploadBytes  int64
	Workers         int
	FFmpegPath      string
	ShutdownTimeout time.Duration
	LogStaticFiles  bool
	LogHealthChecks bool
	MetricsEnabled  bool

	// IndexInterval is the period of upload directory reconciliation. 0
	// runs it only at startup.
	IndexInterval      time.Duration
	StreamWriteTimeout time.Duration

	// Memory budget, see package memory
	GoMemLimit  string
	MemoryLimit int64
	MemoryRatio float64

	// Derived paths
	DatabasePath string
	PosterDir    string
	ConfigFile   string

	// Feature flags based on directory availability
	PostersEnabled bool
	StaticEnabled  bool
}

// Defaults for every configuration key. Keys are matched against
// environment variables in upper case and against config.yaml as written.
var defaults = map[string]interface{}{
	"upload_dir":           "wwwroot/uploads",
	"processed_dir":        "wwwroot/processed",
	"cache_dir":            "cache",
	"database_dir":         "data",
	"static_dir":           "static",
	"port":                 "5253",
	"cors_origins":         "http://localhost:5173",
	"max_upload_bytes":     int64(4 << 30),
	"transcode_workers":    0,
	"ffmpeg_path":          "ffmpeg",
	"shutdown_timeout":     "30s",
	"log_level":            "",
	"log_static_files":     false,
	"log_health_checks":    true,
	"metrics_enabled":      true,
	"index_interval":       "30m",
	"stream_write_timeout": "30s",
	"gomemlimit":           "",
	"memory_limit":         int64(0),
	"memory_ratio":         0.0,
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// LoadConfig loads and validates configuration from defaults, an optional
// config.yaml and environment variables, in increasing precedence.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return loadConfig(v)
}

func loadConfig(v *viper.Viper) (*Config, error) {
	section("CONFIGURATION")

	if file := v.ConfigFileUsed(); file != "" {
		logging.Info("  Config file:         %s", file)
	} else {
		logging.Info("  Config file:         (none, using defaults and environment)")
	}

	if name := v.GetString("log_level"); name != "" {
		if level, valid := logging.ParseLevel(name); valid {
			logging.SetLevel(level)
		} else {
			logging.Warn("  Invalid LOG_LEVEL %q, keeping %s", name, logging.GetLevel())
		}
	}

	shutdownTimeout, err := time.ParseDuration(v.GetString("shutdown_timeout"))
	if err != nil || shutdownTimeout <= 0 {
		logging.Warn("  Invalid SHUTDOWN_TIMEOUT, using default: 30s")
		shutdownTimeout = 30 * time.Second
	}

	indexInterval, err := time.ParseDuration(v.GetString("index_interval"))
	if err != nil || indexInterval < 0 {
		logging.Warn("  Invalid INDEX_INTERVAL, using default: 30m")
		indexInterval = 30 * time.Minute
	}

	streamTimeout, err := time.ParseDuration(v.GetString("stream_write_timeout"))
	if err != nil || streamTimeout <= 0 {
		logging.Warn("  Invalid STREAM_WRITE_TIMEOUT, using default: 30s")
		streamTimeout = 30 * time.Second
	}

	maxUpload := v.GetInt64("max_upload_bytes")
	if maxUpload <= 0 {
		logging.Warn("  Invalid MAX_UPLOAD_BYTES, using default: 4GiB")
		maxUpload = 4 << 30
	}

	config := &Config{
		UploadDir:       v.GetString("upload_dir"),
		ProcessedDir:    v.GetString("processed_dir"),
		CacheDir:        v.GetString("cache_dir"),
		DatabaseDir:     v.GetString("database_dir"),
		StaticDir:       v.GetString("static_dir"),
		Port:            v.GetString("port"),
		CORSOrigins:     stringList(v, "cors_origins"),
		MaxUploadBytes:  maxUpload,
		Workers:         workers.Resolve(v.GetInt("transcode_workers")),
		FFmpegPath:      v.GetString("ffmpeg_path"),
		ShutdownTimeout: shutdownTimeout,
		LogStaticFiles:  v.GetBool("log_static_files"),
		LogHealthChecks: v.GetBool("log_health_checks"),
		MetricsEnabled:  v.GetBool("metrics_enabled"),
		ConfigFile:      v.ConfigFileUsed(),

		IndexInterval:      indexInterval,
		StreamWriteTimeout: streamTimeout,
		GoMemLimit:         v.GetString("gomemlimit"),
		MemoryLimit:        v.GetInt64("memory_limit"),
		MemoryRatio:        v.GetFloat64("memory_ratio"),
	}

	logging.Info("  UPLOAD_DIR:          %s", config.UploadDir)
	logging.Info("  PROCESSED_DIR:       %s", config.ProcessedDir)
	logging.Info("  CACHE_DIR:           %s", config.CacheDir)
	logging.Info("  DATABASE_DIR:        %s", config.DatabaseDir)
	logging.Info("  STATIC_DIR:          %s", config.StaticDir)
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  CORS_ORIGINS:        %s", strings.Join(config.CORSOrigins, ", "))
	logging.Info("  MAX_UPLOAD_BYTES:    %d", config.MaxUploadBytes)
	logging.Info("  TRANSCODE_WORKERS:   %d", config.Workers)
	logging.Info("  FFMPEG_PATH:         %s", config.FFmpegPath)
	logging.Info("  SHUTDOWN_TIMEOUT:    %v", config.ShutdownTimeout)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  INDEX_INTERVAL:      %v", config.IndexInterval)
	logging.Info("  STREAM_WRITE_TIMEOUT: %v", config.StreamWriteTimeout)
	if config.GoMemLimit != "" {
		logging.Info("  GOMEMLIMIT:          %s", config.GoMemLimit)
	}
	if config.MemoryLimit > 0 {
		logging.Info("  MEMORY_LIMIT:        %d", config.MemoryLimit)
		logging.Info("  MEMORY_RATIO:        %v", config.MemoryRatio)
	}
	logging.Info("  LOG_STATIC_FILES:    %v", config.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	section("DIRECTORY SETUP")

	for _, dir := range []struct {
		name string
		path *string
	}{
		{"upload", &config.UploadDir},
		{"processed", &config.ProcessedDir},
		{"cache", &config.CacheDir},
		{"database", &config.DatabaseDir},
		{"static", &config.StaticDir},
	} {
		abs, err := filepath.Abs(*dir.path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s directory path: %w", dir.name, err)
		}
		*dir.path = abs
		logging.Info("  %-10s directory (absolute): %s", dir.name, abs)
	}

	config.DatabasePath = filepath.Join(config.DatabaseDir, "videos.db")
	config.PosterDir = filepath.Join(config.CacheDir, "posters")

	// Required: uploads, processed output and the database
	for _, dir := range []struct{ name, path string }{
		{"upload", config.UploadDir},
		{"processed", config.ProcessedDir},
		{"database", config.DatabaseDir},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		ok("%s directory is writable", dir.name)
	}

	// Optional: poster cache and static bundle
	config.PostersEnabled = setupOptionalDir(config.PosterDir, "posters")
	if info, err := os.Stat(config.StaticDir); err == nil && info.IsDir() {
		config.StaticEnabled = true
	}

	logging.Info("  Posters: %s, static UI: %s, metrics: %s",
		enabledString(config.PostersEnabled), enabledString(config.StaticEnabled), enabledString(config.MetricsEnabled))

	return config, nil
}

// stringList reads a list value that may be given as a YAML sequence or as
// a comma-separated string.
func stringList(v *viper.Viper, key string) []string {
	var raw []string
	switch value := v.Get(key).(type) {
	case string:
		raw = strings.Split(value, ",")
	default:
		raw = v.GetStringSlice(key)
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
