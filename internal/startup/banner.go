package startup

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/yrk1n/video-platform/internal/logging"
	"github.com/yrk1n/video-platform/internal/transcoder"
)

const rule = "------------------------------------------------------------"

func section(title string, args ...interface{}) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(title, args...)
	logging.Info(rule)
}

func ok(format string, args ...interface{}) {
	logging.Info("  [OK] "+format, args...)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func printBanner() {
	fmt.Println(`
` + rule + `
 _   ___    __            ___  __     __  ___
| | / (_)__/ /__ ___     / _ \/ /__ _/ /_/ _/__  ______ _
| |/ / / _  / -_) _ \   / ___/ / _ '/ __/ _/ _ \/ __/  ' \
|___/_/\_,_/\__/\___/  /_/  /_/\_,_/\__/_/ \___/_/ /_/_/_/

` + rule)
	logging.Info("  Version:    %s (%s, built %s)", Version, Commit, BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	procs := runtime.GOMAXPROCS(0)
	logging.Info("  Go %s on %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if procs < runtime.NumCPU() {
		logging.Info("  CPUs:            %d (GOMAXPROCS %d, container limit)", runtime.NumCPU(), procs)
	} else {
		logging.Info("  CPUs:            %d", runtime.NumCPU())
	}
	if wd, err := os.Getwd(); err == nil {
		logging.Debug("  Working dir:     %s", wd)
	}
}

// LogDatabaseInit reports how long opening and migrating the database took.
func LogDatabaseInit(duration time.Duration) {
	section("DATABASE")
	ok("Database ready in %v", duration.Round(time.Millisecond))
}

// LogTranscoderInit logs the pipeline slot count and probes the engine
// binary. A missing engine is not fatal; jobs fail at their first rendering
// stage instead.
func LogTranscoderInit(ffmpegPath string, capacity int) {
	section("TRANSCODER")
	logging.Info("  Pipeline slots:  %d (GOMAXPROCS %d)", capacity, runtime.GOMAXPROCS(0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	version, err := transcoder.New(ffmpegPath).CheckAvailable(ctx)
	if err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Uploads will be accepted but processing will fail")
		return
	}
	ok("FFmpeg is available")
	logging.Debug("  FFmpeg version: %s", version)
}

// LogDispatcherStarted logs successful dispatcher start
func LogDispatcherStarted() {
	ok("Dispatcher started")
}

// ServerConfig holds what LogServerStarted reports.
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	CORSOrigins     []string
	StartupDuration time.Duration
}

// LogServerStarted logs the listening endpoints.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED in %v", config.StartupDuration.Round(time.Millisecond))
	logging.Info("  API:             http://0.0.0.0:%s/api/video", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", config.Port)
	}
	logging.Info("  Allowed origins: %s", strings.Join(config.CORSOrigins, ", "))
	logging.Info(rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received %s)", signal)
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	ok("%s", step)
}

// LogShutdownJobsDropped reports queued jobs that will not run.
func LogShutdownJobsDropped(count int) {
	if count == 0 {
		ok("No queued jobs dropped")
		return
	}
	logging.Warn("  %d queued jobs dropped; re-upload to process them", count)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	ok("Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}
