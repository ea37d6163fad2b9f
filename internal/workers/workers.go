package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv names the environment variable that pins the transcode pool size.
const OverrideEnv = "TRANSCODE_WORKERS"

// Count returns a worker count derived from the CPUs available to the process.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// reserve is subtracted from the available CPUs before anything else, so a
// value of 1 leaves one CPU for the host process. The result is never below 1.
// The limit parameter caps the worker count; use 0 for no limit.
//
// A positive TRANSCODE_WORKERS value replaces the calculation (still capped by limit).
func Count(reserve, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
	available := runtime.GOMAXPROCS(0)

	workers := available - reserve

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForTranscode returns the default number of concurrent transcode pipelines:
// max(1, available CPUs - 1).
func ForTranscode() int {
	return Count(1, 0)
}

// Resolve returns configured when it is positive and ForTranscode otherwise.
func Resolve(configured int) int {
	if configured > 0 {
		return configured
	}
	return ForTranscode()
}
