package memory

import (
	"math"
	"runtime/debug"
	"strconv"

	"github.com/yrk1n/video-platform/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap when no ratio is configured.
const DefaultMemoryRatio = 0.75

// Settings are the inputs to Configure.
type Settings struct {
	// GoMemLimit is the raw GOMEMLIMIT value, if any.
	GoMemLimit string
	// ContainerLimit is the container memory limit in bytes. 0 means unknown.
	ContainerLimit int64
	// Ratio of ContainerLimit for the Go heap. Out of range values fall back
	// to DefaultMemoryRatio.
	Ratio float64
}

// ConfigResult describes what Configure did.
type ConfigResult struct {
	Configured     bool
	Source         string // "GOMEMLIMIT", "MEMORY_LIMIT" or "none"
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// setMemoryLimit is swapped in tests.
var setMemoryLimit = debug.SetMemoryLimit

// Configure applies s to the runtime. Call it before significant allocations.
func Configure(s Settings) ConfigResult {
	if s.GoMemLimit != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := setMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", s.GoMemLimit)
		return result
	}

	if s.ContainerLimit <= 0 {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return ConfigResult{Source: "none"}
	}

	ratio := s.Ratio
	if ratio <= 0 || ratio > 1 {
		if ratio != 0 {
			logging.Warn("MEMORY_RATIO %.2f out of range (0.0-1.0), using default %.2f", ratio, DefaultMemoryRatio)
		}
		ratio = DefaultMemoryRatio
	}

	goMemLimit := int64(float64(s.ContainerLimit) * ratio)
	setMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		FormatBytes(goMemLimit), ratio*100, FormatBytes(s.ContainerLimit))

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: s.ContainerLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

// FormatBytes renders b with binary units, e.g. "1.5 GiB".
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
