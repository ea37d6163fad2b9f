// Package logging provides the leveled logger used across the video platform.
//
// Levels, lowest first:
//   - DEBUG: per-stage pipeline detail, ffmpeg command lines
//   - INFO: job admission and completion, startup sections
//   - WARN: recoverable problems (dropped jobs, cache write failures)
//   - ERROR: failed stages and failed requests
//   - FATAL: unrecoverable startup errors
//
// The level is read once from DEBUG or LOG_LEVEL and may be overridden with
// SetLevel after configuration is loaded. WithPrefix returns a logger that
// tags each line, which the dispatcher uses to correlate lines by job.
package logging
