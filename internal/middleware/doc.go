// Package middleware provides HTTP middleware for the video platform.
//
// Logger writes one W3C Extended Log Format line per request, preceded once
// by a #Fields directive. Handlers that create a transcoding job set the
// X-Job-Id response header ([JobIDHeader]); the logger records it in the
// x-job-id column so the request can be matched to its pipeline log lines.
//
// Range requests against /uploads/ and /processed/ are frequent during
// playback and are only logged when LogStaticFiles is set. Health probes are
// logged unless LogHealthChecks is cleared.
//
// Metrics records Prometheus request counters and latency labelled by the
// gorilla/mux route template rather than the raw path.
package middleware
