package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yrk1n/video-platform/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Pipeline state
	DispatcherRunning bool `json:"dispatcherRunning"`
	QueueDepth        int  `json:"queueDepth"`
	InFlight          int  `json:"inFlight"`
	Capacity          int  `json:"capacity"`

	// Library index state
	Indexing    bool       `json:"indexing"`
	LastIndexed *time.Time `json:"lastIndexed,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalVideos int   `json:"totalVideos"`
	TotalBytes  int64 `json:"totalBytes"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	stats := h.db.GetStats()
	running := h.submitter.Running()

	response := HealthResponse{
		Ready:             running,
		Version:           startup.Version,
		Uptime:            time.Since(h.startTime).Round(time.Second).String(),
		DispatcherRunning: running,
		QueueDepth:        h.submitter.QueueDepth(),
		InFlight:          h.submitter.InFlight(),
		Capacity:          h.submitter.Capacity(),
		GoVersion:         runtime.Version(),
		NumCPU:            runtime.NumCPU(),
		NumGoroutine:      runtime.NumGoroutine(),
		TotalVideos:       stats.TotalVideos,
		TotalBytes:        stats.TotalBytes,
	}

	if h.library != nil {
		response.Indexing = h.library.IsIndexing()
		if last := h.library.LastIndexTime(); !last.IsZero() {
			response.LastIndexed = &last
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if running {
		response.Status = statusHealthy
		w.WriteHeader(http.StatusOK)
	} else {
		response.Status = statusStarting
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only while the dispatcher is admitting jobs
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.submitter.Running() {
		writeJSONStatus(w, http.StatusOK, "ready")
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
}

// GetVersion returns build information.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}

// MetricsHandler serves the default registry. A collector that fails does
// not hide the others.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorHandling: promhttp.ContinueOnError,
		}),
	)
}
