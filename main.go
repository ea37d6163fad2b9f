package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/yrk1n/video-platform/internal/database"
	"github.com/yrk1n/video-platform/internal/dispatcher"
	"github.com/yrk1n/video-platform/internal/filesystem"
	"github.com/yrk1n/video-platform/internal/handlers"
	"github.com/yrk1n/video-platform/internal/indexer"
	"github.com/yrk1n/video-platform/internal/jobs"
	"github.com/yrk1n/video-platform/internal/limiter"
	"github.com/yrk1n/video-platform/internal/logging"
	"github.com/yrk1n/video-platform/internal/media"
	"github.com/yrk1n/video-platform/internal/mediatypes"
	"github.com/yrk1n/video-platform/internal/memory"
	"github.com/yrk1n/video-platform/internal/metrics"
	"github.com/yrk1n/video-platform/internal/middleware"
	"github.com/yrk1n/video-platform/internal/pipeline"
	"github.com/yrk1n/video-platform/internal/startup"
	"github.com/yrk1n/video-platform/internal/streaming"
	"github.com/yrk1n/video-platform/internal/transcoder"
)

const serviceName = "VideoPlatform"

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	memory.Configure(memory.Settings{
		GoMemLimit:     config.GoMemLimit,
		ContainerLimit: config.MemoryLimit,
		Ratio:          config.MemoryRatio,
	})

	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, runtime.Version()).Set(1)

	// Label filesystem retries by volume
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"uploads":   config.UploadDir,
		"processed": config.ProcessedDir,
		"cache":     config.CacheDir,
		"database":  config.DatabaseDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	// Initialize transcoder and dispatcher
	startup.LogTranscoderInit(config.FFmpegPath, config.Workers)
	d := newDispatcher(config)

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	d.SetAdmissionGate(monitor)

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		if err := d.Run(dispatchCtx); err != nil {
			logging.Error("Dispatcher stopped: %v", err)
		}
	}()
	startup.LogDispatcherStarted()

	// Start metrics collector
	collector := metrics.NewCollector(db, config.DatabasePath, time.Minute)
	collector.Start()

	// Initialize handlers
	posters := media.NewPosterGenerator(config.PosterDir, config.ProcessedDir, config.FFmpegPath)
	h := handlers.New(db, d, posters, config)

	// Reconcile the upload directory with stored metadata
	library := indexer.New(db, config.UploadDir, config.IndexInterval)
	library.Start()
	h.SetLibraryIndexer(library)

	// Setup router
	router := setupRouter(h, config)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig, serviceName)(router)

	// CORS for the presentation origin, then panic recovery outermost
	handler = gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(config.CORSOrigins),
		gorillahandlers.AllowedMethods([]string{"GET", "HEAD", "POST", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type"}),
		gorillahandlers.ExposedHeaders([]string{middleware.JobIDHeader}),
	)(handler)
	handler = gorillahandlers.RecoveryHandler(gorillahandlers.RecoveryLogger(recoveryLogger{}))(handler)

	// Create server
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // uploads and video playback may stream for a long time
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		CORSOrigins:     config.CORSOrigins,
		StartupDuration: time.Since(startTime),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		startup.LogShutdownInitiated(sig.String())
	case err := <-serverErr:
		logging.Error("Server error: %v", err)
		startup.LogShutdownInitiated("server error")
	}

	shutdown(shutdownDeps{
		server:       srv,
		dispatcher:   d,
		stopDispatch: stopDispatch,
		dispatchDone: dispatchDone,
		monitor:      monitor,
		library:      library,
		collector:    collector,
		db:           db,
		timeout:      config.ShutdownTimeout,
	})
}

// newDispatcher wires the queue, limiter, engine and pipeline together and
// mirrors their state into Prometheus.
func newDispatcher(config *startup.Config) *dispatcher.Dispatcher {
	queue := jobs.NewQueue()
	queue.OnDepthChange(func(depth int) {
		metrics.QueueDepth.Set(float64(depth))
	})

	lim := limiter.New(config.Workers)
	lim.OnChange(func(inUse int) {
		metrics.PipelinesInFlight.Set(float64(inUse))
	})
	metrics.PipelineCapacity.Set(float64(lim.Capacity()))

	observer := metrics.NewJobObserver()
	engine := metrics.InstrumentEngine(transcoder.New(config.FFmpegPath))
	p := pipeline.New(config.ProcessedDir, engine, observer)

	return dispatcher.New(queue, lim, p, observer)
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	if config.MetricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	// Video API
	api := r.PathPrefix("/api/video").Subrouter()
	api.Use(gorillahandlers.CompressHandler)
	api.HandleFunc("/upload", h.UploadVideo).Methods("POST")
	api.HandleFunc("/reindex", h.Reindex).Methods("POST")
	api.HandleFunc("/list", h.ListVideos).Methods("GET")
	api.HandleFunc("/{identifier}/poster", h.GetPoster).Methods("GET")
	api.HandleFunc("/{identifier}", h.GetVideo).Methods("GET")

	// Uploaded sources and processed renditions
	r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", fileServer(config.UploadDir, "uploads", config.StreamWriteTimeout)))
	r.PathPrefix("/processed/").Handler(http.StripPrefix("/processed/", fileServer(config.ProcessedDir, "processed", config.StreamWriteTimeout)))

	// Static files
	if config.StaticEnabled {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(config.StaticDir)))
	}

	return r
}

// fileServer serves the regular files in dir with a per-write deadline so
// stalled players do not pin connections. Directory listings and dot-files,
// such as in-flight .partial artifacts and .upload-* temp files, are 404.
func fileServer(dir, volume string, writeTimeout time.Duration) http.Handler {
	files := http.FileServer(http.Dir(dir))
	// mime.TypeByExtension misses containers such as .mkv on slim images
	typed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !servable(r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		if ext := mediatypes.Ext(r.URL.Path); ext != "" {
			if ct := mediatypes.GetMimeType(ext); ct != "application/octet-stream" {
				w.Header().Set("Content-Type", ct)
			}
		}
		files.ServeHTTP(w, r)
	})
	return streaming.Handler(typed, streaming.Config{
		WriteTimeout: writeTimeout,
		OnTimeout: func(*http.Request) {
			metrics.StreamWriteTimeouts.WithLabelValues(volume).Inc()
		},
	})
}

// servable reports whether a path below a file server root names a visible
// file rather than a directory or hidden entry.
func servable(path string) bool {
	if path == "" || strings.HasSuffix(path, "/") {
		return false
	}
	for _, segment := range strings.Split(path, "/") {
		if strings.HasPrefix(segment, ".") {
			return false
		}
	}
	return true
}

type shutdownDeps struct {
	server       *http.Server
	dispatcher   *dispatcher.Dispatcher
	stopDispatch context.CancelFunc
	dispatchDone <-chan struct{}
	monitor      *memory.Monitor
	library      *indexer.Indexer
	collector    *metrics.Collector
	db           *database.Database
	timeout      time.Duration
}

// shutdown stops intake, drops queued jobs and gives in-flight pipelines
// until the timeout to finish. Pipelines are never cancelled.
func shutdown(deps shutdownDeps) {
	ctx, cancel := context.WithTimeout(context.Background(), deps.timeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := deps.server.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping dispatcher")
	deps.stopDispatch()
	<-deps.dispatchDone
	startup.LogShutdownJobsDropped(len(deps.dispatcher.Close()))
	startup.LogShutdownStepComplete("Dispatcher stopped")

	startup.LogShutdownStep("Draining in-flight pipelines")
	if err := deps.dispatcher.Drain(ctx); err != nil {
		logging.Warn("%d pipelines still running at shutdown; their partial outputs remain hidden", deps.dispatcher.InFlight())
	} else {
		startup.LogShutdownStepComplete("Pipelines drained")
	}

	deps.monitor.Stop()

	startup.LogShutdownStep("Stopping library indexer")
	deps.library.Stop()
	startup.LogShutdownStepComplete("Library indexer stopped")

	deps.collector.Stop()

	startup.LogShutdownStep("Closing database")
	if err := deps.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}

// recoveryLogger routes recovered handler panics to the application log.
type recoveryLogger struct{}

func (recoveryLogger) Println(args ...interface{}) {
	logging.Error("HTTP handler panic: %v", args)
}
