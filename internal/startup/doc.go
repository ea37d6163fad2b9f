// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] reads configuration with viper from, in increasing
// precedence, built-in defaults, an optional config.yaml in the working
// directory or ./config, and environment variables:
//
//   - UPLOAD_DIR: Where accepted uploads are stored (default: wwwroot/uploads)
//   - PROCESSED_DIR: Root of per-job output directories (default: wwwroot/processed)
//   - CACHE_DIR: Poster cache root (default: cache)
//   - DATABASE_DIR: Directory holding videos.db (default: data)
//   - STATIC_DIR: Optional frontend bundle served at / (default: static)
//   - PORT: HTTP server port (default: 5253)
//   - CORS_ORIGINS: Comma-separated allowed origins (default: http://localhost:5173)
//   - MAX_UPLOAD_BYTES: Request body limit for uploads (default: 4GiB)
//   - TRANSCODE_WORKERS: Concurrent pipelines; 0 means max(1, GOMAXPROCS-1)
//   - FFMPEG_PATH: Engine binary (default: ffmpeg)
//   - SHUTDOWN_TIMEOUT: Drain budget for in-flight pipelines (default: 30s)
//   - METRICS_ENABLED: Serve /metrics (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - INDEX_INTERVAL: Upload directory reconciliation period; 0 runs it only at startup (default: 30m)
//   - STREAM_WRITE_TIMEOUT: Idle write deadline for /uploads and /processed responses (default: 30s)
//   - GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO: Heap budget, see package memory
//
// # Lifecycle Logging
//
// The Log* helpers print the sectioned startup banner and shutdown steps
// shared by main.
package startup
