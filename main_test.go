package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yrk1n/video-platform/internal/database"
	"github.com/yrk1n/video-platform/internal/handlers"
	"github.com/yrk1n/video-platform/internal/indexer"
	"github.com/yrk1n/video-platform/internal/jobs"
	"github.com/yrk1n/video-platform/internal/media"
	"github.com/yrk1n/video-platform/internal/memory"
	"github.com/yrk1n/video-platform/internal/metrics"
	"github.com/yrk1n/video-platform/internal/startup"
)

func testConfig(t *testing.T) *startup.Config {
	t.Helper()
	root := t.TempDir()
	config := &startup.Config{
		UploadDir:       filepath.Join(root, "uploads"),
		ProcessedDir:    filepath.Join(root, "processed"),
		PosterDir:       filepath.Join(root, "cache", "posters"),
		StaticDir:       filepath.Join(root, "static"),
		DatabasePath:    filepath.Join(root, "videos.db"),
		MaxUploadBytes:  1 << 20,
		Workers:         2,
		FFmpegPath:      filepath.Join(root, "no-ffmpeg"),
		ShutdownTimeout: 5 * time.Second,
		MetricsEnabled:  true,

		StreamWriteTimeout: 30 * time.Second,
	}
	for _, dir := range []string{config.UploadDir, config.ProcessedDir, config.StaticDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return config
}

func openTestDB(t *testing.T, config *startup.Config) *database.Database {
	t.Helper()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	return db
}

func TestNewDispatcherCapacity(t *testing.T) {
	config := testConfig(t)
	d := newDispatcher(config)

	if d.Capacity() != config.Workers {
		t.Errorf("Expected capacity %d, got %d", config.Workers, d.Capacity())
	}
	if d.Running() {
		t.Error("Expected dispatcher to be idle before Run")
	}
}

func TestSetupRouter(t *testing.T) {
	config := testConfig(t)
	config.StaticEnabled = true
	if err := os.WriteFile(filepath.Join(config.StaticDir, "index.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(config.UploadDir, "clip.mp4"), []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	db := openTestDB(t, config)
	t.Cleanup(func() { db.Close() })

	d := newDispatcher(config)
	posters := media.NewPosterGenerator(config.PosterDir, config.ProcessedDir, config.FFmpegPath)
	router := setupRouter(handlers.New(db, d, posters, config), config)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{"GET", "/livez", http.StatusOK},
		{"HEAD", "/livez", http.StatusOK},
		{"GET", "/readyz", http.StatusServiceUnavailable},
		{"GET", "/version", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/api/video/list", http.StatusOK},
		{"GET", "/api/video/clip", http.StatusOK},
		{"GET", "/api/video/clip/poster", http.StatusNotFound},
		{"POST", "/api/video/upload", http.StatusBadRequest},
		{"POST", "/api/video/reindex", http.StatusServiceUnavailable},
		{"GET", "/uploads/clip.mp4", http.StatusOK},
		{"GET", "/processed/clip/native.mp4", http.StatusNotFound},
		{"GET", "/", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, http.NoBody))
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestFileServerContentType(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"clip.mkv", "clip.m2ts", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h := fileServer(dir, "uploads", 30*time.Second)

	tests := []struct {
		path string
		want string
	}{
		{"/clip.mkv", "video/x-matroska"},
		{"/clip.m2ts", "video/mp2t"},
		{"/notes.txt", "text/plain; charset=utf-8"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", tt.path, http.NoBody))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.path, w.Code)
		}
		if got := w.Header().Get("Content-Type"); got != tt.want {
			t.Errorf("%s: expected Content-Type %q, got %q", tt.path, tt.want, got)
		}
	}
}

func TestFileServerHidesPartialsAndListings(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "clip")
	if err := os.MkdirAll(clip, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{
		"native.mp4":          "complete",
		".native.mp4.partial": "half-written",
		".upload-123":         "incoming",
	} {
		if err := os.WriteFile(filepath.Join(clip, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h := http.StripPrefix("/processed/", fileServer(dir, "processed", 30*time.Second))

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/processed/clip/native.mp4", http.StatusOK},
		{"/processed/clip/.native.mp4.partial", http.StatusNotFound},
		{"/processed/clip/.upload-123", http.StatusNotFound},
		{"/processed/clip/", http.StatusNotFound},
		{"/processed/", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("GET", tt.path, http.NoBody))
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if strings.Contains(w.Body.String(), "half-written") || strings.Contains(w.Body.String(), ".partial") {
				t.Errorf("Response leaked an in-progress artifact: %q", w.Body.String())
			}
		})
	}
}

func TestServable(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"clip/720p.mp4", true},
		{"holiday.mkv", true},
		{"", false},
		{"clip/", false},
		{"clip/.720p.mp4.partial", false},
		{".upload-42", false},
		{".hidden/native.mp4", false},
	}
	for _, tt := range tests {
		if got := servable(tt.path); got != tt.want {
			t.Errorf("servable(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSetupRouterMetricsDisabled(t *testing.T) {
	config := testConfig(t)
	config.MetricsEnabled = false

	db := openTestDB(t, config)
	t.Cleanup(func() { db.Close() })

	d := newDispatcher(config)
	posters := media.NewPosterGenerator(config.PosterDir, config.ProcessedDir, config.FFmpegPath)
	router := setupRouter(handlers.New(db, d, posters, config), config)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", http.NoBody))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected /metrics to be unmounted, got status %d", w.Code)
	}
}

func TestShutdownDropsQueuedJobsAndClosesDatabase(t *testing.T) {
	config := testConfig(t)
	db := openTestDB(t, config)
	d := newDispatcher(config)

	// Queued before Run starts, so Close sees them undispatched.
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		if _, err := d.Submit(filepath.Join(config.UploadDir, name), name); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	done := make(chan struct{})
	close(done)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		shutdown(shutdownDeps{
			server:       &http.Server{},
			dispatcher:   d,
			stopDispatch: stopDispatch,
			dispatchDone: done,
			monitor:      memory.NewMonitor(memory.DefaultConfig()),
			library:      indexer.New(db, config.UploadDir, 0),
			collector:    metrics.NewCollector(db, config.DatabasePath, time.Hour),
			db:           db,
			timeout:      config.ShutdownTimeout,
		})
	}()

	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown did not return")
	}

	if dispatchCtx.Err() == nil {
		t.Error("Expected dispatcher context to be cancelled")
	}
	if d.QueueDepth() != 0 {
		t.Errorf("Expected queue to be emptied, got depth %d", d.QueueDepth())
	}
	if _, err := d.Submit("x.mp4", "x.mp4"); !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("Expected submissions to be rejected after shutdown, got %v", err)
	}
	if _, err := db.ListVideos(context.Background()); err == nil {
		t.Error("Expected database to be closed")
	}
}
