package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yrk1n/video-platform/internal/database"
	"github.com/yrk1n/video-platform/internal/filesystem"
	"github.com/yrk1n/video-platform/internal/logging"
	"github.com/yrk1n/video-platform/internal/mediatypes"
	"github.com/yrk1n/video-platform/internal/metrics"
)

// ErrIndexInProgress is returned by Index when another run is active.
var ErrIndexInProgress = errors.New("index already in progress")

// Store is the metadata storage the indexer reconciles.
// *database.Database implements it.
type Store interface {
	ListVideos(ctx context.Context) ([]database.Video, error)
	UpsertVideo(ctx context.Context, v *database.Video) error
	DeleteVideo(ctx context.Context, fileName string) error
}

// Result summarizes one index run.
type Result struct {
	Added    int
	Updated  int
	Removed  int
	Total    int
	Duration time.Duration
}

// Indexer reconciles the upload directory with stored metadata.
type Indexer struct {
	store     Store
	uploadDir string
	interval  time.Duration

	mu            sync.Mutex
	isIndexing    bool
	lastIndexTime time.Time
	lastResult    Result

	stopped  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates an Indexer. An interval of 0 disables periodic runs.
func New(store Store, uploadDir string, interval time.Duration) *Indexer {
	return &Indexer{
		store:     store,
		uploadDir: uploadDir,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start runs an initial index in the background and schedules periodic runs.
func (idx *Indexer) Start() {
	idx.spawn(func() {
		logging.Info("Starting initial library index in background...")
		idx.runLogged("initial")
	})

	if idx.interval > 0 {
		idx.spawn(idx.periodicIndex)
	}
}

// Stop ends periodic runs, cancels a run in progress and waits for it.
// Safe to call more than once.
func (idx *Indexer) Stop() {
	idx.mu.Lock()
	if !idx.stopped {
		idx.stopped = true
		close(idx.stopChan)
	}
	idx.mu.Unlock()
	idx.wg.Wait()
}

// spawn runs fn on a tracked goroutine unless the indexer is stopped.
func (idx *Indexer) spawn(fn func()) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.stopped {
		return
	}
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		fn()
	}()
}

func (idx *Indexer) periodicIndex() {
	ticker := time.NewTicker(idx.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic re-index triggered")
			idx.runLogged("periodic")
		case <-idx.stopChan:
			return
		}
	}
}

// TriggerIndex starts a run in the background. It is a no-op after Stop.
func (idx *Indexer) TriggerIndex() {
	idx.spawn(func() { idx.runLogged("manual") })
}

func (idx *Indexer) runLogged(kind string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-idx.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := idx.Index(ctx); err != nil {
		if errors.Is(err, ErrIndexInProgress) {
			logging.Debug("Skipping %s re-index: %v", kind, err)
			return
		}
		logging.Error("%s re-index failed: %v", kind, err)
	}
}

// Index performs one reconciliation pass.
func (idx *Indexer) Index(ctx context.Context) (Result, error) {
	if !idx.tryStartIndexing() {
		return Result{}, ErrIndexInProgress
	}
	defer idx.finishIndexing()

	start := time.Now()
	result, err := idx.reconcile(ctx)
	result.Duration = time.Since(start)

	metrics.LibrarySyncDuration.Observe(result.Duration.Seconds())
	if err != nil {
		metrics.LibrarySyncRunsTotal.WithLabelValues("error").Inc()
		return result, err
	}

	metrics.LibrarySyncRunsTotal.WithLabelValues("success").Inc()
	metrics.LibrarySyncChangesTotal.WithLabelValues("added").Add(float64(result.Added))
	metrics.LibrarySyncChangesTotal.WithLabelValues("removed").Add(float64(result.Removed))
	metrics.LibrarySyncLastRun.Set(float64(time.Now().Unix()))

	idx.mu.Lock()
	idx.lastIndexTime = time.Now()
	idx.lastResult = result
	idx.mu.Unlock()

	if result.Added+result.Updated+result.Removed > 0 {
		logging.Info("Library index: %d videos (%d added, %d updated, %d removed) in %v",
			result.Total, result.Added, result.Updated, result.Removed, result.Duration.Round(time.Millisecond))
	} else {
		logging.Debug("Library index: %d videos, no changes (%v)", result.Total, result.Duration.Round(time.Millisecond))
	}
	return result, nil
}

func (idx *Indexer) reconcile(ctx context.Context) (Result, error) {
	var result Result

	entries, err := filesystem.ReadDirWithRetry(idx.uploadDir, filesystem.DefaultRetryConfig())
	if err != nil {
		return result, fmt.Errorf("read upload directory: %w", err)
	}

	stored, err := idx.store.ListVideos(ctx)
	if err != nil {
		return result, fmt.Errorf("list stored videos: %w", err)
	}
	known := make(map[string]database.Video, len(stored))
	for _, v := range stored {
		known[v.FileName] = v
	}

	onDisk := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !mediatypes.IsVideo(name) {
			continue
		}
		onDisk[name] = true
		info, err := entry.Info()
		if err != nil {
			// Changed between ReadDir and Info; the next run settles it.
			logging.Debug("Skipping %s: %v", name, err)
			continue
		}
		result.Total++

		existing, ok := known[name]
		switch {
		case !ok:
			v := &database.Video{
				FileName:   name,
				Identifier: mediatypes.Identifier(name),
				FilePath:   filepath.Join(idx.uploadDir, name),
				Size:       info.Size(),
				UploadedAt: info.ModTime(),
			}
			if err := idx.store.UpsertVideo(ctx, v); err != nil {
				return result, err
			}
			logging.Debug("Indexed untracked upload %s", name)
			result.Added++
		case existing.Size != info.Size():
			existing.Size = info.Size()
			existing.FilePath = filepath.Join(idx.uploadDir, name)
			if err := idx.store.UpsertVideo(ctx, &existing); err != nil {
				return result, err
			}
			result.Updated++
		}
	}

	for name := range known {
		if onDisk[name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := idx.store.DeleteVideo(ctx, name); err != nil && !errors.Is(err, database.ErrNotFound) {
			return result, err
		}
		logging.Debug("Removed metadata for missing upload %s", name)
		result.Removed++
	}

	return result, nil
}

func (idx *Indexer) tryStartIndexing() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

func (idx *Indexer) finishIndexing() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.isIndexing = false
}

// IsIndexing reports whether a run is in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.isIndexing
}

// LastIndexTime returns when the last successful run finished.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.lastIndexTime
}

// LastResult returns the summary of the last successful run.
func (idx *Indexer) LastResult() Result {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.lastResult
}
