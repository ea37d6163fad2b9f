package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type countingObserver struct {
	mu        sync.Mutex
	attempts  int
	successes int
	failures  int
	stale     int
	durations int
	volumes   []string
}

func (o *countingObserver) ObserveRetryAttempt(_, volume string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts++
	o.volumes = append(o.volumes, volume)
}

func (o *countingObserver) ObserveRetrySuccess(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.successes++
}

func (o *countingObserver) ObserveRetryFailure(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func (o *countingObserver) ObserveRetryDuration(string, string, float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.durations++
}

func (o *countingObserver) ObserveStaleError(string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stale++
}

func installObserver(t *testing.T) *countingObserver {
	t.Helper()
	obs := &countingObserver{}
	prev := defaultObserver
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(prev) })
	return obs
}

func fastConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT", syscall.ENOENT, false},
		{"not exist", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolverResolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"uploads":   "/srv/wwwroot/uploads",
		"processed": "/srv/wwwroot/processed",
		"wwwroot":   "/srv/wwwroot",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/srv/wwwroot/uploads/clip.mp4", "uploads"},
		{"/srv/wwwroot/uploads", "uploads"},
		{"/srv/wwwroot/processed/clip/720p.mp4", "processed"},
		{"/srv/wwwroot/index.html", "wwwroot"},
		{"/srv/wwwroot/uploadsX/clip.mp4", "wwwroot"},
		{"/tmp/other", "unknown"},
	}
	for _, tt := range tests {
		if got := vr.Resolve(tt.path); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}

	var nilResolver *VolumeResolver
	if got := nilResolver.Resolve("/srv/wwwroot"); got != "unknown" {
		t.Errorf("nil resolver: got %q, want unknown", got)
	}
}

func TestVolumeResolverIgnoresUnsetDirectories(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{"cache": "", "uploads": "/srv/uploads"})
	if got := vr.Resolve("/srv/uploads/a.mkv"); got != "uploads" {
		t.Errorf("Expected uploads, got %q", got)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if got := vr.Resolve(wd); got != "unknown" {
		t.Errorf("Empty directory must not claim the working directory, got %q", got)
	}
}

func TestResolveVolumeUsesConfigThenDefault(t *testing.T) {
	prev := defaultResolver
	t.Cleanup(func() { SetDefaultVolumeResolver(prev) })

	SetDefaultVolumeResolver(NewVolumeResolver(map[string]string{"cache": "/cache"}))

	config := DefaultRetryConfig()
	if got := config.resolveVolume("/cache/posters/a.jpg"); got != "cache" {
		t.Errorf("Expected default resolver label, got %q", got)
	}

	config.VolumeResolver = NewVolumeResolver(map[string]string{"override": "/cache"})
	if got := config.resolveVolume("/cache/posters/a.jpg"); got != "override" {
		t.Errorf("Expected config resolver label, got %q", got)
	}
}

func TestWithRetryRecoversFromStaleHandle(t *testing.T) {
	obs := installObserver(t)

	calls := 0
	got, err := withRetry("open", "/x", fastConfig(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}
		}
		return "ok", nil
	})

	if err != nil || got != "ok" {
		t.Fatalf("Expected success after retries, got %q, %v", got, err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if obs.stale != 2 || obs.attempts != 2 || obs.successes != 1 || obs.failures != 0 || obs.durations != 1 {
		t.Errorf("Unexpected observations: %+v", obs)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	obs := installObserver(t)

	calls := 0
	_, err := withRetry("stat", "/x", fastConfig(), func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})

	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("Expected ESTALE, got %v", err)
	}
	if calls != 4 {
		t.Errorf("Expected 1 call plus 3 retries, got %d", calls)
	}
	if obs.failures != 1 || obs.stale != 4 || obs.attempts != 3 {
		t.Errorf("Unexpected observations: %+v", obs)
	}
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	obs := installObserver(t)

	calls := 0
	_, err := withRetry("stat", "/x", fastConfig(), func() (int, error) {
		calls++
		return 0, os.ErrNotExist
	})

	if !errors.Is(err, os.ErrNotExist) || calls != 1 {
		t.Errorf("Expected a single failing call, got %d calls, %v", calls, err)
	}
	if obs.attempts != 0 || obs.stale != 0 {
		t.Errorf("Expected no retry observations, got %+v", obs)
	}
}

func TestOperationsSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	config := DefaultRetryConfig()

	info, err := StatWithRetry(path, config)
	if err != nil || info.Size() != 5 {
		t.Errorf("StatWithRetry: got %v, %v", info, err)
	}

	f, err := OpenWithRetry(path, config)
	if err != nil {
		t.Fatalf("OpenWithRetry failed: %v", err)
	}
	f.Close()

	entries, err := ReadDirWithRetry(dir, config)
	if err != nil || len(entries) != 1 {
		t.Errorf("ReadDirWithRetry: got %d entries, %v", len(entries), err)
	}

	moved := filepath.Join(dir, "moved.mp4")
	if err := RenameWithRetry(path, moved, config); err != nil {
		t.Fatalf("RenameWithRetry failed: %v", err)
	}
	if _, err := os.Stat(moved); err != nil {
		t.Errorf("Expected renamed file: %v", err)
	}
}

func TestOperationsNotExist(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	config := DefaultRetryConfig()

	if _, err := StatWithRetry(missing, config); !os.IsNotExist(err) {
		t.Errorf("StatWithRetry: expected not-exist, got %v", err)
	}
	if _, err := OpenWithRetry(missing, config); !os.IsNotExist(err) {
		t.Errorf("OpenWithRetry: expected not-exist, got %v", err)
	}
	if _, err := ReadDirWithRetry(missing, config); !os.IsNotExist(err) {
		t.Errorf("ReadDirWithRetry: expected not-exist, got %v", err)
	}
	if err := RenameWithRetry(missing, missing+".b", config); !os.IsNotExist(err) {
		t.Errorf("RenameWithRetry: expected not-exist, got %v", err)
	}
}
