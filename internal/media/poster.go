package media

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	_ "image/png"

	"github.com/disintegration/imaging"

	"github.com/yrk1n/video-platform/internal/logging"
	"github.com/yrk1n/video-platform/internal/metrics"
	"github.com/yrk1n/video-platform/internal/renditions"
)

// ErrNotReady is returned when the identifier has no playable rendition yet.
var ErrNotReady = errors.New("no playable rendition yet")

// Default poster bounds.
const (
	DefaultPosterWidth  = 480
	DefaultPosterHeight = 270
)

// FrameExtractor returns a single decoded frame from the video at path.
type FrameExtractor func(ctx context.Context, path string) (image.Image, error)

// PosterGenerator renders and caches JPEG posters for processed videos.
type PosterGenerator struct {
	cacheDir      string
	processedRoot string
	width         int
	height        int
	extract       FrameExtractor
	mu            sync.Mutex
}

// NewPosterGenerator creates a generator that reads renditions from
// processedRoot, caches posters in cacheDir and extracts frames with the
// given ffmpeg binary.
func NewPosterGenerator(cacheDir, processedRoot, ffmpegPath string) *PosterGenerator {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		logging.Warn("PosterGenerator: failed to create cache dir: %v", err)
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &PosterGenerator{
		cacheDir:      cacheDir,
		processedRoot: processedRoot,
		width:         DefaultPosterWidth,
		height:        DefaultPosterHeight,
		extract:       ffmpegFrameExtractor(ffmpegPath),
	}
}

// SetFrameExtractor replaces the frame source.
func (p *PosterGenerator) SetFrameExtractor(fn FrameExtractor) {
	p.extract = fn
}

// GetPoster returns the poster for identifier, generating it on a cache
// miss. The cache entry is keyed on the rendition's path and modification
// time, so a re-processed video gets a fresh poster.
func (p *PosterGenerator) GetPoster(ctx context.Context, identifier string) ([]byte, error) {
	source, ok := renditions.Best(p.processedRoot, identifier)
	if !ok {
		metrics.PosterGenerationsTotal.WithLabelValues("not_ready").Inc()
		return nil, ErrNotReady
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("rendition not accessible: %w", err)
	}

	hash := md5.Sum([]byte(fmt.Sprintf("%s|%d|%d", source, info.ModTime().UnixNano(), info.Size())))
	cachePath := filepath.Join(p.cacheDir, fmt.Sprintf("%x.jpg", hash))

	if data, err := os.ReadFile(cachePath); err == nil {
		metrics.PosterCacheHits.Inc()
		logging.Debug("Poster cache hit: %s", identifier)
		return data, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if data, err := os.ReadFile(cachePath); err == nil {
		metrics.PosterCacheHits.Inc()
		return data, nil
	}
	metrics.PosterCacheMisses.Inc()

	start := time.Now()
	data, err := p.render(ctx, source)
	metrics.PosterGenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PosterGenerationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.PosterGenerationsTotal.WithLabelValues("success").Inc()

	tmp := cachePath + ".partial"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logging.Warn("Failed to cache poster %s: %v", cachePath, err)
	} else if err := os.Rename(tmp, cachePath); err != nil {
		logging.Warn("Failed to cache poster %s: %v", cachePath, err)
		os.Remove(tmp)
	} else {
		logging.Debug("Poster cached: %s", cachePath)
	}

	return data, nil
}

func (p *PosterGenerator) render(ctx context.Context, source string) ([]byte, error) {
	img, err := p.extract(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("poster generation failed: %w", err)
	}
	if img == nil {
		return nil, errors.New("poster generation returned nil image")
	}

	poster := imaging.Fit(img, p.width, p.height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, poster, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("failed to encode poster: %w", err)
	}
	return buf.Bytes(), nil
}

// ffmpegFrameExtractor grabs a frame one second in, falling back to the
// first frame for clips shorter than that.
func ffmpegFrameExtractor(binary string) FrameExtractor {
	return func(ctx context.Context, path string) (image.Image, error) {
		logging.Debug("Extracting video frame: %s", path)

		attempts := [][]string{
			{"-hide_banner", "-nostdin", "-ss", "00:00:01", "-i", path, "-frames:v", "1", "-f", "image2pipe", "-vcodec", "png", "-"},
			{"-hide_banner", "-nostdin", "-i", path, "-frames:v", "1", "-f", "image2pipe", "-vcodec", "png", "-"},
		}

		var lastErr error
		for _, args := range attempts {
			var stdout, stderr bytes.Buffer
			cmd := exec.CommandContext(ctx, binary, args...)
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			if err := cmd.Run(); err != nil {
				lastErr = fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
				logging.Debug("Frame extraction attempt failed for %s: %v", path, lastErr)
				continue
			}
			if stdout.Len() == 0 {
				lastErr = fmt.Errorf("ffmpeg produced no output for %s", path)
				continue
			}

			img, _, err := image.Decode(&stdout)
			if err != nil {
				return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
			}
			return img, nil
		}
		return nil, lastErr
	}
}
