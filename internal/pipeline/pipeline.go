package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/yrk1n/video-platform/internal/filesystem"
	"github.com/yrk1n/video-platform/internal/jobs"
	"github.com/yrk1n/video-platform/internal/logging"
	"github.com/yrk1n/video-platform/internal/mediatypes"
	"github.com/yrk1n/video-platform/internal/renditions"
	"github.com/yrk1n/video-platform/internal/transcoder"
)

// Scaled rendition target.
const (
	ScaledWidth  = 1280
	ScaledHeight = 720
	ScaledCRF    = 23
)

// Observer receives stage lifecycle events. Calls are made from the
// goroutine running the pipeline.
type Observer interface {
	StageStarted(job jobs.Job, stage Stage)
	StageFinished(job jobs.Job, stage Stage, elapsed time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) StageStarted(jobs.Job, Stage)                       {}
func (noopObserver) StageFinished(jobs.Job, Stage, time.Duration, error) {}

// Pipeline turns one uploaded source into the published renditions under
// outputRoot/<identifier>/.
type Pipeline struct {
	outputRoot string
	engine     transcoder.Engine
	observer   Observer
}

// New creates a Pipeline. A nil observer is allowed.
func New(outputRoot string, engine transcoder.Engine, observer Observer) *Pipeline {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Pipeline{
		outputRoot: outputRoot,
		engine:     engine,
		observer:   observer,
	}
}

// OutputRoot returns the directory that holds per-identifier output.
func (p *Pipeline) OutputRoot() string {
	return p.outputRoot
}

// Run executes every stage for job in order and stops at the first
// failure. The returned error is a *StageError naming the failed stage.
func (p *Pipeline) Run(ctx context.Context, job jobs.Job) error {
	r := &run{
		p:     p,
		job:   job,
		dir:   renditions.Dir(p.outputRoot, job.Identifier),
		state: StageAdmitted,
		log:   logging.WithPrefix(fmt.Sprintf("[job %s %s]", job.Identifier, job.ShortID())),
	}
	return r.execute(ctx)
}

type run struct {
	p     *Pipeline
	job   jobs.Job
	dir   string
	state Stage
	log   *logging.Prefixed
}

func (r *run) execute(ctx context.Context) error {
	r.log.Info("Processing %s into %s", r.job.SourcePath, r.dir)

	if err := r.stage(ctx, StageCopyingOriginal, r.copyOriginal); err != nil {
		return err
	}

	input := r.job.SourcePath
	if mediatypes.NeedsNormalization(r.job.OriginalName) {
		err := r.stage(ctx, StageNormalizingContainer, func(ctx context.Context) error {
			return r.render(ctx, input, renditions.Normalized, transcoder.Normalize())
		})
		if err != nil {
			return err
		}
		input = filepath.Join(r.dir, renditions.Normalized)
	} else {
		r.log.Debug("Container %s needs no normalization", r.job.Ext())
	}

	err := r.stage(ctx, StageRenderingNative, func(ctx context.Context) error {
		return r.render(ctx, input, renditions.Native, transcoder.Remux())
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageRenderingScaled, func(ctx context.Context) error {
		return r.render(ctx, input, renditions.Scaled, transcoder.Scale(ScaledWidth, ScaledHeight, ScaledCRF))
	})
	if err != nil {
		return err
	}

	if err := r.transition(StageCompleted); err != nil {
		return err
	}
	r.log.Info("All renditions published")
	return nil
}

func (r *run) stage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	if err := r.transition(stage); err != nil {
		return err
	}

	r.p.observer.StageStarted(r.job, stage)
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	r.p.observer.StageFinished(r.job, stage, elapsed, err)

	if err != nil {
		r.log.Error("Stage %s failed after %v: %v", stage, elapsed.Round(time.Millisecond), err)
		r.state = StageFailed
		return &StageError{Identifier: r.job.Identifier, Stage: stage, Err: err}
	}

	r.log.Debug("Stage %s finished in %v", stage, elapsed.Round(time.Millisecond))
	return nil
}

func (r *run) transition(next Stage) error {
	if !canTransition(r.state, next) {
		return &StageError{
			Identifier: r.job.Identifier,
			Stage:      next,
			Err:        fmt.Errorf("invalid transition from %s", r.state),
		}
	}
	r.state = next
	return nil
}

// copyOriginal opens the source before touching the output directory so a
// missing upload leaves nothing behind.
func (r *run) copyOriginal(_ context.Context) error {
	src, err := filesystem.OpenWithRetry(r.job.SourcePath, filesystem.DefaultRetryConfig())
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	err = r.publish(renditions.Original(r.job.Ext()), func(tmp string) error {
		dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return fmt.Errorf("copy source: %w", err)
		}
		if err := dst.Sync(); err != nil {
			dst.Close()
			return err
		}
		return dst.Close()
	})
	if err != nil {
		return err
	}
	return r.clearRenditions()
}

// clearRenditions drops outputs of an earlier run for this identifier so a
// failed reprocess cannot leave them reported as ready.
func (r *run) clearRenditions() error {
	for _, name := range []string{renditions.Normalized, renditions.Native, renditions.Scaled} {
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove previous %s: %w", name, err)
		}
	}
	return nil
}

func (r *run) render(ctx context.Context, input, name string, op transcoder.Operation) error {
	return r.publish(name, func(tmp string) error {
		return r.p.engine.Run(ctx, input, tmp, op)
	})
}

// publish writes an artifact to its partial name and renames it into place
// only when write succeeds.
func (r *run) publish(name string, write func(tmp string) error) error {
	final := filepath.Join(r.dir, name)
	tmp := filepath.Join(r.dir, renditions.Partial(name))

	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := filesystem.RenameWithRetry(tmp, final, filesystem.DefaultRetryConfig()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}
