package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/yrk1n/video-platform/internal/logging"
)

// ErrNoOutput is wrapped by EngineError when ffmpeg exited cleanly but the
// output file is missing or empty.
var ErrNoOutput = errors.New("engine produced no output")

// maxDiagnosticBytes caps how much ffmpeg stderr is kept in an EngineError.
const maxDiagnosticBytes = 4096

// Kind identifies one of the transformations the engine can perform.
type Kind string

const (
	// KindNormalize stream-copies the input into an MP4 container.
	KindNormalize Kind = "normalize"
	// KindRemux stream-copies the input into a progressive-start MP4.
	KindRemux Kind = "remux"
	// KindScale re-encodes the input at a fixed size and quality.
	KindScale Kind = "scale"
)

// Operation describes one transformation.
type Operation struct {
	Kind   Kind
	Width  int
	Height int
	CRF    int
}

// Normalize returns the container normalization operation.
func Normalize() Operation {
	return Operation{Kind: KindNormalize}
}

// Remux returns the native-quality remux operation.
func Remux() Operation {
	return Operation{Kind: KindRemux}
}

// Scale returns a re-encode at width x height with the given constant rate factor.
func Scale(width, height, crf int) Operation {
	return Operation{Kind: KindScale, Width: width, Height: height, CRF: crf}
}

// String returns a short description for logs, e.g. "scale(1280x720,crf=23)".
func (o Operation) String() string {
	if o.Kind == KindScale {
		return fmt.Sprintf("scale(%dx%d,crf=%d)", o.Width, o.Height, o.CRF)
	}
	return string(o.Kind)
}

// Engine performs one transformation from input to output. Implementations
// must be safe for concurrent use.
type Engine interface {
	Run(ctx context.Context, input, output string, op Operation) error
}

// EngineError reports a failed engine invocation together with the engine's
// diagnostic output.
type EngineError struct {
	Op     Operation
	Output string
	Err    error
}

func (e *EngineError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("ffmpeg %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ffmpeg %s failed: %v - %s", e.Op, e.Err, e.Output)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// FFmpeg runs transformations with the ffmpeg command-line tool. It holds no
// per-call state.
type FFmpeg struct {
	binary string
}

// New creates an FFmpeg engine using binary, which may be a bare name looked
// up in PATH. An empty binary means "ffmpeg".
func New(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary}
}

// Binary returns the configured ffmpeg executable.
func (f *FFmpeg) Binary() string {
	return f.binary
}

// Run executes op. It succeeds only if ffmpeg exits zero and output exists
// with a non-zero size.
func (f *FFmpeg) Run(ctx context.Context, input, output string, op Operation) error {
	args, err := BuildArgs(input, output, op)
	if err != nil {
		return &EngineError{Op: op, Err: err}
	}

	cmd := exec.CommandContext(ctx, f.binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logging.Debug("Running %s %s", f.binary, strings.Join(args, " "))
	start := time.Now()

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return &EngineError{Op: op, Output: tail(stderr.String()), Err: err}
	}

	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		return &EngineError{Op: op, Output: tail(stderr.String()), Err: ErrNoOutput}
	}

	logging.Debug("ffmpeg %s finished in %v (%d bytes)", op, time.Since(start), info.Size())
	return nil
}

// BuildArgs returns the ffmpeg arguments for op. The muxer is always named
// explicitly because output paths carry a temporary suffix.
func BuildArgs(input, output string, op Operation) ([]string, error) {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", input}

	switch op.Kind {
	case KindNormalize:
		args = append(args,
			"-map", "0:v?",
			"-map", "0:a?",
			"-c", "copy",
		)
	case KindRemux:
		args = append(args,
			"-map", "0:v?",
			"-map", "0:a?",
			"-c", "copy",
			"-movflags", "+faststart",
		)
	case KindScale:
		if op.Width <= 0 || op.Height <= 0 {
			return nil, fmt.Errorf("invalid scale target %dx%d", op.Width, op.Height)
		}
		args = append(args,
			"-vf", fmt.Sprintf("scale=%d:%d", op.Width, op.Height),
			"-c:v", "libx264",
			"-preset", "fast",
			"-crf", strconv.Itoa(op.CRF),
			"-c:a", "aac",
			"-b:a", "128k",
			"-movflags", "+faststart",
		)
	default:
		return nil, fmt.Errorf("unknown operation %q", op.Kind)
	}

	return append(args, "-f", "mp4", output), nil
}

// CheckAvailable resolves the ffmpeg binary and returns its version line.
func (f *FFmpeg) CheckAvailable(ctx context.Context) (string, error) {
	path, err := exec.LookPath(f.binary)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", f.binary, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// tail keeps the last maxDiagnosticBytes of ffmpeg's stderr, where the
// actual error is reported.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxDiagnosticBytes {
		return s
	}
	return "..." + s[len(s)-maxDiagnosticBytes:]
}
