package streaming

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/yrk1n/video-platform/internal/logging"
)

var (
	// ErrWriteTimeout is returned from Write when the client stopped reading
	// for longer than the write timeout.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone is returned from Write after the request context ended.
	ErrClientGone = errors.New("client disconnected")
)

// Config configures Handler.
type Config struct {
	// WriteTimeout bounds each Write. Zero or negative disables deadlines.
	WriteTimeout time.Duration
	// OnTimeout is called once per response that hit the timeout.
	OnTimeout func(r *http.Request)
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{WriteTimeout: 30 * time.Second}
}

// Handler wraps next so that each response Write gets a fresh deadline.
func Handler(next http.Handler, config Config) http.Handler {
	if config.WriteTimeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dw := &deadlineWriter{
			ResponseWriter: w,
			rc:             http.NewResponseController(w),
			req:            r,
			config:         config,
		}
		next.ServeHTTP(dw, r)

		if err := dw.rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logging.Debug("Failed to clear write deadline for %s: %v", r.URL.Path, err)
		}
	})
}

// deadlineWriter extends the connection write deadline before every Write.
type deadlineWriter struct {
	http.ResponseWriter
	rc     *http.ResponseController
	req    *http.Request
	config Config

	unsupported bool
	timedOut    bool
	written     int64
}

func (dw *deadlineWriter) Write(p []byte) (int, error) {
	if dw.timedOut {
		return 0, ErrWriteTimeout
	}
	if err := dw.req.Context().Err(); err != nil {
		return 0, ErrClientGone
	}

	if !dw.unsupported {
		if err := dw.rc.SetWriteDeadline(time.Now().Add(dw.config.WriteTimeout)); err != nil {
			if errors.Is(err, http.ErrNotSupported) {
				dw.unsupported = true
			} else {
				logging.Debug("Failed to set write deadline for %s: %v", dw.req.URL.Path, err)
			}
		}
	}

	n, err := dw.ResponseWriter.Write(p)
	dw.written += int64(n)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		dw.timedOut = true
		logging.Warn("Stalled client on %s after %d bytes; closing response", dw.req.URL.Path, dw.written)
		if dw.config.OnTimeout != nil {
			dw.config.OnTimeout(dw.req)
		}
		return n, ErrWriteTimeout
	}
	return n, err
}

// Flush forwards to the underlying writer when it supports flushing.
func (dw *deadlineWriter) Flush() {
	if err := dw.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logging.Debug("Flush failed for %s: %v", dw.req.URL.Path, err)
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (dw *deadlineWriter) Unwrap() http.ResponseWriter {
	return dw.ResponseWriter
}
