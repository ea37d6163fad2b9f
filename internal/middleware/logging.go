package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yrk1n/video-platform/internal/logging"
)

// JobIDHeader is the response header handlers set when a request created a
// job. The access log records it so a request can be matched to its
// pipeline log lines.
const JobIDHeader = "X-Job-Id"

// w3cFields is the W3C #Fields directive for the lines written by Logger.
const w3cFields = "#Fields: date time s-sitename c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes cs-bytes time-taken sc(Content-Encoding) x-job-id cs(User-Agent) cs(Referer)"

// responseWriter records the status and size of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingConfig controls which requests reach the access log.
type LoggingConfig struct {
	SkipPaths []string
	// MediaPrefixes are upload and rendition routes. Players issue many
	// range requests against them, so they are logged only with
	// LogStaticFiles.
	MediaPrefixes   []string
	SkipExtensions  []string
	LogStaticFiles  bool
	LogHealthChecks bool
}

// DefaultLoggingConfig logs API and health traffic and skips media and
// frontend assets.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		MediaPrefixes:   []string{"/uploads/", "/processed/"},
		SkipExtensions:  []string{".css", ".js", ".map", ".ico", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".woff", ".woff2", ".ttf"},
		LogHealthChecks: true,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// Logger returns access log middleware writing W3C Extended Log Format.
// The #Fields directive is written before the first line.
func Logger(config LoggingConfig, serviceName string) func(http.Handler) http.Handler {
	if serviceName == "" {
		serviceName = "-"
	}
	siteName := escapeW3CField(serviceName)
	var directive sync.Once

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			entry := newW3CEntry(siteName, r, wrapped, time.Since(start))
			directive.Do(func() { logging.Printf("%s", w3cFields) })
			//nolint:gosec // every request-controlled field passes through sanitizeLogField
			logging.Printf("%s", entry)
		})
	}
}

// w3cEntry is one access log line.
type w3cEntry struct {
	at              time.Time
	site            string
	clientIP        string
	method          string
	uriStem         string
	uriQuery        string
	status          int
	bytesSent       int64
	bytesReceived   int64
	timeTaken       time.Duration
	contentEncoding string
	jobID           string
	userAgent       string
	referer         string
}

func newW3CEntry(site string, r *http.Request, rw *responseWriter, elapsed time.Duration) w3cEntry {
	received := r.ContentLength
	if received < 0 {
		// chunked uploads
		received = 0
	}

	return w3cEntry{
		at:              time.Now().UTC(),
		site:            site,
		clientIP:        sanitizeLogField(getClientIP(r)),
		method:          sanitizeLogField(r.Method),
		uriStem:         sanitizeLogField(r.URL.Path),
		uriQuery:        orDash(sanitizeLogField(r.URL.RawQuery)),
		status:          rw.statusCode,
		bytesSent:       rw.bytesWritten,
		bytesReceived:   received,
		timeTaken:       elapsed,
		contentEncoding: orDash(rw.Header().Get("Content-Encoding")),
		jobID:           orDash(sanitizeLogField(rw.Header().Get(JobIDHeader))),
		userAgent:       orDash(escapeW3CField(sanitizeLogField(r.Header.Get("User-Agent")))),
		referer:         orDash(escapeW3CField(sanitizeLogField(r.Header.Get("Referer")))),
	}
}

func (e w3cEntry) String() string {
	var b strings.Builder
	b.Grow(160)
	fmt.Fprintf(&b, "%s %s %s %s %s %s %s ",
		e.at.Format("2006-01-02"), e.at.Format("15:04:05"), e.site, e.clientIP, e.method, e.uriStem, e.uriQuery)
	b.WriteString(strconv.Itoa(e.status))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(e.bytesSent, 10))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(e.bytesReceived, 10))
	b.WriteByte(' ')
	// time-taken in milliseconds
	b.WriteString(strconv.FormatInt(e.timeTaken.Milliseconds(), 10))
	fmt.Fprintf(&b, " %s %s %s %s", e.contentEncoding, e.jobID, e.userAgent, e.referer)
	return b.String()
}

// sanitizeLogField drops control characters that could forge log lines or
// inject terminal escapes. Newlines become spaces; tabs are kept.
func sanitizeLogField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c LoggingConfig) skip(path string) bool {
	for _, p := range c.SkipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}

	if !c.LogHealthChecks && healthCheckPaths[path] {
		return true
	}

	if c.LogStaticFiles {
		return false
	}
	for _, p := range c.MediaPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	lower := strings.ToLower(path)
	for _, ext := range c.SkipExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// escapeW3CField quotes values containing whitespace or quotes, doubling
// embedded quotes.
func escapeW3CField(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
