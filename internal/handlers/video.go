package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/yrk1n/video-platform/internal/database"
	"github.com/yrk1n/video-platform/internal/filesystem"
	"github.com/yrk1n/video-platform/internal/jobs"
	"github.com/yrk1n/video-platform/internal/logging"
	"github.com/yrk1n/video-platform/internal/media"
	"github.com/yrk1n/video-platform/internal/mediatypes"
	"github.com/yrk1n/video-platform/internal/metrics"
	"github.com/yrk1n/video-platform/internal/middleware"
	"github.com/yrk1n/video-platform/internal/renditions"
)

// multipartMemory is the part of an upload held in memory before the
// multipart reader spills to temp files.
const multipartMemory = 32 << 20

type uploadRequest struct {
	FileName string `validate:"required,max=255,videofile"`
	Name     string `validate:"max=200"`
	Genre    string `validate:"max=50"`
}

// UploadResponse is returned for an accepted upload.
type UploadResponse struct {
	FileName   string `json:"fileName"`
	Identifier string `json:"identifier"`
	JobID      string `json:"jobId"`
}

// VideoInfo describes one uploaded video and the renditions available for it.
type VideoInfo struct {
	FileName          string     `json:"fileName"`
	Identifier        string     `json:"identifier"`
	Name              string     `json:"name,omitempty"`
	Genre             string     `json:"genre,omitempty"`
	Size              int64      `json:"size"`
	UploadedAt        *time.Time `json:"uploadedAt,omitempty"`
	IsProcessing      bool       `json:"isProcessing"`
	ProcessedVersions []string   `json:"processedVersions"`
}

// UploadVideo stores a multipart upload in the upload directory, records its
// metadata and submits it for processing. An existing upload with the same
// name is replaced.
func (h *Handlers) UploadVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.Warn("failed to remove multipart temp files: %v", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		writeJSONError(w, "no file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	req := uploadRequest{
		FileName: baseName(header.Filename),
		Name:     strings.TrimSpace(r.FormValue("name")),
		Genre:    strings.TrimSpace(r.FormValue("genre")),
	}
	if err := h.validate.Struct(&req); err != nil {
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		writeValidationError(w, err)
		return
	}
	if !isSafeName(req.FileName) {
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		writeJSONError(w, "invalid file name", http.StatusBadRequest)
		return
	}

	dst := filepath.Join(h.uploadDir, req.FileName)
	size, err := h.store(file, dst)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		logging.Error("Failed to store upload %s: %v", req.FileName, err)
		writeJSONError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	metrics.UploadBytesTotal.Add(float64(size))

	job, err := h.submitter.Submit(dst, req.FileName)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, jobs.ErrQueueClosed) {
			writeJSONError(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}
		logging.Error("Failed to submit %s: %v", req.FileName, err)
		writeJSONError(w, "failed to queue upload", http.StatusInternalServerError)
		return
	}

	video := &database.Video{
		FileName:   req.FileName,
		Identifier: job.Identifier,
		Name:       req.Name,
		Genre:      req.Genre,
		FilePath:   dst,
		Size:       size,
		JobID:      job.ID,
	}
	if err := h.db.UpsertVideo(r.Context(), video); err != nil {
		logging.Warn("Failed to save metadata for %s: %v", req.FileName, err)
	}

	metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	logging.Info("Upload accepted: %s (%d bytes, job %s)", req.FileName, size, job.ShortID())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(middleware.JobIDHeader, job.ID)
	writeJSON(w, UploadResponse{
		FileName:   req.FileName,
		Identifier: job.Identifier,
		JobID:      job.ID,
	})
}

// store copies src to a hidden file in the upload directory and renames it
// to dst once complete.
func (h *Handlers) store(src multipart.File, dst string) (size int64, err error) {
	tmp, err := os.CreateTemp(h.uploadDir, ".upload-*")
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	size, err = io.Copy(tmp, src)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, err
	}

	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return 0, err
	}
	if err = filesystem.RenameWithRetry(tmp.Name(), dst, filesystem.DefaultRetryConfig()); err != nil {
		return 0, err
	}
	return size, nil
}

// baseName strips any client-side directory from an uploaded file name.
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}

// ListVideos returns every uploaded video with its processing state.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	entries, err := filesystem.ReadDirWithRetry(h.uploadDir, filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Error("Failed to read upload directory: %v", err)
		writeJSONError(w, "failed to list videos", http.StatusInternalServerError)
		return
	}

	stored := make(map[string]database.Video)
	if videos, err := h.db.ListVideos(r.Context()); err != nil {
		logging.Warn("Failed to load video metadata: %v", err)
	} else {
		for _, v := range videos {
			stored[v.FileName] = v
		}
	}

	result := make([]VideoInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !mediatypes.IsVideo(name) {
			continue
		}

		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}

		var meta *database.Video
		if v, ok := stored[name]; ok {
			meta = &v
		}
		result = append(result, h.videoInfo(name, size, meta))
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}

// GetVideo returns a single video by its identifier.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]
	if !isSafeName(identifier) {
		writeJSONError(w, "invalid identifier", http.StatusBadRequest)
		return
	}

	info, ok, err := h.lookup(r, identifier)
	if err != nil {
		logging.Error("Failed to look up video %s: %v", identifier, err)
		writeJSONError(w, "failed to look up video", http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSONError(w, "video not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, info)
}

// lookup resolves identifier through stored metadata first and then by
// scanning the upload directory for files stored before metadata existed.
func (h *Handlers) lookup(r *http.Request, identifier string) (VideoInfo, bool, error) {
	v, err := h.db.GetVideoByIdentifier(r.Context(), identifier)
	switch {
	case err == nil:
		if info, statErr := filesystem.StatWithRetry(filepath.Join(h.uploadDir, v.FileName), filesystem.DefaultRetryConfig()); statErr == nil {
			return h.videoInfo(v.FileName, info.Size(), v), true, nil
		}
	case !errors.Is(err, database.ErrNotFound):
		logging.Warn("Metadata lookup for %s failed: %v", identifier, err)
	}

	entries, err := filesystem.ReadDirWithRetry(h.uploadDir, filesystem.DefaultRetryConfig())
	if err != nil {
		return VideoInfo{}, false, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !mediatypes.IsVideo(name) {
			continue
		}
		if mediatypes.Identifier(name) != identifier {
			continue
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		return h.videoInfo(name, size, nil), true, nil
	}
	return VideoInfo{}, false, nil
}

func (h *Handlers) videoInfo(fileName string, size int64, meta *database.Video) VideoInfo {
	identifier := mediatypes.Identifier(fileName)
	status := renditions.Inspect(h.processedDir, identifier)

	info := VideoInfo{
		FileName:          fileName,
		Identifier:        identifier,
		Size:              size,
		IsProcessing:      status.IsProcessing(),
		ProcessedVersions: status.Versions,
	}
	if meta != nil {
		info.Name = meta.Name
		info.Genre = meta.Genre
		uploaded := meta.UploadedAt
		info.UploadedAt = &uploaded
	}
	return info
}

// GetPoster returns a JPEG still for a processed video.
func (h *Handlers) GetPoster(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]
	if !isSafeName(identifier) {
		writeJSONError(w, "invalid identifier", http.StatusBadRequest)
		return
	}

	data, err := h.posters.GetPoster(r.Context(), identifier)
	if err != nil {
		if errors.Is(err, media.ErrNotReady) {
			writeJSONError(w, "poster not available yet", http.StatusNotFound)
			return
		}
		logging.Error("Failed to generate poster for %s: %v", identifier, err)
		writeJSONError(w, "failed to generate poster", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(data); err != nil {
		logging.Debug("failed to write poster for %s: %v", identifier, err)
	}
}

// Reindex starts a library reconciliation in the background.
func (h *Handlers) Reindex(w http.ResponseWriter, _ *http.Request) {
	if h.library == nil {
		writeJSONError(w, "library indexing is not enabled", http.StatusServiceUnavailable)
		return
	}
	if h.library.IsIndexing() {
		writeJSONStatus(w, http.StatusAccepted, "already_indexing")
		return
	}
	h.library.TriggerIndex()
	logging.Info("Library re-index requested")
	writeJSONStatus(w, http.StatusAccepted, "indexing")
}
