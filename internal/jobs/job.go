package jobs

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/yrk1n/video-platform/internal/mediatypes"
)

// Job describes one uploaded file to be transcoded. It is never mutated after
// creation.
type Job struct {
	ID           string    `json:"id"`
	SourcePath   string    `json:"sourcePath"`
	Identifier   string    `json:"identifier"`
	OriginalName string    `json:"originalName"`
	EnqueuedAt   time.Time `json:"enqueuedAt"`
}

// New creates a job for the upload stored at sourcePath. The output
// identifier is originalName without its extension.
func New(sourcePath, originalName string) Job {
	if abs, err := filepath.Abs(sourcePath); err == nil {
		sourcePath = abs
	}
	return Job{
		ID:           uuid.NewString(),
		SourcePath:   sourcePath,
		Identifier:   mediatypes.Identifier(originalName),
		OriginalName: filepath.Base(originalName),
		EnqueuedAt:   time.Now(),
	}
}

// Ext returns the lowercased extension of the original file name.
func (j Job) Ext() string {
	return mediatypes.Ext(j.OriginalName)
}

// ShortID returns the first eight characters of the job ID for log lines.
func (j Job) ShortID() string {
	if len(j.ID) > 8 {
		return j.ID[:8]
	}
	return j.ID
}
