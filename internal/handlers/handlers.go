package handlers

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yrk1n/video-platform/internal/database"
	"github.com/yrk1n/video-platform/internal/jobs"
	"github.com/yrk1n/video-platform/internal/mediatypes"
	"github.com/yrk1n/video-platform/internal/startup"
)

// JobSubmitter accepts uploaded files for processing and reports pool state.
// *dispatcher.Dispatcher implements it.
type JobSubmitter interface {
	Submit(sourcePath, originalName string) (jobs.Job, error)
	QueueDepth() int
	InFlight() int
	Capacity() int
	Running() bool
}

// PosterSource produces JPEG posters for processed videos.
// *media.PosterGenerator implements it.
type PosterSource interface {
	GetPoster(ctx context.Context, identifier string) ([]byte, error)
}

// LibraryIndexer reconciles the upload directory with stored metadata.
// *indexer.Indexer implements it.
type LibraryIndexer interface {
	TriggerIndex()
	IsIndexing() bool
	LastIndexTime() time.Time
}

type Handlers struct {
	db             *database.Database
	submitter      JobSubmitter
	posters        PosterSource
	library        LibraryIndexer
	validate       *validator.Validate
	uploadDir      string
	processedDir   string
	maxUploadBytes int64
	startTime      time.Time
}

func New(db *database.Database, submitter JobSubmitter, posters PosterSource, config *startup.Config) *Handlers {
	return &Handlers{
		db:             db,
		submitter:      submitter,
		posters:        posters,
		validate:       newValidator(),
		uploadDir:      config.UploadDir,
		processedDir:   config.ProcessedDir,
		maxUploadBytes: config.MaxUploadBytes,
		startTime:      time.Now(),
	}
}

// SetLibraryIndexer enables the reindex endpoint and index status in health
// responses.
func (h *Handlers) SetLibraryIndexer(library LibraryIndexer) {
	h.library = library
}

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("videofile", func(fl validator.FieldLevel) bool {
		return mediatypes.IsVideo(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
	return v
}
