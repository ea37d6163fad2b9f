/*
Package filesystem wraps os operations with retry logic for NFS stale file
handle errors (ESTALE).

Upload, processed and cache directories are often network mounts. A stale
handle there is transient, so Stat, Open, ReadDir and Rename are retried
with exponential backoff (50ms, 100ms, 200ms by default, capped at 500ms).
Every other error is returned immediately.

	f, err := filesystem.OpenWithRetry(job.SourcePath, filesystem.DefaultRetryConfig())

Retry metrics are labelled by volume. Register the volumes once at startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "uploads":   config.UploadDir,
	    "processed": config.ProcessedDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
*/
package filesystem
