package database

import "time"

// Video is the stored metadata for one upload. FileName is the stored file
// name inside the upload directory and is unique.
type Video struct {
	ID         int64     `json:"id"`
	FileName   string    `json:"fileName"`
	Identifier string    `json:"identifier"`
	Name       string    `json:"name"`
	Genre      string    `json:"genre"`
	FilePath   string    `json:"filePath"`
	Size       int64     `json:"size"`
	JobID      string    `json:"jobId,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}
