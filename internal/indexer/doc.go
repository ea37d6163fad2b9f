// Package indexer keeps the videos table in step with the upload directory.
//
// Uploads normally record their own metadata, but files can also appear in
// or vanish from the upload directory behind the server's back (restores,
// manual cleanup, a crash between storing a file and recording it). Each
// index run:
//   - inserts a row for every video file that has none, dated by its mtime
//   - refreshes the size of rows whose file changed on disk
//   - deletes rows whose file is gone
//
// Titles and genres entered at upload time are never overwritten. Hidden
// files, including in-progress uploads, are ignored.
//
// The indexer runs once at startup, then every interval, and on demand via
// [Indexer.TriggerIndex].
package indexer
