// Package database provides SQLite storage for upload metadata.
//
// Each uploaded file has one row in the videos table keyed by its stored
// file name, holding the user-supplied name and genre, the file size, and
// the ID of the transcoding job created for it. Processing state is not
// stored here; it is derived from the output directory.
//
// The database uses WAL mode for concurrent reads and creates its schema on
// open.
package database
