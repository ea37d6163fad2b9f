// Package mediatypes holds the dependency-free rules for recognising uploaded
// video files.
//
// It answers three questions about an upload's filename:
//
//	mediatypes.IsVideo("clip.MKV")            // accepted upload?
//	mediatypes.NeedsNormalization("clip.mkv") // container must be remuxed first?
//	mediatypes.Identifier("clip.mkv")         // output folder name: "clip"
//
// Detection is by extension only; the original filename is the sole format
// signal the pipeline receives.
package mediatypes
