package mediatypes

import (
	"path/filepath"
	"strings"
)

// container describes an accepted upload container. Progressive containers
// can be fed to the renderer and played by browsers as they are; the rest
// are remuxed into MP4 first.
//
// Every stage before RenderingScaled stream-copies into MP4, so only
// containers whose usual codecs the MP4 muxer takes are accepted. WebM
// (VP8/Vorbis), AVI, WMV, FLV and 3GP (AMR) uploads would always fail there.
type container struct {
	mime        string
	progressive bool
}

var containers = map[string]container{
	".mp4":  {"video/mp4", true},
	".m4v":  {"video/x-m4v", true},
	".mov":  {"video/quicktime", true},
	".mkv":  {"video/x-matroska", false},
	".mpeg": {"video/mpeg", false},
	".mpg":  {"video/mpeg", false},
	".ts":   {"video/mp2t", false},
	".m2ts": {"video/mp2t", false},
}

// Ext returns the lowercased extension of name, including the leading dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsVideo reports whether name has an accepted video extension.
func IsVideo(name string) bool {
	_, ok := containers[Ext(name)]
	return ok
}

// NeedsNormalization reports whether an upload named name must be remuxed
// into a streamable container before its renditions are produced.
func NeedsNormalization(name string) bool {
	c, ok := containers[Ext(name)]
	return ok && !c.progressive
}

// Identifier derives the output-folder name for an upload: its base filename
// without the extension.
func Identifier(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// GetMimeType returns the MIME type for a lowercase extension such as
// ".mkv", or application/octet-stream. Poster files resolve to image/jpeg.
func GetMimeType(ext string) string {
	if ext == ".jpg" {
		return "image/jpeg"
	}
	if c, ok := containers[ext]; ok {
		return c.mime
	}
	return "application/octet-stream"
}
