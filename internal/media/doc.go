// Package media generates poster images for processed videos.
//
// A poster is a single frame taken from the best available rendition
// (720p, falling back to native), fitted into 480x270 and encoded as JPEG.
// Posters are cached on disk and invalidated when the rendition changes.
package media
