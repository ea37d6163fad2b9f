// Package renditions defines the on-disk layout of a job's output directory.
//
// The names here are a contract with readers outside the pipeline: the
// listing endpoint and the playback client build artifact URLs from the job
// identifier alone, so they must not change.
package renditions

import (
	"os"
	"path/filepath"
	"strings"
)

// Artifact file names inside <processed>/<identifier>/.
const (
	originalBase = "original"
	Normalized   = "normalized.mp4"
	Native       = "native.mp4"
	Scaled       = "720p.mp4"

	partialSuffix = ".partial"
)

// Playable versions, in the order they are reported to clients.
const (
	VersionNative = "native"
	Version720p   = "720p"
)

var playable = []struct {
	version string
	file    string
}{
	{VersionNative, Native},
	{Version720p, Scaled},
}

// State is the externally inferred progress of a job.
type State string

const (
	// StateProcessing means no playable rendition exists yet.
	StateProcessing State = "processing"
	// StateReady means at least one playable rendition exists.
	StateReady State = "ready"
)

// Status is the result of inspecting a job's output directory.
type Status struct {
	Identifier string   `json:"identifier"`
	State      State    `json:"state"`
	Versions   []string `json:"versions"`
}

// IsProcessing reports whether no playable rendition exists yet.
func (s Status) IsProcessing() bool {
	return s.State == StateProcessing
}

// Original returns the file name of the verbatim source copy for an upload
// with the given extension.
func Original(ext string) string {
	return originalBase + strings.ToLower(ext)
}

// Dir returns the output directory of identifier under root.
func Dir(root, identifier string) string {
	return filepath.Join(root, identifier)
}

// Partial returns the hidden temporary name an artifact is written under
// until its stage succeeds.
func Partial(name string) string {
	return "." + name + partialSuffix
}

// IsPartial reports whether name is an in-progress artifact.
func IsPartial(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, partialSuffix)
}

// Inspect reports which playable renditions of identifier exist under root.
// It only reads the filesystem, so repeated calls on a finished job return
// the same result.
func Inspect(root, identifier string) Status {
	status := Status{
		Identifier: identifier,
		State:      StateProcessing,
		Versions:   []string{},
	}

	dir := Dir(root, identifier)
	for _, p := range playable {
		info, err := os.Stat(filepath.Join(dir, p.file))
		if err != nil || info.IsDir() {
			continue
		}
		status.Versions = append(status.Versions, p.version)
	}

	if len(status.Versions) > 0 {
		status.State = StateReady
	}
	return status
}

// Best returns the path of the rendition best suited for still-frame
// extraction (720p first, then native) and false when neither exists.
func Best(root, identifier string) (string, bool) {
	dir := Dir(root, identifier)
	for _, name := range []string{Scaled, Native} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}
