// Package transcoder is the only place the platform shells out to FFmpeg.
//
// An Engine performs one Operation on one input file:
//   - Normalize: stream copy into an MP4 container, no re-encode
//   - Remux: stream copy with +faststart for progressive playback
//   - Scale: libx264/AAC re-encode at a fixed size and CRF, with +faststart
//
// FFmpeg.Run succeeds only when ffmpeg exits zero and the output file exists
// and is non-empty; every other outcome is an *EngineError carrying the tail
// of ffmpeg's stderr. FFmpeg must be installed and reachable through the
// configured path.
package transcoder
