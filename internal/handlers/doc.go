// Package handlers provides HTTP request handlers for the video platform API.
//
// It includes handlers for:
//   - Video upload, listing and lookup
//   - Poster images for processed videos
//   - Health, readiness and version probes
//   - Prometheus metrics exposition
package handlers
