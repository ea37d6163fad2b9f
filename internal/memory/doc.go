// Package memory keeps the transcoding service inside its container memory
// budget.
//
// Two things live here:
//
//   - [Configure] derives GOMEMLIMIT from a container limit. Go detects CPU
//     quotas for GOMAXPROCS but not memory limits, so the limit has to be
//     passed in, typically through the Kubernetes Downward API.
//   - [Monitor] samples heap usage against that limit and acts as an
//     admission gate for the dispatcher: once usage crosses the critical
//     watermark no new pipeline is admitted until usage falls back below
//     the high watermark. Running pipelines are never interrupted.
//
// # Settings
//
//   - GOMEMLIMIT: standard Go variable. When set it wins and nothing is
//     derived.
//   - MEMORY_LIMIT: container limit in bytes.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap, between 0
//     and 1. Default 0.75. ffmpeg runs as a child process outside the Go
//     heap, so the remainder is its headroom.
//
// Example deployment snippet:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.7"
package memory
