/*
Package workers sizes the transcode worker pool in containerized environments.

# Overview

runtime.NumCPU() reports the host's CPU count even when a cgroup limit applies.
GOMAXPROCS follows the container limit (Go 1.19+), so this package derives
pool sizes from it instead:

	// 64-core node, pod limited to 4 CPUs
	runtime.NumCPU()       // 64
	runtime.GOMAXPROCS(0)  // 4
	workers.ForTranscode() // 3

# Reserve

Each transcode pipeline keeps an ffmpeg process busy for its whole run.
ForTranscode reserves one CPU for the HTTP server and the dispatcher, giving
max(1, GOMAXPROCS-1).

# Environment Variable Override

TRANSCODE_WORKERS replaces the calculation when it holds a positive integer:

	env:
	- name: TRANSCODE_WORKERS
	  value: "2"

Resolve lets an explicit configuration value win over both.
*/
package workers
