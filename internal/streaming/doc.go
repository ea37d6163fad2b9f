/*
Package streaming protects file responses from stalled clients.

The HTTP server runs without a global WriteTimeout because uploads and
video playback can legitimately take a long time. [Handler] instead gives
every individual Write on a response its own deadline through
http.ResponseController: a client that keeps reading is never cut off, while
one that stops reading for longer than the configured timeout has its
connection closed and the handler goroutine released.

Usage:

	files := http.FileServer(http.Dir(processedDir))
	r.PathPrefix("/processed/").Handler(http.StripPrefix("/processed/",
		streaming.Handler(files, streaming.Config{WriteTimeout: 30 * time.Second})))

Writers that do not support deadlines, such as httptest.ResponseRecorder,
are passed through unchanged.
*/
package streaming
