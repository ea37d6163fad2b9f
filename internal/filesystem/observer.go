package filesystem

// Observer records retry metrics. The metrics package implements it, which
// keeps filesystem free of a metrics import.
type Observer interface {
	// op is the fs operation: "stat", "open", "readdir", "rename".
	// volume is the resolved volume label (e.g., "uploads", "processed").
	ObserveRetryAttempt(op, volume string)
	ObserveRetrySuccess(op, volume string)
	ObserveRetryFailure(op, volume string)
	ObserveRetryDuration(op, volume string, durationSeconds float64)
	ObserveStaleError(op, volume string)
}

// defaultObserver is the package-level observer set at startup.
// If nil, metric recording is skipped.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
