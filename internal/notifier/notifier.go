// Package notifier delivers toast-style, user-facing notifications.
// Every failure or success path of the auth and content flows reports
// its outcome through a Notifier so no rejection reaches the UI
// boundary unannounced.
package notifier

import (
	"sync"

	"github.com/skillatlas/skillatlas/internal/logger"
)

// Notifier publishes short user-visible messages about operation outcomes.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// LogNotifier reports notifications through the global structured logger.
type LogNotifier struct{}

// Success logs a success notification.
func (n *LogNotifier) Success(message string) {
	logger.Log.Infoln("notification", "kind", "success", "message", message)
}

// Error logs a failure notification.
func (n *LogNotifier) Error(message string) {
	logger.Log.Warnln("notification", "kind", "error", "message", message)
}

// Recorder collects notifications in memory. It is meant for tests
// asserting on user-visible outcomes.
type Recorder struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

// Success records a success notification.
func (r *Recorder) Success(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, message)
}

// Error records a failure notification.
func (r *Recorder) Error(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

// Successes returns a copy of the recorded success messages.
func (r *Recorder) Successes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.successes...)
}

// Errors returns a copy of the recorded failure messages.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}
