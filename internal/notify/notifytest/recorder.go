// Package notifytest provides a notifier that remembers what it was shown.
package notifytest

import (
	"sync"
	"time"

	"github.com/spec-kit/vitalwarrior/internal/notify"
)

// Recorder keeps every notification it is shown.
type Recorder struct {
	mu     sync.Mutex
	toasts []notify.Toast
}

// Show records the notification.
func (r *Recorder) Show(message string, kind notify.Kind, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, notify.Toast{
		ID:       uint64(len(r.toasts) + 1),
		Message:  message,
		Kind:     kind,
		Duration: duration,
		ShownAt:  time.Now().UTC(),
	})
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []notify.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Toast(nil), r.toasts...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (notify.Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return notify.Toast{}, false
	}
	return r.toasts[len(r.toasts)-1], true
}
