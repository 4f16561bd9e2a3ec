// Package notify implements the single shared toast shown to the user.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind is the toast severity.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// Toast is one displayed notification.
type Toast struct {
	ID       uint64        `json:"id"`
	Message  string        `json:"message"`
	Kind     Kind          `json:"kind"`
	Duration time.Duration `json:"duration"`
	ShownAt  time.Time     `json:"shown_at"`
}

// Notifier displays user-facing notifications. A duration of zero selects
// the sink's default.
type Notifier interface {
	Show(message string, kind Kind, duration time.Duration)
}

// Sink is the shared toast element. Showing a new toast replaces the
// visible one; each toast hides itself once its duration elapses.
type Sink struct {
	mu              sync.Mutex
	logger          *zap.Logger
	defaultDuration time.Duration
	seq             uint64
	current         *Toast
	timer           *time.Timer
}

// NewSink builds a sink with the given default duration.
func NewSink(logger *zap.Logger, defaultDuration time.Duration) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultDuration <= 0 {
		defaultDuration = 5 * time.Second
	}
	return &Sink{logger: logger, defaultDuration: defaultDuration}
}

// Show displays message and schedules it to hide.
func (s *Sink) Show(message string, kind Kind, duration time.Duration) {
	if duration <= 0 {
		duration = s.defaultDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	id := s.seq
	s.current = &Toast{
		ID:       id,
		Message:  message,
		Kind:     kind,
		Duration: duration,
		ShownAt:  time.Now().UTC(),
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(duration, func() { s.hide(id) })

	s.logger.Info("notification",
		zap.String("kind", string(kind)),
		zap.String("message", message),
		zap.Duration("duration", duration))
}

// Hide removes the visible toast immediately.
func (s *Sink) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// hide clears the toast only if it is still the one that scheduled it.
func (s *Sink) hide(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.ID == id {
		s.current = nil
		s.timer = nil
	}
}

// Current returns the visible toast, if any.
func (s *Sink) Current() (Toast, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Toast{}, false
	}
	return *s.current, true
}
