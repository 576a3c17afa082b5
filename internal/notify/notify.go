// Package notify carries advisory, non-blocking notices to the presentation shell.
package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Level classifies a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a transient user-visible message.
type Notice struct {
	Level       Level
	Title       string
	Description string
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(notice Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(notice Notice) {
	f(notice)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}

// Nop returns a Notifier that discards notices.
func Nop() Notifier {
	return nopNotifier{}
}

// OrNop returns notifier, or a discarding Notifier when it is nil.
func OrNop(notifier Notifier) Notifier {
	if notifier == nil {
		return Nop()
	}
	return notifier
}

type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier writes notices to a zap logger.
func NewLogNotifier(logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(notice Notice) {
	fields := []zap.Field{zap.String("level", string(notice.Level))}
	if notice.Description != "" {
		fields = append(fields, zap.String("description", notice.Description))
	}
	if notice.Level == LevelError {
		n.logger.Warn(notice.Title, fields...)
		return
	}
	n.logger.Info(notice.Title, fields...)
}

// Recorder keeps every notice it receives.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(notice Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Titles returns the recorded notice titles in order.
func (r *Recorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := make([]string, 0, len(r.notices))
	for _, notice := range r.notices {
		titles = append(titles, notice.Title)
	}
	return titles
}

// Reset discards recorded notices.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = nil
}
