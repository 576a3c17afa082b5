// Package dictation defines the speech capture capability consumed by the
// editor, independent of any particular recognition engine.
package dictation

import (
	"errors"
	"sync"
)

// ErrUnavailable indicates that no recognition engine is present.
var ErrUnavailable = errors.New("dictation: speech recognition not supported")

// ErrNotStarted indicates that Stop was called without an active capture.
var ErrNotStarted = errors.New("dictation: capture not started")

// Result is one recognition result. Interim results may be revised; final
// results are settled.
type Result struct {
	Transcript string
	Final      bool
}

// Listener receives capture callbacks. Callbacks may arrive on any goroutine.
type Listener interface {
	OnResult(result Result)
	OnError(err error)
	OnEnd()
}

// Recognizer is a speech capture capability. Start on an unavailable
// recognizer returns ErrUnavailable.
type Recognizer interface {
	Available() bool
	Start(listener Listener) error
	Stop() error
}

type unavailable struct{}

// Unavailable returns the recognizer used when the platform has no engine.
func Unavailable() Recognizer {
	return unavailable{}
}

func (unavailable) Available() bool      { return false }
func (unavailable) Start(Listener) error { return ErrUnavailable }
func (unavailable) Stop() error          { return nil }

// Scripted is a Recognizer whose results are supplied by the caller, for
// text-driven shells and tests.
type Scripted struct {
	mu       sync.Mutex
	listener Listener
}

// NewScripted returns an available Scripted recognizer.
func NewScripted() *Scripted {
	return &Scripted{}
}

func (s *Scripted) Available() bool {
	return true
}

func (s *Scripted) Start(listener Listener) error {
	if listener == nil {
		return errors.New("dictation: listener is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = listener
	return nil
}

// Stop ends the capture and delivers OnEnd.
func (s *Scripted) Stop() error {
	listener := s.detach()
	if listener == nil {
		return nil
	}
	listener.OnEnd()
	return nil
}

// Active reports whether a capture is running.
func (s *Scripted) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

// Emit delivers a result to the active listener.
func (s *Scripted) Emit(result Result) error {
	listener := s.current()
	if listener == nil {
		return ErrNotStarted
	}
	listener.OnResult(result)
	return nil
}

// Fail delivers an error and ends the capture.
func (s *Scripted) Fail(err error) error {
	listener := s.detach()
	if listener == nil {
		return ErrNotStarted
	}
	listener.OnError(err)
	return nil
}

func (s *Scripted) current() Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

func (s *Scripted) detach() Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	listener := s.listener
	s.listener = nil
	return listener
}
