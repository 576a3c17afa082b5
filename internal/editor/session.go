// Package editor buffers edits to the open note and commits them to the
// notebook after a quiet period or on explicit save.
package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/notebook/internal/dictation"
	"github.com/MarcoPoloResearchLab/notebook/internal/notebook"
	"github.com/MarcoPoloResearchLab/notebook/internal/notify"
	"github.com/MarcoPoloResearchLab/notebook/internal/schedule"
	"go.uber.org/zap"
)

// DefaultAutosaveDelay is the quiet period before buffered edits are committed.
const DefaultAutosaveDelay = time.Second

var (
	// ErrNoActiveNote indicates an edit while no note is open.
	ErrNoActiveNote = errors.New("editor: no active note")
	// ErrClosed indicates that the session was used after Close.
	ErrClosed = errors.New("editor: session closed")

	errMissingSource = errors.New("editor: source is required")
)

// Source is the notebook the session edits.
type Source interface {
	ActiveNote() (notebook.Note, bool)
	UpdateNote(ctx context.Context, id notebook.NoteID, patch notebook.NotePatch) (bool, error)
}

// Config describes the collaborators of a Session.
type Config struct {
	Source        Source
	Scheduler     schedule.Scheduler
	AutosaveDelay time.Duration
	// Recognizer defaults to dictation.Unavailable.
	Recognizer dictation.Recognizer
	Notifier   notify.Notifier
	Logger     *zap.Logger
}

// Session holds the title and content buffers of the open note.
type Session struct {
	source     Source
	recognizer dictation.Recognizer
	notifier   notify.Notifier
	logger     *zap.Logger
	autosave   *schedule.Debouncer

	mu          sync.Mutex
	noteID      notebook.NoteID
	title       string
	content     string
	seenTitle   string
	seenContent string
	interim     string
	recording   bool
	capture     uint64
	closed      bool
}

// NewSession builds a session; call Refresh to open the active note.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Source == nil {
		return nil, errMissingSource
	}
	delay := cfg.AutosaveDelay
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	recognizer := cfg.Recognizer
	if recognizer == nil {
		recognizer = dictation.Unavailable()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		source:     cfg.Source,
		recognizer: recognizer,
		notifier:   notify.OrNop(cfg.Notifier),
		logger:     logger,
		autosave:   schedule.NewDebouncer(cfg.Scheduler, delay),
	}, nil
}

// Refresh re-reads the active note. A different note replaces the buffers and
// drops any pending commit; the same note adopts model values while the
// buffers are clean.
func (s *Session) Refresh() {
	note, ok := s.source.ActiveNote()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if !ok {
		if s.noteID != "" {
			s.autosave.Cancel()
		}
		s.noteID = ""
		s.setBuffers("", "")
		return
	}
	if note.ID != s.noteID {
		s.autosave.Cancel()
		s.noteID = note.ID
		s.setBuffers(note.Title, note.Content)
		return
	}
	if !s.dirtyLocked() {
		s.title = note.Title
		s.content = note.Content
	}
	s.seenTitle = note.Title
	s.seenContent = note.Content
}

func (s *Session) setBuffers(title, content string) {
	s.title = title
	s.content = content
	s.seenTitle = title
	s.seenContent = content
	s.interim = ""
}

// NoteID returns the open note, or the empty id.
func (s *Session) NoteID() notebook.NoteID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noteID
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// Interim returns the unsettled dictation text. It is never committed.
func (s *Session) Interim() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interim
}

// Recording reports whether dictation is capturing.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Dirty reports whether the buffers differ from the last seen note values.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

func (s *Session) dirtyLocked() bool {
	return s.title != s.seenTitle || s.content != s.seenContent
}

// AutosavePending reports whether a debounced commit is armed.
func (s *Session) AutosavePending() bool {
	return s.autosave.Pending()
}

// SetTitle replaces the title buffer and re-arms the autosave.
func (s *Session) SetTitle(title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(); err != nil {
		return err
	}
	s.title = title
	s.armLocked()
	return nil
}

// SetContent replaces the content buffer and re-arms the autosave.
func (s *Session) SetContent(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(); err != nil {
		return err
	}
	s.content = content
	s.armLocked()
	return nil
}

func (s *Session) checkEditable() error {
	if s.closed {
		return ErrClosed
	}
	if s.noteID == "" {
		return ErrNoActiveNote
	}
	return nil
}

func (s *Session) armLocked() {
	s.autosave.Trigger(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || !s.dirtyLocked() {
			return
		}
		if err := s.commitLocked(context.Background()); err != nil {
			s.logger.Warn("autosave failed", zap.String("note_id", s.noteID.String()), zap.Error(err))
		}
	})
}

// Save commits the buffers now, dropping any pending autosave.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(); err != nil {
		return err
	}
	s.autosave.Cancel()
	if err := s.commitLocked(ctx); err != nil {
		s.notifier.Notify(notify.Notice{Level: notify.LevelError, Title: "Failed to save note", Description: err.Error()})
		return err
	}
	s.notifier.Notify(notify.Notice{Level: notify.LevelSuccess, Title: "Note saved successfully"})
	return nil
}

func (s *Session) commitLocked(ctx context.Context) error {
	title, content := s.title, s.content
	updated, err := s.source.UpdateNote(ctx, s.noteID, notebook.NotePatch{
		Title:   notebook.StringPtr(title),
		Content: notebook.StringPtr(content),
	})
	if err != nil {
		return err
	}
	if !updated {
		return notebook.ErrNoteNotFound
	}
	s.seenTitle = title
	s.seenContent = content
	return nil
}

// Close drops the pending autosave and stops dictation. Later recognizer
// callbacks are ignored.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.autosave.Cancel()
	wasRecording := s.recording
	s.recording = false
	s.interim = ""
	s.capture++
	s.mu.Unlock()

	if wasRecording {
		return s.recognizer.Stop()
	}
	return nil
}

// DictationAvailable reports whether a recognizer is present.
func (s *Session) DictationAvailable() bool {
	return s.recognizer.Available()
}

// StartDictation begins capturing speech into the content buffer.
func (s *Session) StartDictation() error {
	if !s.recognizer.Available() {
		s.notifier.Notify(notify.Notice{Level: notify.LevelError, Title: "Speech recognition not supported"})
		return dictation.ErrUnavailable
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.recording {
		s.mu.Unlock()
		return nil
	}
	s.capture++
	s.recording = true
	listener := &captureListener{session: s, capture: s.capture}
	s.mu.Unlock()

	if err := s.recognizer.Start(listener); err != nil {
		s.mu.Lock()
		if s.capture == listener.capture {
			s.recording = false
		}
		s.mu.Unlock()
		s.notifier.Notify(notify.Notice{Level: notify.LevelError, Title: "Speech recognition error", Description: err.Error()})
		return err
	}
	s.notifier.Notify(notify.Notice{
		Level:       notify.LevelSuccess,
		Title:       "Voice recording started",
		Description: "Speak clearly into your microphone",
	})
	return nil
}

// StopDictation ends the capture. Results still in flight are ignored.
func (s *Session) StopDictation() error {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return nil
	}
	s.recording = false
	s.interim = ""
	s.capture++
	s.mu.Unlock()

	if err := s.recognizer.Stop(); err != nil {
		return err
	}
	s.notifier.Notify(notify.Notice{Level: notify.LevelSuccess, Title: "Voice recording stopped"})
	return nil
}

// ToggleDictation starts or stops dictation.
func (s *Session) ToggleDictation() error {
	if s.Recording() {
		return s.StopDictation()
	}
	return s.StartDictation()
}

type captureListener struct {
	session *Session
	capture uint64
}

func (l *captureListener) OnResult(result dictation.Result) {
	s := l.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.capture != l.capture {
		return
	}
	if !result.Final {
		s.interim = result.Transcript
		return
	}
	s.interim = ""
	segment := dictation.Normalize(result.Transcript)
	if segment == "" || s.noteID == "" {
		return
	}
	s.content = appendSegment(s.content, segment)
	s.armLocked()
}

func (l *captureListener) OnError(err error) {
	s := l.session
	s.mu.Lock()
	if s.closed || s.capture != l.capture {
		s.mu.Unlock()
		return
	}
	s.recording = false
	s.interim = ""
	s.capture++
	s.mu.Unlock()

	description := ""
	if err != nil {
		description = err.Error()
	}
	s.notifier.Notify(notify.Notice{Level: notify.LevelError, Title: "Speech recognition error", Description: description})
}

func (l *captureListener) OnEnd() {
	s := l.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.capture != l.capture {
		return
	}
	s.recording = false
	s.interim = ""
}

func appendSegment(content, segment string) string {
	if content == "" {
		return segment
	}
	if strings.HasSuffix(content, " ") || strings.HasSuffix(content, "\n") {
		return content + segment
	}
	return content + " " + segment
}
