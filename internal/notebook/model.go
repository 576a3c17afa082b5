package notebook

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	maxIdentifierLength = 190

	// DefaultTabName names the tab synthesized when no tabs exist.
	DefaultTabName = "General"
	// DefaultNoteTitle is used when a note is created without a title.
	DefaultNoteTitle = "New Note"
)

var (
	// ErrInvalidTabID indicates that a tab identifier is empty or exceeds storage bounds.
	ErrInvalidTabID = errors.New("notebook: invalid tab id")
	// ErrInvalidNoteID indicates that a note identifier is empty or exceeds storage bounds.
	ErrInvalidNoteID = errors.New("notebook: invalid note id")
	// ErrInvalidTabName indicates that a tab name is empty after trimming.
	ErrInvalidTabName = errors.New("notebook: invalid tab name")
	// ErrTabNotFound indicates that a referenced tab does not exist.
	ErrTabNotFound = errors.New("notebook: tab not found")
	// ErrNoteNotFound indicates that a referenced note does not exist.
	ErrNoteNotFound = errors.New("notebook: note not found")
)

// TabID represents a validated tab identifier.
type TabID string

// NewTabID validates raw input and returns a TabID.
func NewTabID(rawInput string) (TabID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTabID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidTabID, maxIdentifierLength)
	}
	return TabID(trimmed), nil
}

// String returns the underlying string identifier.
func (id TabID) String() string {
	return string(id)
}

// NoteID represents a validated note identifier. The zero value means "no note".
type NoteID string

// NewNoteID validates raw input and returns a NoteID.
func NewNoteID(rawInput string) (NoteID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidNoteID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidNoteID, maxIdentifierLength)
	}
	return NoteID(trimmed), nil
}

// String returns the underlying string identifier.
func (id NoteID) String() string {
	return string(id)
}

// Tab groups notes under a display name.
type Tab struct {
	ID        TabID     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// Note is a titled text document owned by exactly one tab. UpdatedAt drives
// last-writer-wins decisions and only moves on content-affecting mutations.
type Note struct {
	ID        NoteID    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	TabID     TabID     `json:"tabId" yaml:"tabId"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// NotePatch carries the fields of a partial note update. Nil fields are left untouched.
type NotePatch struct {
	Title   *string
	Content *string
	TabID   *TabID
}

// Selection captures which tab and note the user is looking at.
type Selection struct {
	ActiveTabID  TabID
	ActiveNoteID NoteID
}

// Snapshot is a detached copy of the notebook state.
type Snapshot struct {
	Tabs      []Tab     `json:"tabs" yaml:"tabs"`
	Notes     []Note    `json:"notes" yaml:"notes"`
	Selection Selection `json:"-" yaml:"-"`
}

// StringPtr is a convenience for building NotePatch values.
func StringPtr(value string) *string {
	v := value
	return &v
}
