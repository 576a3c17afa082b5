package notebook

import (
	"fmt"
	"strings"
	"time"
)

// Config describes the collaborators a Notebook needs.
type Config struct {
	Clock      func() time.Time
	IDProvider IDProvider
}

// Notebook owns the canonical tabs, notes and selection of one context.
// It is not safe for concurrent use; callers serialize access.
type Notebook struct {
	tabs      []Tab
	notes     []Note
	selection Selection
	clock     func() time.Time
	ids       IDProvider
}

// New constructs an empty Notebook. Missing collaborators fall back to the
// wall clock and UUIDv7 identifiers.
func New(cfg Config) *Notebook {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = NewUUIDProvider()
	}
	return &Notebook{
		tabs:  []Tab{},
		notes: []Note{},
		clock: clock,
		ids:   ids,
	}
}

// Now returns the notebook clock reading at millisecond precision.
func (n *Notebook) Now() time.Time {
	return n.clock().UTC().Truncate(time.Millisecond)
}

// CreateTab appends a tab and makes it the active tab.
func (n *Notebook) CreateTab(name string) (Tab, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Tab{}, fmt.Errorf("%w: empty", ErrInvalidTabName)
	}
	id, err := n.newID(tabIDPrefix)
	if err != nil {
		return Tab{}, err
	}
	tab := Tab{
		ID:        TabID(id),
		Name:      trimmed,
		CreatedAt: n.Now(),
	}
	n.tabs = append(copyTabs(n.tabs), tab)
	n.selection.ActiveTabID = tab.ID
	return tab, nil
}

// UpdateTabName renames a tab. Unknown ids and blank names are ignored.
func (n *Notebook) UpdateTabName(id TabID, name string) bool {
	trimmed := strings.TrimSpace(name)
	index := n.tabIndex(id)
	if index < 0 || trimmed == "" {
		return false
	}
	if n.tabs[index].Name == trimmed {
		return false
	}
	tabs := copyTabs(n.tabs)
	tabs[index].Name = trimmed
	n.tabs = tabs
	return true
}

// DeleteTab removes a tab together with every note filed under it. The
// notebook may be left without tabs; see EnsureDefaultTab.
func (n *Notebook) DeleteTab(id TabID) bool {
	index := n.tabIndex(id)
	if index < 0 {
		return false
	}

	if n.selection.ActiveTabID == id {
		n.selection.ActiveTabID = ""
		for _, tab := range n.tabs {
			if tab.ID != id {
				n.selection.ActiveTabID = tab.ID
				break
			}
		}
	}

	tabs := make([]Tab, 0, len(n.tabs)-1)
	tabs = append(tabs, n.tabs[:index]...)
	tabs = append(tabs, n.tabs[index+1:]...)
	n.tabs = tabs

	notes := make([]Note, 0, len(n.notes))
	for _, note := range n.notes {
		if note.TabID == id {
			if note.ID == n.selection.ActiveNoteID {
				n.selection.ActiveNoteID = ""
			}
			continue
		}
		notes = append(notes, note)
	}
	n.notes = notes
	return true
}

// EnsureDefaultTab synthesizes the default tab when none exist and reports
// whether it did so.
func (n *Notebook) EnsureDefaultTab() (bool, error) {
	if len(n.tabs) > 0 {
		return false, nil
	}
	id, err := n.newID(tabIDPrefix)
	if err != nil {
		return false, err
	}
	tab := Tab{
		ID:        TabID(id),
		Name:      DefaultTabName,
		CreatedAt: n.Now(),
	}
	n.tabs = []Tab{tab}
	n.selection.ActiveTabID = tab.ID
	return true, nil
}

// CreateNote appends an empty note to the tab, makes it active and returns its id.
func (n *Notebook) CreateNote(tabID TabID, title string) (NoteID, error) {
	if n.tabIndex(tabID) < 0 {
		return "", fmt.Errorf("%w: %s", ErrTabNotFound, tabID)
	}
	if title == "" {
		title = DefaultNoteTitle
	}
	id, err := n.newID(noteIDPrefix)
	if err != nil {
		return "", err
	}
	now := n.Now()
	note := Note{
		ID:        NoteID(id),
		Title:     title,
		Content:   "",
		TabID:     tabID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	n.notes = append(copyNotes(n.notes), note)
	n.selection.ActiveNoteID = note.ID
	return note.ID, nil
}

// UpdateNote shallow-merges the patch into the note and re-stamps UpdatedAt.
// Unknown ids are ignored. Moving a note to an unknown tab is rejected.
func (n *Notebook) UpdateNote(id NoteID, patch NotePatch) (bool, error) {
	index := n.noteIndex(id)
	if index < 0 {
		return false, nil
	}
	if patch.TabID != nil && n.tabIndex(*patch.TabID) < 0 {
		return false, fmt.Errorf("%w: %s", ErrTabNotFound, *patch.TabID)
	}

	notes := copyNotes(n.notes)
	note := notes[index]
	if patch.Title != nil {
		note.Title = *patch.Title
	}
	if patch.Content != nil {
		note.Content = *patch.Content
	}
	if patch.TabID != nil {
		note.TabID = *patch.TabID
	}
	note.UpdatedAt = n.nextUpdatedAt(note.UpdatedAt)
	notes[index] = note
	n.notes = notes
	return true, nil
}

// DeleteNote removes a note and clears the selection when it was active.
func (n *Notebook) DeleteNote(id NoteID) bool {
	index := n.noteIndex(id)
	if index < 0 {
		return false
	}
	notes := make([]Note, 0, len(n.notes)-1)
	notes = append(notes, n.notes[:index]...)
	notes = append(notes, n.notes[index+1:]...)
	n.notes = notes
	if n.selection.ActiveNoteID == id {
		n.selection.ActiveNoteID = ""
	}
	return true
}

// SelectTab changes the active tab.
func (n *Notebook) SelectTab(id TabID) error {
	if n.tabIndex(id) < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	n.selection.ActiveTabID = id
	return nil
}

// SelectNote opens a note. The empty id closes the open note.
func (n *Notebook) SelectNote(id NoteID) error {
	if id != "" && n.noteIndex(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	n.selection.ActiveNoteID = id
	return nil
}

// Tabs returns the tabs in creation order.
func (n *Notebook) Tabs() []Tab {
	return copyTabs(n.tabs)
}

// Notes returns every note in insertion order.
func (n *Notebook) Notes() []Note {
	return copyNotes(n.notes)
}

// Tab looks up a tab by id.
func (n *Notebook) Tab(id TabID) (Tab, bool) {
	index := n.tabIndex(id)
	if index < 0 {
		return Tab{}, false
	}
	return n.tabs[index], true
}

// Note looks up a note by id.
func (n *Notebook) Note(id NoteID) (Note, bool) {
	index := n.noteIndex(id)
	if index < 0 {
		return Note{}, false
	}
	return n.notes[index], true
}

// NotesByTab returns the notes filed under a tab in insertion order.
func (n *Notebook) NotesByTab(tabID TabID) []Note {
	filtered := make([]Note, 0)
	for _, note := range n.notes {
		if note.TabID == tabID {
			filtered = append(filtered, note)
		}
	}
	return filtered
}

// ActiveNote resolves the active note. Dangling references resolve to none.
func (n *Notebook) ActiveNote() (Note, bool) {
	if n.selection.ActiveNoteID == "" {
		return Note{}, false
	}
	return n.Note(n.selection.ActiveNoteID)
}

// ActiveTabID returns the active tab id.
func (n *Notebook) ActiveTabID() TabID {
	return n.selection.ActiveTabID
}

// ActiveNoteID returns the active note id, or the empty id when no existing note is open.
func (n *Notebook) ActiveNoteID() NoteID {
	note, ok := n.ActiveNote()
	if !ok {
		return ""
	}
	return note.ID
}

// Selection returns the resolved selection.
func (n *Notebook) Selection() Selection {
	return Selection{
		ActiveTabID:  n.selection.ActiveTabID,
		ActiveNoteID: n.ActiveNoteID(),
	}
}

// Snapshot returns a detached copy of the notebook state.
func (n *Notebook) Snapshot() Snapshot {
	return Snapshot{
		Tabs:      n.Tabs(),
		Notes:     n.Notes(),
		Selection: n.Selection(),
	}
}

// Restore replaces the whole state. The active note id is kept verbatim and
// resolved lazily.
func (n *Notebook) Restore(snapshot Snapshot) {
	n.tabs = copyTabs(snapshot.Tabs)
	n.notes = copyNotes(snapshot.Notes)
	n.selection = snapshot.Selection
}

// ReplaceTabs adopts an externally written tab collection.
func (n *Notebook) ReplaceTabs(tabs []Tab) {
	n.tabs = copyTabs(tabs)
}

// ReplaceNotes adopts an externally written note collection.
func (n *Notebook) ReplaceNotes(notes []Note) {
	n.notes = copyNotes(notes)
}

// AdoptOrphans files notes whose tab no longer exists under the active tab
// and returns how many were moved.
func (n *Notebook) AdoptOrphans() int {
	if n.tabIndex(n.selection.ActiveTabID) < 0 {
		return 0
	}
	moved := 0
	notes := copyNotes(n.notes)
	for i := range notes {
		if n.tabIndex(notes[i].TabID) < 0 {
			notes[i].TabID = n.selection.ActiveTabID
			moved++
		}
	}
	if moved > 0 {
		n.notes = notes
	}
	return moved
}

// Settle repairs what a replacement of a single collection can break while
// the other collection is still in flight: it guarantees a tab, an existing
// active tab and no dangling active note. Notes whose tab is not known yet
// are kept. It reports whether anything changed.
func (n *Notebook) Settle() (bool, error) {
	changed, err := n.EnsureDefaultTab()
	if err != nil {
		return changed, err
	}
	if n.tabIndex(n.selection.ActiveTabID) < 0 {
		n.selection.ActiveTabID = n.tabs[0].ID
		changed = true
	}
	if n.selection.ActiveNoteID != "" && n.noteIndex(n.selection.ActiveNoteID) < 0 {
		n.selection.ActiveNoteID = ""
		changed = true
	}
	return changed, nil
}

// Normalize restores every notebook invariant after both collections were
// replaced together: Settle plus removal of notes whose tab is gone. It
// reports whether anything changed.
func (n *Notebook) Normalize() (bool, error) {
	changed, err := n.Settle()
	if err != nil {
		return changed, err
	}

	notes := make([]Note, 0, len(n.notes))
	for _, note := range n.notes {
		if n.tabIndex(note.TabID) < 0 {
			continue
		}
		notes = append(notes, note)
	}
	if len(notes) == len(n.notes) {
		return changed, nil
	}
	n.notes = notes
	if n.selection.ActiveNoteID != "" && n.noteIndex(n.selection.ActiveNoteID) < 0 {
		n.selection.ActiveNoteID = ""
	}
	return true, nil
}

func (n *Notebook) nextUpdatedAt(previous time.Time) time.Time {
	next := n.Now()
	if !next.After(previous) {
		next = previous.Add(time.Millisecond)
	}
	return next
}

func (n *Notebook) newID(prefix string) (string, error) {
	raw, err := n.ids.NewID()
	if err != nil {
		return "", err
	}
	return prefix + raw, nil
}

func (n *Notebook) tabIndex(id TabID) int {
	if id == "" {
		return -1
	}
	for i, tab := range n.tabs {
		if tab.ID == id {
			return i
		}
	}
	return -1
}

func (n *Notebook) noteIndex(id NoteID) int {
	if id == "" {
		return -1
	}
	for i, note := range n.notes {
		if note.ID == id {
			return i
		}
	}
	return -1
}

func copyTabs(tabs []Tab) []Tab {
	out := make([]Tab, len(tabs))
	copy(out, tabs)
	return out
}

func copyNotes(notes []Note) []Note {
	out := make([]Note, len(notes))
	copy(out, notes)
	return out
}
