package reconcile

import (
	"context"
	"fmt"

	"github.com/MarcoPoloResearchLab/notebook/internal/notebook"
	"github.com/MarcoPoloResearchLab/notebook/internal/notify"
)

// CreateTab adds a tab and makes it active.
func (e *Engine) CreateTab(ctx context.Context, name string) (notebook.Tab, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return notebook.Tab{}, err
	}
	tab, err := e.nb.CreateTab(name)
	if err != nil {
		return notebook.Tab{}, err
	}
	e.changedLocally(ctx)
	e.notifier.Notify(notify.Notice{
		Level:       notify.LevelSuccess,
		Title:       "Tab created",
		Description: fmt.Sprintf("%q tab has been created", tab.Name),
	})
	return tab, nil
}

// RenameTab renames a tab. Unknown tabs and blank names report false.
func (e *Engine) RenameTab(ctx context.Context, id notebook.TabID, name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return false, err
	}
	if !e.nb.UpdateTabName(id, name) {
		return false, nil
	}
	e.changedLocally(ctx)
	tab, _ := e.nb.Tab(id)
	e.notifier.Notify(notify.Notice{
		Level:       notify.LevelSuccess,
		Title:       "Tab renamed",
		Description: fmt.Sprintf("Tab renamed to %q", tab.Name),
	})
	return true, nil
}

// DeleteTab removes a tab and its notes. Deleting the last tab leaves a fresh
// default tab behind.
func (e *Engine) DeleteTab(ctx context.Context, id notebook.TabID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return false, err
	}
	tab, ok := e.nb.Tab(id)
	if !ok || !e.nb.DeleteTab(id) {
		return false, nil
	}
	if _, err := e.nb.EnsureDefaultTab(); err != nil {
		e.changedLocally(ctx)
		return true, err
	}
	e.changedLocally(ctx)
	e.notifier.Notify(notify.Notice{
		Level:       notify.LevelSuccess,
		Title:       "Tab deleted",
		Description: fmt.Sprintf("%q tab and its notes have been deleted", tab.Name),
	})
	return true, nil
}

// CreateNote adds a note to the tab and opens it. The empty tab id files the
// note under the active tab.
func (e *Engine) CreateNote(ctx context.Context, tabID notebook.TabID, title string) (notebook.NoteID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return "", err
	}
	if tabID == "" {
		tabID = e.nb.ActiveTabID()
	}
	id, err := e.nb.CreateNote(tabID, title)
	if err != nil {
		return "", err
	}
	e.changedLocally(ctx)
	e.notifier.Notify(notify.Notice{
		Level:       notify.LevelSuccess,
		Title:       "Note created",
		Description: "A new note has been created",
	})
	return id, nil
}

// UpdateNote applies a patch to a note. Unknown notes report false.
func (e *Engine) UpdateNote(ctx context.Context, id notebook.NoteID, patch notebook.NotePatch) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return false, err
	}
	updated, err := e.nb.UpdateNote(id, patch)
	if err != nil || !updated {
		return false, err
	}
	e.changedLocally(ctx)
	return true, nil
}

// DeleteNote removes a note. Unknown notes report false.
func (e *Engine) DeleteNote(ctx context.Context, id notebook.NoteID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return false, err
	}
	if !e.nb.DeleteNote(id) {
		return false, nil
	}
	e.changedLocally(ctx)
	e.notifier.Notify(notify.Notice{
		Level:       notify.LevelSuccess,
		Title:       "Note deleted",
		Description: "The note has been deleted",
	})
	return true, nil
}

// SelectTab changes the active tab.
func (e *Engine) SelectTab(ctx context.Context, id notebook.TabID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return err
	}
	if e.nb.ActiveTabID() == id {
		return nil
	}
	if err := e.nb.SelectTab(id); err != nil {
		return err
	}
	e.changedLocally(ctx)
	return nil
}

// SelectNote opens a note; the empty id closes the open note.
func (e *Engine) SelectNote(ctx context.Context, id notebook.NoteID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return err
	}
	if e.nb.ActiveNoteID() == id {
		return nil
	}
	if err := e.nb.SelectNote(id); err != nil {
		return err
	}
	e.changedLocally(ctx)
	return nil
}

func (e *Engine) Tabs() []notebook.Tab {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb.Tabs()
}

func (e *Engine) Notes() []notebook.Note {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb.Notes()
}

func (e *Engine) Tab(id notebook.TabID) (notebook.Tab, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb.Tab(id)
}

func (e *Engine) Note(id notebook.NoteID) (notebook.Note, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb.Note(id)
}

func (e *Engine) NotesByTab(tabID notebook.TabID) []notebook.Note {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb.NotesByTab(tabID)
}

func (e *Engine) ActiveNote() (notebook.Note, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb.ActiveNote()
}

func (e *Engine) Selection() notebook.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb.Selection()
}

func (e *Engine) Snapshot() notebook.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb.Snapshot()
}

// SearchNotes fuzzy-matches notes by title and content, optionally within one tab.
func (e *Engine) SearchNotes(query string, tabID notebook.TabID) []notebook.Note {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb.SearchNotes(query, tabID)
}
