package reconcile

import "github.com/MarcoPoloResearchLab/notebook/internal/notebook"

// activeNoteOutcome classifies what a reload did to the note open in this context.
type activeNoteOutcome int

const (
	activeNoteUnchanged activeNoteOutcome = iota
	activeNoteUpdated
	activeNoteRemoved
)

// resolveActiveNote compares the open note before and after a reload.
// UpdatedAt is the only authority: equal stamps mean nothing changed.
func resolveActiveNote(previous notebook.Note, current notebook.Note, present bool) activeNoteOutcome {
	switch {
	case !present:
		return activeNoteRemoved
	case current.UpdatedAt.After(previous.UpdatedAt):
		return activeNoteUpdated
	default:
		return activeNoteUnchanged
	}
}
