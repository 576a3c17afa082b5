package reconcile

import (
	"context"

	"github.com/MarcoPoloResearchLab/notebook/internal/notebook"
	"github.com/MarcoPoloResearchLab/notebook/internal/notify"
	"github.com/MarcoPoloResearchLab/notebook/internal/storage"
	"go.uber.org/zap"
)

// Run adopts pushed changes and polls the store until ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	if e.Phase() != PhaseReady {
		return ErrNotReady
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	changes, cleanup := e.store.Subscribe(ctx, watchedKeys...)
	defer cleanup()

	e.armPoll(ctx)
	defer e.stopPolling()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if err := e.applyChange(change); err != nil && isEngineClosed(err) {
				return nil
			}
		}
	}
}

func (e *Engine) armPoll(ctx context.Context) {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()
	if ctx.Err() != nil {
		return
	}
	e.pollTask = e.scheduler.AfterFunc(e.pollInterval, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.CheckExternalChanges(ctx); err != nil && isEngineClosed(err) {
			return
		}
		e.armPoll(ctx)
	})
}

func (e *Engine) stopPolling() {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()
	if e.pollTask != nil {
		e.pollTask.Stop()
		e.pollTask = nil
	}
}

// applyChange adopts one pushed change. Collections are taken wholesale and
// may arrive in any order; selection keys belong to the writing context and
// are ignored.
func (e *Engine) applyChange(change storage.Change) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.phase != PhaseReady {
		return ErrNotReady
	}

	adopted := false
	switch change.Key {
	case KeyTabs:
		if change.Removed {
			return nil
		}
		tabs, err := notebook.DecodeTabs(change.Value)
		if err != nil {
			e.logError(opApplyChange, reasonDecodeFailed, err, zap.String("key", change.Key))
			return newEngineError(opApplyChange, reasonDecodeFailed, err)
		}
		e.nb.ReplaceTabs(tabs)
		e.written[KeyTabs] = storedValue{value: change.Value, present: true}
		adopted = true
	case KeyNotes:
		if change.Removed {
			return nil
		}
		notes, err := notebook.DecodeNotes(change.Value)
		if err != nil {
			e.logError(opApplyChange, reasonDecodeFailed, err, zap.String("key", change.Key))
			return newEngineError(opApplyChange, reasonDecodeFailed, err)
		}
		e.nb.ReplaceNotes(notes)
		e.written[KeyNotes] = storedValue{value: change.Value, present: true}
		adopted = true
	case KeyLastSync:
		if stamp, ok := parseLastSync(change.Value); ok && !change.Removed && stamp > e.watermark {
			e.watermark = stamp
			e.written[KeyLastSync] = storedValue{value: change.Value, present: true}
		}
		return nil
	default:
		return nil
	}

	if adopted {
		// The sibling collection may still be in flight, so notes whose tab
		// is unknown are kept until it arrives.
		if _, err := e.nb.Settle(); err != nil {
			e.logError(opApplyChange, reasonNormalizeError, err)
		}
		e.publish(EventChanged, OriginExternal)
	}
	return nil
}

// CheckExternalChanges reloads the collections when another context has
// stamped a newer sync time than this one knows about. It reports whether a
// reload happened.
func (e *Engine) CheckExternalChanges(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, ErrClosed
	}
	if e.phase != PhaseReady {
		return false, ErrNotReady
	}

	raw, ok, err := e.store.Get(ctx, KeyLastSync)
	if err != nil {
		e.logError(opCheckExternal, reasonReadFailed, err, zap.String("key", KeyLastSync))
		return false, newEngineError(opCheckExternal, reasonReadFailed, err)
	}
	if !ok {
		return false, nil
	}
	stamp, valid := parseLastSync(raw)
	if !valid || stamp <= e.watermark {
		return false, nil
	}

	previous, hadActive := e.nb.ActiveNote()

	if rawTabs, present, err := e.store.Get(ctx, KeyTabs); err != nil {
		e.logError(opCheckExternal, reasonReadFailed, err, zap.String("key", KeyTabs))
		return false, newEngineError(opCheckExternal, reasonReadFailed, err)
	} else if present {
		if tabs, err := notebook.DecodeTabs(rawTabs); err != nil {
			e.logError(opCheckExternal, reasonDecodeFailed, err, zap.String("key", KeyTabs))
		} else {
			e.nb.ReplaceTabs(tabs)
			e.written[KeyTabs] = storedValue{value: rawTabs, present: true}
		}
	}
	if rawNotes, present, err := e.store.Get(ctx, KeyNotes); err != nil {
		e.logError(opCheckExternal, reasonReadFailed, err, zap.String("key", KeyNotes))
		return false, newEngineError(opCheckExternal, reasonReadFailed, err)
	} else if present {
		if notes, err := notebook.DecodeNotes(rawNotes); err != nil {
			e.logError(opCheckExternal, reasonDecodeFailed, err, zap.String("key", KeyNotes))
		} else {
			e.nb.ReplaceNotes(notes)
			e.written[KeyNotes] = storedValue{value: rawNotes, present: true}
		}
	}
	if _, err := e.nb.Normalize(); err != nil {
		e.logError(opCheckExternal, reasonNormalizeError, err)
	}

	e.watermark = stamp
	e.written[KeyLastSync] = storedValue{value: raw, present: true}

	e.notifier.Notify(notify.Notice{
		Level:       notify.LevelInfo,
		Title:       "Notes synchronized",
		Description: "Changes from another window have been loaded",
	})
	if hadActive {
		current, present := e.nb.Note(previous.ID)
		switch resolveActiveNote(previous, current, present) {
		case activeNoteUpdated:
			e.notifier.Notify(notify.Notice{
				Level:       notify.LevelInfo,
				Title:       "Note updated externally",
				Description: "The note you're viewing was updated in another window",
			})
		case activeNoteRemoved:
			e.logger.Info("open note removed by another context", zap.String("note_id", previous.ID.String()))
		}
	}
	e.publish(EventSynchronized, OriginExternal)
	return true, nil
}
