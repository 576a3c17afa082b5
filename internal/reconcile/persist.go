package reconcile

import (
	"context"

	"github.com/MarcoPoloResearchLab/notebook/internal/notebook"
	"go.uber.org/zap"
)

type keyWrite struct {
	key    string
	value  string
	remove bool
}

// schedulePersistLocked persists now or re-arms the debounced persist.
func (e *Engine) schedulePersistLocked(ctx context.Context) {
	e.dirty = true
	if e.persister == nil {
		_ = e.persistLocked(ctx)
		return
	}
	e.persister.Trigger(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed || !e.dirty {
			return
		}
		_ = e.persistLocked(context.Background())
	})
}

// persistLocked writes the collections and any changed selection key, then
// stamps the sync key. A failed write leaves the engine dirty so that the
// next persist retries.
func (e *Engine) persistLocked(ctx context.Context) error {
	if e.phase != PhaseReady {
		return nil
	}
	writes, err := e.pendingWrites()
	if err != nil {
		e.logError(opPersist, reasonEncodeFailed, err)
		return newEngineError(opPersist, reasonEncodeFailed, err)
	}

	wrote := false
	for _, write := range writes {
		if write.remove {
			if err := e.store.Remove(ctx, write.key); err != nil {
				e.logError(opPersist, reasonWriteFailed, err, zap.String("key", write.key))
				return newEngineError(opPersist, reasonWriteFailed, err)
			}
			e.written[write.key] = storedValue{}
		} else {
			if err := e.store.Set(ctx, write.key, write.value); err != nil {
				e.logError(opPersist, reasonWriteFailed, err, zap.String("key", write.key))
				return newEngineError(opPersist, reasonWriteFailed, err)
			}
			e.written[write.key] = storedValue{value: write.value, present: true}
		}
		wrote = true
	}

	if wrote {
		stamp := e.nextSyncStamp(ctx)
		value := formatLastSync(stamp)
		if err := e.store.Set(ctx, KeyLastSync, value); err != nil {
			e.logError(opPersist, reasonWriteFailed, err, zap.String("key", KeyLastSync))
			return newEngineError(opPersist, reasonWriteFailed, err)
		}
		e.watermark = stamp
		e.written[KeyLastSync] = storedValue{value: value, present: true}
	}
	e.dirty = false
	return nil
}

// pendingWrites lists the writes needed to bring the store in line with the
// notebook, in persistence order. Both collections are always written whole,
// since a foreign write may have replaced them without this context noticing;
// selection keys are skipped when unchanged.
func (e *Engine) pendingWrites() ([]keyWrite, error) {
	tabs := e.nb.Tabs()
	notes := e.nb.Notes()
	selection := e.nb.Selection()

	candidates := make([]keyWrite, 0, 4)
	if len(tabs) > 0 {
		encoded, err := notebook.EncodeTabs(tabs)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, keyWrite{key: KeyTabs, value: encoded})
	}
	if len(notes) > 0 || len(tabs) > 0 {
		encoded, err := notebook.EncodeNotes(notes)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, keyWrite{key: KeyNotes, value: encoded})
	}
	if selection.ActiveTabID != "" {
		candidates = append(candidates, keyWrite{key: KeyActiveTabID, value: selection.ActiveTabID.String()})
	}
	if selection.ActiveNoteID != "" {
		candidates = append(candidates, keyWrite{key: KeyActiveNote, value: selection.ActiveNoteID.String()})
	} else {
		candidates = append(candidates, keyWrite{key: KeyActiveNote, remove: true})
	}

	writes := candidates[:0]
	for _, candidate := range candidates {
		if candidate.key == KeyTabs || candidate.key == KeyNotes {
			writes = append(writes, candidate)
			continue
		}
		previous, known := e.written[candidate.key]
		if known {
			if candidate.remove && !previous.present {
				continue
			}
			if !candidate.remove && previous.present && previous.value == candidate.value {
				continue
			}
		}
		writes = append(writes, candidate)
	}
	return writes, nil
}

// nextSyncStamp returns a sync time newer than both this context's watermark
// and the stamp currently in the store, so that every other context sees the
// write as newer than anything it adopted.
func (e *Engine) nextSyncStamp(ctx context.Context) int64 {
	stamp := e.clock().UnixMilli()
	if stamp <= e.watermark {
		stamp = e.watermark + 1
	}
	raw, ok, err := e.store.Get(ctx, KeyLastSync)
	if err != nil {
		e.logger.Warn("sync stamp read failed", zap.String("key", KeyLastSync), zap.Error(err))
		return stamp
	}
	if stored, valid := parseLastSync(raw); ok && valid && stored >= stamp {
		stamp = stored + 1
	}
	return stamp
}
