// Package reconcile keeps one context's notebook in step with the shared store:
// it loads the persisted state, writes local changes back, and adopts changes
// made by other contexts through push notifications and polling.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarcoPoloResearchLab/notebook/internal/notebook"
	"github.com/MarcoPoloResearchLab/notebook/internal/notify"
	"github.com/MarcoPoloResearchLab/notebook/internal/pubsub"
	"github.com/MarcoPoloResearchLab/notebook/internal/schedule"
	"github.com/MarcoPoloResearchLab/notebook/internal/storage"
	"go.uber.org/zap"
)

const (
	// DefaultPollInterval is how often Run checks the store for external writes.
	DefaultPollInterval = 3 * time.Second
)

var noOpLogger = zap.NewNop()

// Phase is the engine lifecycle state.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Config describes the collaborators of an Engine.
type Config struct {
	Store storage.Store
	// Notebook is created from Clock and IDProvider when nil.
	Notebook   *notebook.Notebook
	Clock      func() time.Time
	IDProvider notebook.IDProvider
	Scheduler  schedule.Scheduler
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// PersistDelay debounces persistence. Zero persists inside each mutation.
	PersistDelay time.Duration
	Notifier     notify.Notifier
	Logger       *zap.Logger
}

// Engine owns one context's Notebook. All notebook access is serialized
// behind a single mutex, so the engine is safe for concurrent use.
type Engine struct {
	store        storage.Store
	clock        func() time.Time
	scheduler    schedule.Scheduler
	pollInterval time.Duration
	persistDelay time.Duration
	notifier     notify.Notifier
	logger       *zap.Logger
	events       *pubsub.Dispatcher[Event]

	mu        sync.Mutex
	nb        *notebook.Notebook
	phase     Phase
	closed    bool
	watermark int64
	written   map[string]storedValue
	dirty     bool
	persister *schedule.Debouncer

	running  atomic.Bool
	pollMu   sync.Mutex
	pollTask schedule.Timer
}

// NewEngine validates the configuration and returns an uninitialized engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, newEngineError(opEngineNew, reasonMissingStore, errMissingStore)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = schedule.NewRealScheduler()
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	persistDelay := cfg.PersistDelay
	if persistDelay < 0 {
		persistDelay = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	nb := cfg.Notebook
	if nb == nil {
		nb = notebook.New(notebook.Config{Clock: clock, IDProvider: cfg.IDProvider})
	}

	engine := &Engine{
		store:        cfg.Store,
		clock:        clock,
		scheduler:    scheduler,
		pollInterval: pollInterval,
		persistDelay: persistDelay,
		notifier:     notify.OrNop(cfg.Notifier),
		logger:       logger,
		events:       newEventDispatcher(),
		nb:           nb,
		written:      make(map[string]storedValue),
	}
	if persistDelay > 0 {
		engine.persister = schedule.NewDebouncer(scheduler, persistDelay)
	}
	return engine, nil
}

// Phase reports the lifecycle state.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Watermark returns the newest sync stamp this context wrote or adopted.
func (e *Engine) Watermark() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.watermark
}

// Subscribe delivers state-change events until ctx ends or cleanup runs.
func (e *Engine) Subscribe(ctx context.Context) (<-chan Event, func()) {
	return e.events.Subscribe(ctx, nil)
}

// Load reads the persisted state once and makes the engine ready. Unreadable
// or malformed values degrade to the default state; the engine still becomes
// ready and the first read failure is returned. A default tab synthesized for
// an empty or corrupt store is persisted before Load returns.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.phase != PhaseUninitialized {
		return ErrAlreadyLoaded
	}
	e.phase = PhaseLoading

	var loadErr error
	read := func(key string) (string, bool) {
		value, ok, err := e.store.Get(ctx, key)
		if err != nil {
			e.logError(opLoad, reasonReadFailed, err, zap.String("key", key))
			if loadErr == nil {
				loadErr = newEngineError(opLoad, reasonReadFailed, err)
			}
			return "", false
		}
		e.written[key] = storedValue{value: value, present: ok}
		return value, ok
	}

	tabs := []notebook.Tab{}
	if raw, ok := read(KeyTabs); ok {
		decoded, err := notebook.DecodeTabs(raw)
		if err != nil {
			e.logError(opLoad, reasonDecodeFailed, err, zap.String("key", KeyTabs))
		} else {
			tabs = decoded
		}
	}
	notes := []notebook.Note{}
	if raw, ok := read(KeyNotes); ok {
		decoded, err := notebook.DecodeNotes(raw)
		if err != nil {
			e.logError(opLoad, reasonDecodeFailed, err, zap.String("key", KeyNotes))
		} else {
			notes = decoded
		}
	}
	var selection notebook.Selection
	if raw, ok := read(KeyActiveTabID); ok {
		selection.ActiveTabID = notebook.TabID(raw)
	}
	if raw, ok := read(KeyActiveNote); ok {
		selection.ActiveNoteID = notebook.NoteID(raw)
	}
	if raw, ok := read(KeyLastSync); ok {
		if stamp, valid := parseLastSync(raw); valid {
			e.watermark = stamp
		}
	}

	e.nb.Restore(notebook.Snapshot{Tabs: tabs, Notes: notes, Selection: selection})
	synthesized, err := e.nb.EnsureDefaultTab()
	if err != nil {
		e.logError(opLoad, reasonNormalizeError, err)
		if loadErr == nil {
			loadErr = newEngineError(opLoad, reasonNormalizeError, err)
		}
	}
	moved := 0
	if synthesized {
		if moved = e.nb.AdoptOrphans(); moved > 0 {
			e.logger.Info("orphaned notes filed under default tab", zap.Int("notes", moved))
		}
	}
	if _, err := e.nb.Normalize(); err != nil {
		e.logError(opLoad, reasonNormalizeError, err)
	}

	e.phase = PhaseReady
	// A synthesized tab or refiled notes are written back at once so that every
	// context shares them. Nothing is written when the store could not be read.
	if (synthesized || moved > 0) && loadErr == nil {
		e.dirty = true
		_ = e.persistLocked(ctx)
	}
	e.notifier.Notify(notify.Notice{
		Level:       notify.LevelSuccess,
		Title:       "Notes loaded successfully",
		Description: fmt.Sprintf("Loaded %d notes in %d tabs", len(e.nb.Notes()), len(e.nb.Tabs())),
	})
	e.publish(EventLoaded, OriginLocal)
	return loadErr
}

// Flush writes any pending changes now.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked(ctx)
}

// Close flushes pending changes, stops timers and rejects further mutations.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	err := e.flushLocked(ctx)
	e.closed = true
	if e.persister != nil {
		e.persister.Cancel()
	}
	e.mu.Unlock()

	e.stopPolling()
	return err
}

func (e *Engine) flushLocked(ctx context.Context) error {
	if e.phase != PhaseReady || e.closed {
		return nil
	}
	if e.persister != nil && e.persister.Cancel() {
		e.dirty = true
	}
	if !e.dirty {
		return nil
	}
	return e.persistLocked(ctx)
}

// checkMutable reports whether a mutation may run. Callers hold e.mu.
func (e *Engine) checkMutable() error {
	if e.closed {
		return ErrClosed
	}
	if e.phase != PhaseReady {
		return ErrNotReady
	}
	return nil
}

// changedLocally schedules persistence and announces a local change.
func (e *Engine) changedLocally(ctx context.Context) {
	e.schedulePersistLocked(ctx)
	e.publish(EventChanged, OriginLocal)
}

func (e *Engine) publish(eventType EventType, origin Origin) {
	e.events.Publish(Event{Type: eventType, Origin: origin, Timestamp: e.clock()})
}

func (e *Engine) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	e.logger.Error("reconcile engine error", attrs...)
}

func isEngineClosed(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, storage.ErrClosed)
}
