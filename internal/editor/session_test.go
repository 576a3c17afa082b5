package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/notebook/internal/dictation"
	"github.com/MarcoPoloResearchLab/notebook/internal/notebook"
	"github.com/MarcoPoloResearchLab/notebook/internal/notify"
	"github.com/MarcoPoloResearchLab/notebook/internal/reconcile"
	"github.com/MarcoPoloResearchLab/notebook/internal/schedule"
	"github.com/MarcoPoloResearchLab/notebook/internal/storage"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type sequenceIDs struct{ next int }

func (s *sequenceIDs) NewID() (string, error) {
	s.next++
	return fmt.Sprintf("%04d", s.next), nil
}

type fakeSource struct {
	mu      sync.Mutex
	nb      *notebook.Notebook
	updates int
}

func (f *fakeSource) ActiveNote() (notebook.Note, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nb.ActiveNote()
}

func (f *fakeSource) UpdateNote(_ context.Context, id notebook.NoteID, patch notebook.NotePatch) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return f.nb.UpdateNote(id, patch)
}

func (f *fakeSource) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

// keepingRecognizer never forgets its listener, so stale callbacks can be replayed.
type keepingRecognizer struct {
	listener dictation.Listener
	stops    int
}

func (r *keepingRecognizer) Available() bool { return true }
func (r *keepingRecognizer) Start(listener dictation.Listener) error {
	r.listener = listener
	return nil
}
func (r *keepingRecognizer) Stop() error {
	r.stops++
	return nil
}

type fixture struct {
	clock    *schedule.Manual
	source   *fakeSource
	recorder *notify.Recorder
	session  *Session
	tabID    notebook.TabID
}

func newFixture(t *testing.T, recognizer dictation.Recognizer) *fixture {
	t.Helper()
	clock := schedule.NewManual(testEpoch)
	nb := notebook.New(notebook.Config{Clock: clock.Now, IDProvider: &sequenceIDs{}})
	tab, err := nb.CreateTab("Work")
	require.NoError(t, err)

	source := &fakeSource{nb: nb}
	recorder := &notify.Recorder{}
	session, err := NewSession(Config{
		Source:     source,
		Scheduler:  clock,
		Recognizer: recognizer,
		Notifier:   recorder,
	})
	require.NoError(t, err)
	return &fixture{clock: clock, source: source, recorder: recorder, session: session, tabID: tab.ID}
}

func (f *fixture) openNote(t *testing.T, title, content string) notebook.NoteID {
	t.Helper()
	f.source.mu.Lock()
	id, err := f.source.nb.CreateNote(f.tabID, title)
	require.NoError(t, err)
	if content != "" {
		_, err = f.source.nb.UpdateNote(id, notebook.NotePatch{Content: notebook.StringPtr(content)})
		require.NoError(t, err)
	}
	f.source.mu.Unlock()
	f.session.Refresh()
	return id
}

func (f *fixture) note(t *testing.T, id notebook.NoteID) notebook.Note {
	t.Helper()
	f.source.mu.Lock()
	defer f.source.mu.Unlock()
	note, ok := f.source.nb.Note(id)
	require.True(t, ok)
	return note
}

func TestNewSessionRequiresSource(t *testing.T) {
	_, err := NewSession(Config{})
	require.Error(t, err)
}

func TestRefreshSeedsBuffers(t *testing.T) {
	f := newFixture(t, nil)
	f.session.Refresh()
	require.Empty(t, f.session.NoteID())
	require.ErrorIs(t, f.session.SetTitle("x"), ErrNoActiveNote)

	id := f.openNote(t, "Plan", "steps")
	require.Equal(t, id, f.session.NoteID())
	require.Equal(t, "Plan", f.session.Title())
	require.Equal(t, "steps", f.session.Content())
	require.False(t, f.session.Dirty())

	f.source.mu.Lock()
	require.NoError(t, f.source.nb.SelectNote(""))
	f.source.mu.Unlock()
	f.session.Refresh()
	require.Empty(t, f.session.NoteID())
	require.Empty(t, f.session.Title())
	require.Empty(t, f.session.Content())
}

func TestEditsCommitAfterQuietPeriod(t *testing.T) {
	f := newFixture(t, nil)
	id := f.openNote(t, "Plan", "")

	require.NoError(t, f.session.SetContent("h"))
	f.clock.Advance(500 * time.Millisecond)
	require.NoError(t, f.session.SetContent("he"))
	require.NoError(t, f.session.SetTitle("Plan B"))
	f.clock.Advance(999 * time.Millisecond)
	require.Zero(t, f.source.updateCount())
	require.True(t, f.session.AutosavePending())

	f.clock.Advance(time.Millisecond)
	require.Equal(t, 1, f.source.updateCount())
	note := f.note(t, id)
	require.Equal(t, "Plan B", note.Title)
	require.Equal(t, "he", note.Content)
	require.False(t, f.session.Dirty())
	require.False(t, f.session.AutosavePending())
}

func TestUnchangedBuffersAreNotCommitted(t *testing.T) {
	f := newFixture(t, nil)
	f.openNote(t, "Plan", "steps")

	require.NoError(t, f.session.SetContent("changed"))
	require.NoError(t, f.session.SetContent("steps"))
	f.clock.Advance(2 * time.Second)
	require.Zero(t, f.source.updateCount())
}

func TestSaveCommitsImmediately(t *testing.T) {
	f := newFixture(t, nil)
	id := f.openNote(t, "Plan", "")

	require.NoError(t, f.session.SetContent("draft"))
	require.NoError(t, f.session.Save(context.Background()))
	require.Equal(t, 1, f.source.updateCount())
	require.Equal(t, "draft", f.note(t, id).Content)
	require.Equal(t, []string{"Note saved successfully"}, f.recorder.Titles())

	f.clock.Advance(2 * time.Second)
	require.Equal(t, 1, f.source.updateCount(), "the pending autosave was dropped")
}

func TestSwitchingNotesDropsPendingCommit(t *testing.T) {
	f := newFixture(t, nil)
	first := f.openNote(t, "First", "original")
	require.NoError(t, f.session.SetContent("unsaved"))

	second := f.openNote(t, "Second", "")
	require.Equal(t, second, f.session.NoteID())
	require.Empty(t, f.session.Content())

	f.clock.Advance(2 * time.Second)
	require.Zero(t, f.source.updateCount())
	require.Equal(t, "original", f.note(t, first).Content)
}

func TestExternalUpdatesReachCleanBuffersOnly(t *testing.T) {
	f := newFixture(t, nil)
	id := f.openNote(t, "Plan", "v1")

	f.source.mu.Lock()
	_, err := f.source.nb.UpdateNote(id, notebook.NotePatch{Content: notebook.StringPtr("v2")})
	f.source.mu.Unlock()
	require.NoError(t, err)
	f.session.Refresh()
	require.Equal(t, "v2", f.session.Content())

	require.NoError(t, f.session.SetContent("local"))
	f.source.mu.Lock()
	_, err = f.source.nb.UpdateNote(id, notebook.NotePatch{Content: notebook.StringPtr("v3")})
	f.source.mu.Unlock()
	require.NoError(t, err)
	f.session.Refresh()
	require.Equal(t, "local", f.session.Content())
	require.True(t, f.session.Dirty())
}

func TestCloseDropsPendingCommit(t *testing.T) {
	f := newFixture(t, nil)
	f.openNote(t, "Plan", "")
	require.NoError(t, f.session.SetContent("late"))

	require.NoError(t, f.session.Close())
	f.clock.Advance(2 * time.Second)
	require.Zero(t, f.source.updateCount())
	require.ErrorIs(t, f.session.SetContent("again"), ErrClosed)
	require.ErrorIs(t, f.session.Save(context.Background()), ErrClosed)
	require.NoError(t, f.session.Close())
}

func TestDictationAppendsThroughBuffer(t *testing.T) {
	recognizer := dictation.NewScripted()
	f := newFixture(t, recognizer)
	id := f.openNote(t, "Plan", "Existing text")

	require.True(t, f.session.DictationAvailable())
	require.NoError(t, f.session.ToggleDictation())
	require.True(t, f.session.Recording())

	require.NoError(t, recognizer.Emit(dictation.Result{Transcript: "buy mil"}))
	require.Equal(t, "buy mil", f.session.Interim())
	require.Equal(t, "Existing text", f.session.Content())

	require.NoError(t, recognizer.Emit(dictation.Result{Transcript: "buy milk , eggs", Final: true}))
	require.Empty(t, f.session.Interim())
	require.Equal(t, "Existing text Buy milk, eggs.", f.session.Content())
	require.Zero(t, f.source.updateCount(), "dictation goes through the autosave")

	require.NoError(t, recognizer.Emit(dictation.Result{Transcript: ",", Final: true}))
	require.Equal(t, "Existing text Buy milk, eggs.", f.session.Content())

	f.clock.Advance(time.Second)
	require.Equal(t, "Existing text Buy milk, eggs.", f.note(t, id).Content)

	require.NoError(t, f.session.ToggleDictation())
	require.False(t, f.session.Recording())
	require.False(t, recognizer.Active())
	require.Equal(t, []string{"Voice recording started", "Voice recording stopped"}, f.recorder.Titles())
}

func TestStaleDictationCallbacksAreIgnored(t *testing.T) {
	recognizer := &keepingRecognizer{}
	f := newFixture(t, recognizer)
	f.openNote(t, "Plan", "")

	require.NoError(t, f.session.StartDictation())
	stale := recognizer.listener
	require.NoError(t, f.session.StopDictation())
	require.Equal(t, 1, recognizer.stops)

	stale.OnResult(dictation.Result{Transcript: "ghost", Final: true})
	stale.OnError(errors.New("late"))
	require.Empty(t, f.session.Content())
	require.False(t, f.session.AutosavePending())

	require.NoError(t, f.session.StartDictation())
	live := recognizer.listener
	require.NoError(t, f.session.Close())
	require.Equal(t, 2, recognizer.stops)
	live.OnResult(dictation.Result{Transcript: "after close", Final: true})
	require.Empty(t, f.session.Content())
	require.NotContains(t, f.recorder.Titles(), "Speech recognition error")
}

func TestDictationErrorAndEndResetRecording(t *testing.T) {
	recognizer := dictation.NewScripted()
	f := newFixture(t, recognizer)
	f.openNote(t, "Plan", "")

	require.NoError(t, f.session.StartDictation())
	require.NoError(t, recognizer.Fail(errors.New("network")))
	require.False(t, f.session.Recording())
	notices := f.recorder.Notices()
	require.Equal(t, notify.Notice{Level: notify.LevelError, Title: "Speech recognition error", Description: "network"}, notices[len(notices)-1])

	require.NoError(t, f.session.StartDictation())
	require.NoError(t, recognizer.Emit(dictation.Result{Transcript: "pending"}))
	require.NoError(t, recognizer.Stop())
	require.False(t, f.session.Recording())
	require.Empty(t, f.session.Interim())
}

func TestDictationUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.openNote(t, "Plan", "")

	require.False(t, f.session.DictationAvailable())
	require.ErrorIs(t, f.session.StartDictation(), dictation.ErrUnavailable)
	require.False(t, f.session.Recording())
	require.Equal(t, []string{"Speech recognition not supported"}, f.recorder.Titles())
}

func TestSessionOverEngine(t *testing.T) {
	ctx := context.Background()
	hub := storage.NewMemoryHub()
	clock := schedule.NewManual(testEpoch)
	engine, err := reconcile.NewEngine(reconcile.Config{
		Store:      hub.Open(),
		Clock:      clock.Now,
		Scheduler:  clock,
		IDProvider: &sequenceIDs{},
	})
	require.NoError(t, err)
	require.NoError(t, engine.Load(ctx))

	session, err := NewSession(Config{Source: engine, Scheduler: clock})
	require.NoError(t, err)
	id, err := engine.CreateNote(ctx, "", "")
	require.NoError(t, err)
	session.Refresh()
	require.Equal(t, notebook.DefaultNoteTitle, session.Title())

	require.NoError(t, session.SetContent("hello"))
	clock.Advance(DefaultAutosaveDelay)

	note, ok := engine.Note(id)
	require.True(t, ok)
	require.Equal(t, "hello", note.Content)

	persisted, err := notebook.DecodeNotes(hub.Values()[reconcile.KeyNotes])
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	require.Equal(t, "hello", persisted[0].Content)
}
