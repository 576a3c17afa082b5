package notebook

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

type sequenceIDGenerator struct {
	next int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%04d", g.next), nil
}

type stepClock struct {
	current time.Time
	step    time.Duration
}

func (c *stepClock) Now() time.Time {
	value := c.current
	c.current = c.current.Add(c.step)
	return value
}

func newTestNotebook(t *testing.T, step time.Duration) (*Notebook, *stepClock) {
	t.Helper()
	clock := &stepClock{current: time.Unix(1700000000, 0).UTC(), step: step}
	return New(Config{Clock: clock.Now, IDProvider: &sequenceIDGenerator{}}), clock
}

func mustCreateTab(t *testing.T, book *Notebook, name string) Tab {
	t.Helper()
	tab, err := book.CreateTab(name)
	if err != nil {
		t.Fatalf("unexpected create tab error: %v", err)
	}
	return tab
}

func mustCreateNote(t *testing.T, book *Notebook, tabID TabID, title string) NoteID {
	t.Helper()
	id, err := book.CreateNote(tabID, title)
	if err != nil {
		t.Fatalf("unexpected create note error: %v", err)
	}
	return id
}

func mustUpdateNote(t *testing.T, book *Notebook, id NoteID, patch NotePatch) {
	t.Helper()
	updated, err := book.UpdateNote(id, patch)
	if err != nil {
		t.Fatalf("unexpected update note error: %v", err)
	}
	if !updated {
		t.Fatalf("expected note %s to be updated", id)
	}
}

func assertNoOrphans(t *testing.T, book *Notebook) {
	t.Helper()
	for _, note := range book.Notes() {
		if _, ok := book.Tab(note.TabID); !ok {
			t.Fatalf("note %s references missing tab %s", note.ID, note.TabID)
		}
	}
}
