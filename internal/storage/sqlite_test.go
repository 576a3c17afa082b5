package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&Entry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestSQLiteStore(t *testing.T, db *gorm.DB, writerID, watchPath string) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), SQLiteStoreConfig{
		Database:  db,
		WriterID:  writerID,
		WatchPath: watchPath,
		Clock:     func() time.Time { return time.UnixMilli(1700000000000) },
	})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreSetGetRemove(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notebook.db")
	store := newTestSQLiteStore(t, openTestDatabase(t, path), "writer-a", "")

	if _, ok, err := store.Get(ctx, "notebook-tabs"); err != nil || ok {
		t.Fatalf("expected missing key, got %v %v", ok, err)
	}
	if err := store.Set(ctx, "notebook-tabs", `[{"id":"tab-1","name":"General"}]`); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	if err := store.Set(ctx, "notebook-tabs", `[]`); err != nil {
		t.Fatalf("unexpected overwrite error: %v", err)
	}
	value, ok, err := store.Get(ctx, "notebook-tabs")
	if err != nil || !ok || value != "[]" {
		t.Fatalf("unexpected get result %q %v %v", value, ok, err)
	}

	if err := store.Remove(ctx, "notebook-tabs"); err != nil {
		t.Fatalf("unexpected remove error: %v", err)
	}
	if _, ok, err := store.Get(ctx, "notebook-tabs"); err != nil || ok {
		t.Fatalf("expected removed key to be missing, got %v %v", ok, err)
	}
	if err := store.Set(ctx, "notebook-tabs", "[]"); err != nil {
		t.Fatalf("expected tombstoned key to be writable: %v", err)
	}

	var entries []Entry
	if err := store.db.Order(orderRevisionAsc).Find(&entries).Error; err != nil {
		t.Fatalf("failed to load entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Revision != 4 || entries[0].Removed {
		t.Fatalf("unexpected entries: %#v", entries)
	}
	if entries[0].WriterID != "writer-a" || entries[0].UpdatedAtMillis != 1700000000000 {
		t.Fatalf("unexpected entry metadata: %#v", entries[0])
	}
}

func TestSQLiteStoreAnnouncesForeignRevisions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "notebook.db")
	first := newTestSQLiteStore(t, openTestDatabase(t, path), "writer-a", "")
	second := newTestSQLiteStore(t, openTestDatabase(t, path), "writer-b", "")

	firstStream, firstCleanup := first.Subscribe(ctx)
	defer firstCleanup()
	secondStream, secondCleanup := second.Subscribe(ctx, "notebook-notes", "notebook-active-note-id")
	defer secondCleanup()

	if err := first.Set(ctx, "notebook-notes", "[]"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	if err := first.Set(ctx, "notebook-last-sync", "1700000000000"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	if err := first.Set(ctx, "notebook-active-note-id", "note-1"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	if err := first.Remove(ctx, "notebook-active-note-id"); err != nil {
		t.Fatalf("unexpected remove error: %v", err)
	}

	published, err := second.CheckChanges(ctx)
	if err != nil {
		t.Fatalf("unexpected scan error: %v", err)
	}
	if published != 2 {
		t.Fatalf("expected the latest revision of each foreign key, got %d", published)
	}

	var received []Change
	for len(received) < 2 {
		select {
		case change := <-secondStream:
			received = append(received, change)
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("expected filtered changes, got %#v", received)
		}
	}
	if received[0].Key != "notebook-notes" || received[0].Value != "[]" {
		t.Fatalf("unexpected first change: %#v", received[0])
	}
	if received[1].Key != "notebook-active-note-id" || !received[1].Removed {
		t.Fatalf("unexpected second change: %#v", received[1])
	}

	published, err = first.CheckChanges(ctx)
	if err != nil {
		t.Fatalf("unexpected scan error: %v", err)
	}
	if published != 0 {
		t.Fatalf("writer must not announce its own revisions, got %d", published)
	}
	select {
	case change := <-firstStream:
		t.Fatalf("writer observed its own change: %#v", change)
	default:
	}

	published, err = second.CheckChanges(ctx)
	if err != nil || published != 0 {
		t.Fatalf("expected no new revisions, got %d %v", published, err)
	}
}

func TestSQLiteStoreSkipsHistoryOnOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notebook.db")
	db := openTestDatabase(t, path)
	writer := newTestSQLiteStore(t, db, "writer-a", "")
	if err := writer.Set(ctx, "notebook-tabs", "[]"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}

	late := newTestSQLiteStore(t, db, "writer-b", "")
	published, err := late.CheckChanges(ctx)
	if err != nil || published != 0 {
		t.Fatalf("expected history to be skipped, got %d %v", published, err)
	}
}

func TestSQLiteStoreWatchPublishesForeignWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "notebook.db")
	writer := newTestSQLiteStore(t, openTestDatabase(t, path), "writer-a", "")
	watcher := newTestSQLiteStore(t, openTestDatabase(t, path), "writer-b", path)

	stream, cleanup := watcher.Subscribe(ctx, "notebook-tabs")
	defer cleanup()
	if err := watcher.Watch(ctx); err != nil {
		t.Skipf("file watching unavailable: %v", err)
	}

	if err := writer.Set(ctx, "notebook-tabs", `[{"id":"tab-1","name":"X"}]`); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}

	select {
	case change := <-stream:
		if change.Value != `[{"id":"tab-1","name":"X"}]` {
			t.Fatalf("unexpected change: %#v", change)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected watcher to announce the foreign write")
	}
}
