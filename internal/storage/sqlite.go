package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/notebook/internal/pubsub"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	entriesTable       = "notebook_entries"
	columnEntryKey     = "entry_key"
	columnIsRemoved    = "is_removed"
	columnRevision     = "revision"
	orderRevisionAsc   = columnRevision + " ASC"
	queryLiveKey       = columnEntryKey + " = ? AND " + columnIsRemoved + " = ?"
	queryRevisionAfter = columnRevision + " > ?"

	statementUpsertEntry = `INSERT INTO ` + entriesTable + ` (entry_key, value, is_removed, revision, writer_id, updated_at_ms)
VALUES (?, ?, 0, (SELECT COALESCE(MAX(revision), 0) + 1 FROM ` + entriesTable + `), ?, ?)
ON CONFLICT(entry_key) DO UPDATE SET
	value = excluded.value,
	is_removed = 0,
	revision = excluded.revision,
	writer_id = excluded.writer_id,
	updated_at_ms = excluded.updated_at_ms`

	statementRemoveEntry = `UPDATE ` + entriesTable + `
SET value = '', is_removed = 1,
	revision = (SELECT COALESCE(MAX(revision), 0) + 1 FROM ` + entriesTable + `),
	writer_id = ?, updated_at_ms = ?
WHERE entry_key = ? AND is_removed = 0`
)

var errMissingDatabase = errors.New("storage: database handle is required")

// Entry is one persisted key. Removed keys keep a tombstone row so that other
// contexts can observe the removal.
type Entry struct {
	Key             string `gorm:"column:entry_key;primaryKey;size:190;not null"`
	Value           string `gorm:"column:value;type:text;not null;default:''"`
	Removed         bool   `gorm:"column:is_removed;not null;default:false"`
	Revision        int64  `gorm:"column:revision;not null;index:idx_notebook_entries_revision"`
	WriterID        string `gorm:"column:writer_id;size:190;not null;default:''"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return entriesTable
}

// SQLiteStoreConfig describes the dependencies of a SQLiteStore.
type SQLiteStoreConfig struct {
	Database *gorm.DB
	// WriterID identifies this context. A UUIDv7 is generated when empty.
	WriterID string
	// WatchPath is the database file watched for writes by other processes.
	// Watching is disabled when empty.
	WatchPath string
	Clock     func() time.Time
	Logger    *zap.Logger
}

// SQLiteStore persists keys in a SQLite table. Every write takes a new global
// revision; CheckChanges announces revisions written by other contexts.
type SQLiteStore struct {
	db         *gorm.DB
	writerID   string
	watchPath  string
	clock      func() time.Time
	logger     *zap.Logger
	dispatcher *pubsub.Dispatcher[Change]

	mu     sync.Mutex
	cursor int64
	closed bool
	stop   context.CancelFunc
	wg     sync.WaitGroup
}

// NewSQLiteStore builds a store over an already migrated database. Changes
// that predate the store are not replayed.
func NewSQLiteStore(ctx context.Context, cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	writerID := strings.TrimSpace(cfg.WriterID)
	if writerID == "" {
		value, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		writerID = value.String()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var cursor int64
	if err := cfg.Database.WithContext(ctx).
		Model(&Entry{}).
		Select("COALESCE(MAX(" + columnRevision + "), 0)").
		Scan(&cursor).Error; err != nil {
		return nil, fmt.Errorf("storage: read revision cursor: %w", err)
	}

	return &SQLiteStore{
		db:         cfg.Database,
		writerID:   writerID,
		watchPath:  strings.TrimSpace(cfg.WatchPath),
		clock:      clock,
		logger:     logger,
		dispatcher: newChangeDispatcher(),
		cursor:     cursor,
	}, nil
}

// WriterID returns the identifier stamped on this context's writes.
func (s *SQLiteStore) WriterID() string {
	return s.writerID
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	if s.isClosed() {
		return "", false, ErrClosed
	}
	var entries []Entry
	if err := s.db.WithContext(ctx).Where(queryLiveKey, key, false).Limit(1).Find(&entries).Error; err != nil {
		return "", false, fmt.Errorf("storage: get %s: %w", key, err)
	}
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[0].Value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.db.WithContext(ctx).Exec(statementUpsertEntry, key, value, s.writerID, s.clock().UnixMilli()).Error; err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.db.WithContext(ctx).Exec(statementRemoveEntry, s.writerID, s.clock().UnixMilli(), key).Error; err != nil {
		return fmt.Errorf("storage: remove %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Subscribe(ctx context.Context, keys ...string) (<-chan Change, func()) {
	return s.dispatcher.Subscribe(ctx, keyFilter(keys))
}

// CheckChanges announces every revision written by other contexts since the
// previous check and returns how many changes were published.
func (s *SQLiteStore) CheckChanges(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	var entries []Entry
	if err := s.db.WithContext(ctx).
		Where(queryRevisionAfter, s.cursor).
		Order(orderRevisionAsc).
		Find(&entries).Error; err != nil {
		return 0, fmt.Errorf("storage: scan changes: %w", err)
	}

	published := 0
	for _, entry := range entries {
		if entry.Revision > s.cursor {
			s.cursor = entry.Revision
		}
		if entry.WriterID == s.writerID {
			continue
		}
		s.dispatcher.Publish(Change{Key: entry.Key, Value: entry.Value, Removed: entry.Removed})
		published++
	}
	return published, nil
}

// Watch starts announcing changes whenever the database files are written.
// It returns once the watcher is installed; watching stops with ctx or Close.
func (s *SQLiteStore) Watch(ctx context.Context) error {
	if s.watchPath == "" {
		return fmt.Errorf("storage: watch path is not configured")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("storage: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.watchPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("storage: watch %s: %w", s.watchPath, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = watcher.Close()
		return ErrClosed
	}
	watchCtx, cancel := context.WithCancel(ctx)
	previousStop := s.stop
	s.stop = cancel
	s.wg.Add(1)
	s.mu.Unlock()
	if previousStop != nil {
		previousStop()
	}

	go func() {
		defer s.wg.Done()
		defer watcher.Close()
		base := filepath.Base(s.watchPath)
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasPrefix(filepath.Base(event.Name), base) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if _, err := s.CheckChanges(watchCtx); err != nil && !errors.Is(err, ErrClosed) && watchCtx.Err() == nil {
					s.logger.Warn("storage change scan failed", zap.String("path", s.watchPath), zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("storage watcher error", zap.String("path", s.watchPath), zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops the watcher. The database handle stays owned by the caller.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stop := s.stop
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.wg.Wait()
	return nil
}

func (s *SQLiteStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
