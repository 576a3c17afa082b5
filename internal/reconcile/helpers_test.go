package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/notebook/internal/notify"
	"github.com/MarcoPoloResearchLab/notebook/internal/schedule"
	"github.com/MarcoPoloResearchLab/notebook/internal/storage"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type sequenceIDs struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("%s%04d", s.prefix, s.next), nil
}

// recordingStore wraps a store, records its writes and can inject failures.
type recordingStore struct {
	storage.Store

	mu      sync.Mutex
	ops     []string
	getErr  error
	setErr  error
	setSeen map[string]int
}

func newRecordingStore(inner storage.Store) *recordingStore {
	return &recordingStore{Store: inner, setSeen: make(map[string]int)}
}

func (s *recordingStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return s.Store.Get(ctx, key)
}

func (s *recordingStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	err := s.setErr
	if err == nil {
		s.ops = append(s.ops, "set "+key)
		s.setSeen[key]++
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Set(ctx, key, value)
}

func (s *recordingStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	err := s.setErr
	if err == nil {
		s.ops = append(s.ops, "remove "+key)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Remove(ctx, key)
}

func (s *recordingStore) takeOps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := s.ops
	s.ops = nil
	return ops
}

func (s *recordingStore) sets(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setSeen[key]
}

func (s *recordingStore) failWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = err
}

func (s *recordingStore) failReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

type engineOption func(*Config)

func withPersistDelay(delay time.Duration) engineOption {
	return func(cfg *Config) { cfg.PersistDelay = delay }
}

func withNotifier(notifier notify.Notifier) engineOption {
	return func(cfg *Config) { cfg.Notifier = notifier }
}

func withPollInterval(interval time.Duration) engineOption {
	return func(cfg *Config) { cfg.PollInterval = interval }
}

func withRealScheduler() engineOption {
	return func(cfg *Config) {
		cfg.Scheduler = schedule.NewRealScheduler()
		cfg.Clock = time.Now
	}
}

// newTestEngine builds an engine over store whose clock and timers are driven
// by clock.
func newTestEngine(t *testing.T, store storage.Store, clock *schedule.Manual, idPrefix string, options ...engineOption) *Engine {
	t.Helper()
	cfg := Config{
		Store:      store,
		Clock:      clock.Now,
		Scheduler:  clock,
		IDProvider: &sequenceIDs{prefix: idPrefix},
	}
	for _, option := range options {
		option(&cfg)
	}
	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	return engine
}

func mustLoad(t *testing.T, engine *Engine) {
	t.Helper()
	require.NoError(t, engine.Load(context.Background()))
	require.Equal(t, PhaseReady, engine.Phase())
}

func drainChanges(stream <-chan storage.Change) []storage.Change {
	var changes []storage.Change
	for {
		select {
		case change := <-stream:
			changes = append(changes, change)
		default:
			return changes
		}
	}
}
