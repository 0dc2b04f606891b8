package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"trivia-room-service/internal/store"
)

// Store is an in-memory implementation of store.Store, used by tests and
// single-node deployments. Leaves live in a flat map keyed by full path;
// branch reads assemble their subtree on demand.
type Store struct {
	mu       sync.RWMutex
	leaves   map[string][]byte
	watchers map[*watcher]struct{}
}

type watcher struct {
	path string
	ch   chan []byte
}

func NewStore() *Store {
	return &Store{
		leaves:   make(map[string][]byte),
		watchers: make(map[*watcher]struct{}),
	}
}

func (s *Store) Read(_ context.Context, path string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.leaves[path]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (s *Store) List(_ context.Context, path string) ([]store.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]store.Entry, 0)
	for _, key := range s.childKeysLocked(path) {
		entries = append(entries, store.Entry{
			Key:   key,
			Value: s.valueAtLocked(path + "/" + key),
		})
	}
	return entries, nil
}

func (s *Store) Write(_ context.Context, path string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves[path] = append([]byte(nil), value...)
	s.notifyLocked(path)
	return nil
}

func (s *Store) Update(_ context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]any)
	if raw, ok := s.leaves[path]; ok {
		if err := json.Unmarshal(raw, &merged); err != nil {
			return err
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	s.leaves[path] = raw
	s.notifyLocked(path)
	return nil
}

func (s *Store) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leaves, path)
	for key := range s.leaves {
		if strings.HasPrefix(key, path+"/") {
			delete(s.leaves, key)
		}
	}
	s.notifyLocked(path)
	return nil
}

func (s *Store) Append(_ context.Context, path string, value []byte) (string, error) {
	key := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves[path+"/"+key] = append([]byte(nil), value...)
	s.notifyLocked(path + "/" + key)
	return key, nil
}

func (s *Store) Watch(_ context.Context, path string) (<-chan []byte, func(), error) {
	w := &watcher{path: path, ch: make(chan []byte, 8)}

	s.mu.Lock()
	s.watchers[w] = struct{}{}
	initial := s.valueAtLocked(path)
	s.mu.Unlock()

	w.ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.watchers[w]; ok {
			delete(s.watchers, w)
			close(w.ch)
		}
		s.mu.Unlock()
	}
	return w.ch, cancel, nil
}

// notifyLocked pushes a fresh snapshot to every watcher whose path overlaps
// the changed one. Stale snapshots are dropped so a slow consumer cannot
// block the writer.
func (s *Store) notifyLocked(changed string) {
	for w := range s.watchers {
		if !related(changed, w.path) {
			continue
		}
		snap := s.valueAtLocked(w.path)
		select {
		case w.ch <- snap:
		default:
			select {
			case <-w.ch:
			default:
			}
			w.ch <- snap
		}
	}
}

func related(changed, watched string) bool {
	return changed == watched ||
		strings.HasPrefix(changed, watched+"/") ||
		strings.HasPrefix(watched, changed+"/")
}

// valueAtLocked returns the JSON value at path: the leaf itself, an object
// keyed by child for a branch, or JSON null when nothing exists there.
func (s *Store) valueAtLocked(path string) []byte {
	if raw, ok := s.leaves[path]; ok {
		return append([]byte(nil), raw...)
	}
	children := s.childKeysLocked(path)
	if len(children) == 0 {
		return []byte("null")
	}
	obj := make(map[string]json.RawMessage, len(children))
	for _, key := range children {
		obj[key] = s.valueAtLocked(path + "/" + key)
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return []byte("null")
	}
	return raw
}

func (s *Store) childKeysLocked(path string) []string {
	seen := make(map[string]struct{})
	prefix := path + "/"
	for key := range s.leaves {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		seen[rest] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
