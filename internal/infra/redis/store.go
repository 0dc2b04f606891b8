package redis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trivia-room-service/internal/store"
)

// Store implements store.Store on Redis. Every leaf is a string key holding
// JSON under a namespace prefix; branch reads assemble their children via
// SCAN. Change notifications ride a single pub/sub channel that carries the
// mutated path, and each watcher re-reads its own snapshot on delivery.
type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "trivia"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(path string) string { return s.prefix + ":" + path }

func (s *Store) changeChannel() string { return s.prefix + ":changes" }

func (s *Store) Read(ctx context.Context, path string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, s.key(path)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *Store) List(ctx context.Context, path string) ([]store.Entry, error) {
	keys, err := s.childKeys(ctx, path)
	if err != nil {
		return nil, err
	}
	entries := make([]store.Entry, 0, len(keys))
	for _, key := range keys {
		value, err := s.valueAt(ctx, path+"/"+key)
		if err != nil {
			return nil, err
		}
		entries = append(entries, store.Entry{Key: key, Value: value})
	}
	return entries, nil
}

func (s *Store) Write(ctx context.Context, path string, value []byte) error {
	if err := s.client.Set(ctx, s.key(path), value, 0).Err(); err != nil {
		return err
	}
	return s.publish(ctx, path)
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	merged := make(map[string]any)
	raw, err := s.client.Get(ctx, s.key(path)).Bytes()
	if err != nil && err != redis.Nil {
		return err
	}
	if err == nil {
		if err := json.Unmarshal(raw, &merged); err != nil {
			return err
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(path), out, 0).Err(); err != nil {
		return err
	}
	return s.publish(ctx, path)
}

func (s *Store) Delete(ctx context.Context, path string) error {
	keys := []string{s.key(path)}
	iter := s.client.Scan(ctx, 0, s.key(path)+"/*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	return s.publish(ctx, path)
}

func (s *Store) Append(ctx context.Context, path string, value []byte) (string, error) {
	key := uuid.NewString()
	child := path + "/" + key
	if err := s.client.Set(ctx, s.key(child), value, 0).Err(); err != nil {
		return "", err
	}
	return key, s.publish(ctx, child)
}

func (s *Store) Watch(ctx context.Context, path string) (<-chan []byte, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.changeChannel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan []byte, 8)
	initial, err := s.valueAt(ctx, path)
	if err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}
	out <- initial

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			if !related(msg.Payload, path) {
				continue
			}
			snap, err := s.valueAt(ctx, path)
			if err != nil {
				continue
			}
			select {
			case out <- snap:
			default:
				select {
				case <-out:
				default:
				}
				out <- snap
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}

func (s *Store) publish(ctx context.Context, path string) error {
	return s.client.Publish(ctx, s.changeChannel(), path).Err()
}

func (s *Store) valueAt(ctx context.Context, path string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.key(path)).Bytes()
	if err == nil {
		return raw, nil
	}
	if err != redis.Nil {
		return nil, err
	}

	keys, err := s.childKeys(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []byte("null"), nil
	}
	obj := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		value, err := s.valueAt(ctx, path+"/"+key)
		if err != nil {
			return nil, err
		}
		obj[key] = value
	}
	return json.Marshal(obj)
}

func (s *Store) childKeys(ctx context.Context, path string) ([]string, error) {
	prefix := s.key(path) + "/"
	seen := make(map[string]struct{})
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		rest := strings.TrimPrefix(iter.Val(), prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		seen[rest] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	return keys, nil
}

func related(changed, watched string) bool {
	return changed == watched ||
		strings.HasPrefix(changed, watched+"/") ||
		strings.HasPrefix(watched, changed+"/")
}
