// Package store defines the path-addressed object store the service keeps all
// of its state in. Paths are '/'-separated; a leaf holds one JSON value and a
// branch is read as a JSON object keyed by child. Writes are last-write-wins;
// watchers receive the full value at their path on every change beneath it.
package store

import (
	"context"
	"encoding/json"
	"sort"
)

// Entry is one direct child of a branch path.
type Entry struct {
	Key   string
	Value []byte
}

// Store is the abstract realtime backend. Implementations must deliver an
// initial snapshot on Watch attach and a fresh full snapshot after every
// change at or under the watched path.
type Store interface {
	// Read returns the value at a leaf path, with ok=false when absent.
	Read(ctx context.Context, path string) (value []byte, ok bool, err error)
	// List returns the direct children of a branch path, possibly empty.
	List(ctx context.Context, path string) ([]Entry, error)
	// Write replaces the whole value at a leaf path.
	Write(ctx context.Context, path string, value []byte) error
	// Update merges the given fields into the JSON object at path.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Delete removes the leaf at path, or the whole subtree for a branch.
	Delete(ctx context.Context, path string) error
	// Append writes value under a freshly generated child key of path and
	// returns that key.
	Append(ctx context.Context, path string, value []byte) (key string, err error)
	// Watch streams full snapshots of the value at path. The caller must
	// invoke the returned cancel function to avoid leaks.
	Watch(ctx context.Context, path string) (<-chan []byte, func(), error)
}

// GetJSON reads and decodes the value at a leaf path.
func GetJSON[T any](ctx context.Context, s Store, path string) (T, bool, error) {
	var out T
	raw, ok, err := s.Read(ctx, path)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, err
	}
	return out, true, nil
}

// PutJSON encodes v and writes it at path.
func PutJSON(ctx context.Context, s Store, path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Write(ctx, path, raw)
}

// AppendJSON encodes v and appends it under path, returning the child key.
func AppendJSON(ctx context.Context, s Store, path string, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return s.Append(ctx, path, raw)
}

// ListJSON decodes every direct child of a branch path, ordered by child key
// for deterministic iteration.
func ListJSON[T any](ctx context.Context, s Store, path string) ([]T, error) {
	entries, err := s.List(ctx, path)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	out := make([]T, 0, len(entries))
	for _, entry := range entries {
		var v T
		if err := json.Unmarshal(entry.Value, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
