package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"marketscraper/logger"
)

// Mirror receives a copy of every document the store rewrites. Key is the
// slash separated path relative to the store root.
type Mirror interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Identified records can be deduplicated by AppendUnique. The returned id must
// match the record's encoded "id" field.
type Identified interface {
	RecordID() string
}

// Store keeps capped JSON arrays on the local filesystem. Every rewrite is
// atomic and serialized per document path.
type Store struct {
	root       string
	caps       map[string]int
	defaultCap int
	mirror     Mirror
	log        *logger.Log
	locks      sync.Map // path -> *sync.Mutex
}

type Option func(*Store)

// WithMirror copies every rewritten document to m. Mirror failures are logged
// and never fail the write.
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

// WithDefaultCap sets the cap used for collections missing from the caps map.
func WithDefaultCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.defaultCap = n
		}
	}
}

func WithLogger(log *logger.Log) Option {
	return func(s *Store) { s.log = log }
}

func New(root string, caps map[string]int, opts ...Option) *Store {
	s := &Store{
		root:       root,
		caps:       make(map[string]int, len(caps)),
		defaultCap: 1000,
		log:        logger.GetLogger(),
	}
	for name, n := range caps {
		s.caps[name] = n
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cap returns the retention cap of a collection.
func (s *Store) Cap(collection string) int {
	if n, ok := s.caps[collection]; ok && n > 0 {
		return n
	}
	return s.defaultCap
}

// Append adds records to the document at key in arrival order, evicting the
// oldest entries beyond the collection cap. It returns the retained length.
// An unreadable existing document counts as empty.
func (s *Store) Append(ctx context.Context, key Key, records ...any) (int, error) {
	rel, err := key.Path()
	if err != nil {
		return 0, err
	}
	encoded, err := encodeAll(records)
	if err != nil {
		return 0, err
	}

	unlock := s.lock(rel)
	defer unlock()

	items := s.readLocked(rel)
	if len(encoded) == 0 {
		return len(items), nil
	}
	items = capTail(append(items, encoded...), s.Cap(key.Collection))
	if err := s.writeLocked(ctx, key.Collection, rel, items); err != nil {
		return 0, err
	}
	return len(items), nil
}

// AppendUnique behaves like Append but skips records whose id already exists
// in the document or earlier in the same batch. It returns how many records
// were added.
func (s *Store) AppendUnique(ctx context.Context, key Key, records ...Identified) (int, error) {
	rel, err := key.Path()
	if err != nil {
		return 0, err
	}

	unlock := s.lock(rel)
	defer unlock()

	items := s.readLocked(rel)
	seen := make(map[string]struct{}, len(items)+len(records))
	for _, raw := range items {
		var probe struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &probe); err == nil && probe.ID != "" {
			seen[probe.ID] = struct{}{}
		}
	}

	added := 0
	for _, rec := range records {
		id := rec.RecordID()
		if _, dup := seen[id]; dup {
			continue
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("encode record %s: %w", id, err)
		}
		seen[id] = struct{}{}
		items = append(items, raw)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	items = capTail(items, s.Cap(key.Collection))
	if err := s.writeLocked(ctx, key.Collection, rel, items); err != nil {
		return 0, err
	}
	return added, nil
}

// SetLatest overwrites {collection}/latest.json with a single record.
func (s *Store) SetLatest(ctx context.Context, collection string, record any) error {
	rel, err := latestPath(collection)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode latest record: %w", err)
	}

	unlock := s.lock(rel)
	defer unlock()
	return s.persist(ctx, collection, rel, data)
}

// Read returns the records stored at key. A missing document yields an empty
// slice and no error.
func (s *Store) Read(key Key) ([]json.RawMessage, error) {
	rel, err := key.Path()
	if err != nil {
		return nil, err
	}
	unlock := s.lock(rel)
	defer unlock()

	data, err := os.ReadFile(s.abs(rel))
	if errors.Is(err, os.ErrNotExist) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", rel, err)
	}
	return items, nil
}

// ReadLatest returns the raw latest document of a collection.
func (s *Store) ReadLatest(collection string) (json.RawMessage, error) {
	rel, err := latestPath(collection)
	if err != nil {
		return nil, err
	}
	unlock := s.lock(rel)
	defer unlock()

	data, err := os.ReadFile(s.abs(rel))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (s *Store) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func (s *Store) lock(rel string) func() {
	v, _ := s.locks.LoadOrStore(rel, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Store) readLocked(rel string) []json.RawMessage {
	data, err := os.ReadFile(s.abs(rel))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.WithComponent("store").WithError(err).WithFields(logger.Fields{"path": rel}).Warn("unreadable document treated as empty")
		}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		s.log.WithComponent("store").WithError(err).WithFields(logger.Fields{"path": rel}).Warn("corrupt document treated as empty")
		return nil
	}
	return items
}

func (s *Store) writeLocked(ctx context.Context, collection, rel string, items []json.RawMessage) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	return s.persist(ctx, collection, rel, data)
}

func (s *Store) persist(ctx context.Context, collection, rel string, data []byte) error {
	if err := writeFileAtomic(s.abs(rel), data); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	logger.RecordWrite(collection, len(data))
	s.log.WithComponent("store").WithFields(logger.Fields{
		"path":  rel,
		"bytes": len(data),
	}).Debug("document written")

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, rel, data); err != nil {
			s.log.WithComponent("store").WithError(err).WithFields(logger.Fields{"path": rel}).Warn("mirror upload failed")
		}
	}
	return nil
}

func encodeAll(records []any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(records))
	for i, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// capTail keeps the most recent limit items.
func capTail(items []json.RawMessage, limit int) []json.RawMessage {
	if limit > 0 && len(items) > limit {
		return append([]json.RawMessage(nil), items[len(items)-limit:]...)
	}
	return items
}

// writeFileAtomic writes data to a temp file beside path, syncs it and renames
// it over path so readers never observe a partial document.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
