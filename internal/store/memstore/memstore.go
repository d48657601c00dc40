// Package memstore is an in-process DocumentStore with live listeners. It backs the
// memory store backend for local runs and every chat test.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"circle-chat/internal/store"

	"github.com/google/uuid"
)

type record struct {
	data map[string]any
	seq  int64
}

type subscription struct {
	mu     sync.Mutex
	q      store.Query
	fn     func(store.Snapshot)
	closed bool
	broken bool
}

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]*record
	seq         int64
	subs        map[*subscription]struct{}
	clock       func() time.Time
	lastStamp   time.Time
	online      bool
	faults      map[string][]error
	writes      int
	disables    int
	enables     int
}

func New() *Store {
	return &Store{
		collections: make(map[string]map[string]*record),
		subs:        make(map[*subscription]struct{}),
		clock:       time.Now,
		online:      true,
		faults:      make(map[string][]error),
	}
}

// WithClock replaces the server clock; stamps stay strictly increasing regardless.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()
	return s
}

// FailNext makes the next call of op return err. Ops: get, set, create, add, update,
// delete, deleteCollection, documents, disable, enable.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	s.faults[op] = append(s.faults[op], err)
	s.mu.Unlock()
}

// BreakListeners pushes err to every listener on collection. Broken listeners stay silent
// until the network is re-enabled.
func (s *Store) BreakListeners(collection string, err error) {
	for _, sub := range s.subscribers(collection) {
		sub.mu.Lock()
		if !sub.closed && !sub.broken {
			sub.broken = true
			sub.fn(store.Snapshot{Err: err})
		}
		sub.mu.Unlock()
	}
}

// Writes counts successful mutating calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) NetworkCycles() (disables, enables int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disables, s.enables
}

func (s *Store) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Store) fault(op string) error {
	queue := s.faults[op]
	if len(queue) == 0 {
		return nil
	}
	s.faults[op] = queue[1:]
	return queue[0]
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return store.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("get"); err != nil {
		return store.Document{}, err
	}
	rec, ok := s.collections[collection][id]
	if !ok {
		return store.Document{}, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return store.Document{ID: id, Data: copyData(rec.data)}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any) error {
	return s.write(ctx, "set", collection, func() error {
		s.put(collection, id, s.resolve(nil, data))
		return nil
	})
}

func (s *Store) Create(ctx context.Context, collection, id string, data map[string]any) error {
	return s.write(ctx, "create", collection, func() error {
		if _, ok := s.collections[collection][id]; ok {
			return fmt.Errorf("%s/%s: %w", collection, id, store.ErrAlreadyExists)
		}
		s.put(collection, id, s.resolve(nil, data))
		return nil
	})
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.New().String()
	err := s.write(ctx, "add", collection, func() error {
		s.put(collection, id, s.resolve(nil, data))
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, updates []store.Update) error {
	return s.write(ctx, "update", collection, func() error {
		rec, ok := s.collections[collection][id]
		if !ok {
			return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
		}
		patch := make(map[string]any, len(updates))
		for _, u := range updates {
			patch[u.Path] = u.Value
		}
		rec.data = s.resolve(rec.data, patch)
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.write(ctx, "delete", collection, func() error {
		delete(s.collections[collection], id)
		return nil
	})
}

func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	return s.write(ctx, "deleteCollection", collection, func() error {
		delete(s.collections, collection)
		return nil
	})
}

func (s *Store) Documents(ctx context.Context, q store.Query) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("documents"); err != nil {
		return nil, err
	}
	return s.run(q), nil
}

func (s *Store) Listen(q store.Query, fn func(store.Snapshot)) func() {
	sub := &subscription{q: q, fn: fn}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	s.deliver(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.mu.Lock()
			sub.closed = true
			sub.mu.Unlock()
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
		})
	}
}

func (s *Store) DisableNetwork(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("disable"); err != nil {
		return err
	}
	s.disables++
	s.online = false
	return nil
}

func (s *Store) EnableNetwork(ctx context.Context) error {
	s.mu.Lock()
	if err := s.fault("enable"); err != nil {
		s.mu.Unlock()
		return err
	}
	s.enables++
	s.online = true
	subs := slices.Collect(maps.Keys(s.subs))
	s.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		sub.broken = false
		sub.mu.Unlock()
		s.deliver(sub)
	}
	return nil
}

func (s *Store) write(ctx context.Context, op, collection string, apply func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.fault(op); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := apply(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.writes++
	s.mu.Unlock()

	for _, sub := range s.subscribers(collection) {
		s.deliver(sub)
	}
	return nil
}

func (s *Store) subscribers(collection string) []*subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*subscription
	for sub := range s.subs {
		if sub.q.Collection == collection {
			out = append(out, sub)
		}
	}
	return out
}

// deliver runs the listener's query and pushes the result. sub.mu serializes pushes per
// listener and lets stop wait for an in-flight push.
func (s *Store) deliver(sub *subscription) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed || sub.broken {
		return
	}
	s.mu.Lock()
	if !s.online {
		s.mu.Unlock()
		return
	}
	docs := s.run(sub.q)
	s.mu.Unlock()
	sub.fn(store.Snapshot{Docs: docs})
}

func (s *Store) put(collection, id string, data map[string]any) {
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]*record)
		s.collections[collection] = col
	}
	if rec, ok := col[id]; ok {
		rec.data = data
		return
	}
	s.seq++
	col[id] = &record{data: data, seq: s.seq}
}

// resolve applies patch on top of base, expanding sentinels. The result never aliases
// caller-owned slices or maps.
func (s *Store) resolve(base, patch map[string]any) map[string]any {
	out := copyData(base)
	if out == nil {
		out = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		switch {
		case store.IsDeleteField(v):
			delete(out, k)
		case store.IsServerTimestamp(v):
			out[k] = s.stamp()
		default:
			if values, ok := store.AsArrayUnion(v); ok {
				current := toAnySlice(out[k])
				for _, item := range values {
					if !slices.Contains(current, item) {
						current = append(current, item)
					}
				}
				out[k] = current
				continue
			}
			if values, ok := store.AsArrayRemove(v); ok {
				out[k] = slices.DeleteFunc(toAnySlice(out[k]), func(item any) bool {
					return slices.Contains(values, item)
				})
				continue
			}
			out[k] = copyValue(v)
		}
	}
	return out
}

func (s *Store) stamp() time.Time {
	now := s.clock().UTC()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = now
	return now
}

func (s *Store) run(q store.Query) []store.Document {
	type hit struct {
		doc store.Document
		seq int64
	}
	var hits []hit
	for id, rec := range s.collections[q.Collection] {
		if !matches(id, rec.data, q.Filters) {
			continue
		}
		hits = append(hits, hit{doc: store.Document{ID: id, Data: copyData(rec.data)}, seq: rec.seq})
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if q.OrderBy != "" {
			if c := compareField(a.doc.Data[q.OrderBy], b.doc.Data[q.OrderBy]); c != 0 {
				if q.Desc {
					return -c
				}
				return c
			}
		}
		return cmp.Compare(a.seq, b.seq)
	})
	docs := make([]store.Document, len(hits))
	for i, h := range hits {
		docs[i] = h.doc
	}
	return docs
}

func matches(id string, data map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		switch f.Op {
		case store.OpEqual:
			if f.Field == store.DocumentID {
				if id != f.Value {
					return false
				}
				continue
			}
			if data[f.Field] != f.Value {
				return false
			}
		case store.OpArrayContains:
			if !slices.Contains(toAnySlice(data[f.Field]), f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareField orders times and strings; a missing value sorts after a present one.
func compareField(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toAnySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return slices.Clone(s)
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	}
	return []any{}
}

func copyData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case []any:
		return slices.Clone(x)
	case []string:
		return toAnySlice(x)
	case map[string]any:
		return copyData(x)
	}
	return v
}
