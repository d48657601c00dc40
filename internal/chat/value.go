package chat

import "sync"

// Value is a published read model. Components own the values they Set; everyone else
// reads with Get or reacts with Watch.
//
// Watchers run synchronously on the goroutine that called Set, after the value is stored
// and without any lock held, so a watcher may read or set other values.
type Value[T any] struct {
	mu       sync.Mutex
	v        T
	version  uint64
	watchers map[int]func(T)
	nextID   int
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{v: initial, watchers: make(map[int]func(T))}
}

func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.v
}

// Version increases on every Set.
func (v *Value[T]) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	v.v = x
	v.version++
	fns := make([]func(T), 0, len(v.watchers))
	for _, fn := range v.watchers {
		fns = append(fns, fn)
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn(x)
	}
}

// Watch registers fn for future Sets. The returned func removes it.
func (v *Value[T]) Watch(fn func(T)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.watchers[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.watchers, id)
			v.mu.Unlock()
		})
	}
}
