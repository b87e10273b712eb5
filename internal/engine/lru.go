package engine

import (
	"container/list"
	"sync"
)

// lru is a generic least-recently-used cache bounded by entry count.
// It is safe for concurrent use. The session cache uses it to keep
// per-query results for the most recently typed prefixes without
// growing with the length of a session.
type lru[K comparable, V any] struct {
	items    map[K]*list.Element
	order    *list.List
	capacity int
	mu       sync.Mutex
}

type lruEntry[K comparable, V any] struct {
	key K
	val V
}

// newLRU creates a cache holding at most capacity entries.
func newLRU[K comparable, V any](capacity int) *lru[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &lru[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
}

// get retrieves a value and marks it as recently used.
func (l *lru[K, V]) get(key K) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.items[key]; ok {
		l.order.MoveToFront(elem)
		return elem.Value.(*lruEntry[K, V]).val, true
	}
	var zero V
	return zero, false
}

// put adds or updates a value, evicting the least recently used entry
// when at capacity.
func (l *lru[K, V]) put(key K, val V) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.items[key]; ok {
		elem.Value.(*lruEntry[K, V]).val = val
		l.order.MoveToFront(elem)
		return
	}

	for l.order.Len() >= l.capacity {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.items, oldest.Value.(*lruEntry[K, V]).key)
	}

	elem := l.order.PushFront(&lruEntry[K, V]{key: key, val: val})
	l.items[key] = elem
}

// len returns the number of cached entries.
func (l *lru[K, V]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
