package bargate

import (
	"iter"

	"github.com/ashgrove/bargate/pkg/btree"
)

// Entries returns a finite, ordered stream of every key/value pair in the
// store. Each range over the returned sequence walks the store afresh. A
// walk holds the store's lock for its entire traversal, so it must be
// drained (or abandoned by breaking out of a range loop) before any other
// store operation on the same Store can proceed.
func (s *Store[K, V]) Entries(dir Direction) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		s.walkLeaves(dir, func(leaf *btree.Node[K, V]) bool {
			pairs := leaf.Pairs()
			if dir == Ascending {
				for _, p := range pairs {
					if !yield(p.Key, p.Payload) {
						return false
					}
				}
				return true
			}
			for i := len(pairs) - 1; i >= 0; i-- {
				if !yield(pairs[i].Key, pairs[i].Payload) {
					return false
				}
			}
			return true
		})
	}
}

// Keys returns a finite, ordered stream of every key.
func (s *Store[K, V]) Keys(dir Direction) iter.Seq[K] {
	return func(yield func(K) bool) {
		s.walkLeaves(dir, func(leaf *btree.Node[K, V]) bool {
			keys := leaf.Keys()
			if dir == Ascending {
				for _, k := range keys {
					if !yield(k) {
						return false
					}
				}
				return true
			}
			for i := len(keys) - 1; i >= 0; i-- {
				if !yield(keys[i]) {
					return false
				}
			}
			return true
		})
	}
}

// Values returns a finite, ordered stream of every value, in key order.
func (s *Store[K, V]) Values(dir Direction) iter.Seq[V] {
	return func(yield func(V) bool) {
		s.walkLeaves(dir, func(leaf *btree.Node[K, V]) bool {
			pairs := leaf.Pairs()
			if dir == Ascending {
				for _, p := range pairs {
					if !yield(p.Payload) {
						return false
					}
				}
				return true
			}
			for i := len(pairs) - 1; i >= 0; i-- {
				if !yield(pairs[i].Payload) {
					return false
				}
			}
			return true
		})
	}
}

// walkLeaves visits every leaf in key order, calling emit for each until
// emit returns false or the chain is exhausted. It holds the store lock
// for the whole walk so leaf contents can be read without racing a
// concurrent mutation.
func (s *Store[K, V]) walkLeaves(dir Direction, emit func(*btree.Node[K, V]) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var leaf *btree.Node[K, V]
	var err error
	if dir == Ascending {
		leaf, err = s.tree.FirstLeaf()
	} else {
		leaf, err = s.tree.LastLeaf()
	}
	for err == nil && leaf != nil {
		if !emit(leaf) {
			return
		}
		leaf, err = s.tree.Neighbour(leaf.Index(), dir)
	}
}
