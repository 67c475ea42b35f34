// Package btree implements the in-memory, index-addressed B+Tree core:
// leaves holding (key, value) pairs and internal nodes holding
// (key, child-index) pairs, where each internal key is an upper bound on
// the keys reachable through the paired child. Inserts, splits, borrows
// and merges set it to that subtree's maximum; after a delete it may stay
// above the subtree's current maximum. Nodes are generic over any totally
// ordered key and any value type: parent-pointer arena nodes addressed by
// a monotonically assigned index, with accessor methods guarding the
// leaf/internal distinction.
package btree

import (
	"cmp"
	"sort"

	"github.com/ashgrove/bargate/internal/codec"
)

type kind uint8

const (
	leafKind kind = iota
	internalKind
)

// Pair is a single (key, payload) entry. In a leaf, Payload is the stored
// value; in an internal node, Payload is the index of the child subtree
// whose keys are all at most Key (see the package comment).
type Pair[K cmp.Ordered, P any] struct {
	Key     K
	Payload P
}

// Node is one B+Tree node. Exactly one of its pair slices is populated,
// selected by kind; the accessor methods below panic if called against
// the wrong kind, since that always indicates a bug in the tree core
// rather than a recoverable runtime condition.
type Node[K cmp.Ordered, V any] struct {
	kind   kind
	leaf   []Pair[K, V]
	inner  []Pair[K, int]
	branch int
	parent *int
	index  int
	dirty  bool
}

// NewRoot creates the tree's first node: an empty leaf at index 1 with no
// parent, branch asserted to be at least 2 by the caller.
func NewRoot[K cmp.Ordered, V any](branch int) *Node[K, V] {
	return &Node[K, V]{kind: leafKind, branch: branch, index: 1, dirty: true}
}

// NewLeaf creates an empty leaf node with the given index and parent.
func NewLeaf[K cmp.Ordered, V any](index, branch int, parent *int) *Node[K, V] {
	return &Node[K, V]{kind: leafKind, branch: branch, index: index, parent: parent, dirty: true}
}

// NewInternal creates an internal node from an initial set of child
// pairs.
func NewInternal[K cmp.Ordered, V any](index, branch int, parent *int, pairs []Pair[K, int]) *Node[K, V] {
	return &Node[K, V]{kind: internalKind, branch: branch, inner: pairs, index: index, parent: parent, dirty: true}
}

// IsLeaf reports whether this node is a leaf.
func (n *Node[K, V]) IsLeaf() bool { return n.kind == leafKind }

// Branch returns the tree's fan-out parameter as recorded on this node.
func (n *Node[K, V]) Branch() int { return n.branch }

// Dirty reports whether this node has unwritten changes.
func (n *Node[K, V]) Dirty() bool { return n.dirty }

// SetClean marks the node as matching its on-disk image.
func (n *Node[K, V]) SetClean() { n.dirty = false }

// Index returns this node's arena index.
func (n *Node[K, V]) Index() int { return n.index }

// SetIndex reassigns this node's arena index, marking it dirty.
func (n *Node[K, V]) SetIndex(idx int) {
	n.index = idx
	n.dirty = true
}

// Parent returns the parent index and true, or (0, false) at the root.
func (n *Node[K, V]) Parent() (int, bool) {
	if n.parent == nil {
		return 0, false
	}
	return *n.parent, true
}

// SetParent records a new parent index, marking the node dirty.
func (n *Node[K, V]) SetParent(idx int) {
	v := idx
	n.parent = &v
	n.dirty = true
}

// ClearParent marks this node as the root, marking it dirty.
func (n *Node[K, V]) ClearParent() {
	n.parent = nil
	n.dirty = true
}

// Len returns the number of entries in this node.
func (n *Node[K, V]) Len() int {
	if n.kind == leafKind {
		return len(n.leaf)
	}
	return len(n.inner)
}

// IsFull reports whether this node exceeds its branch capacity and must
// be split before any more insertions.
func (n *Node[K, V]) IsFull() bool { return n.Len() > n.branch }

// IsMinimum reports whether this node is below the minimum occupancy
// (branch/2, rounded down) a non-root node must maintain. The root is exempt from the
// branch/2 floor; it is only ever "minimum" when completely empty.
func (n *Node[K, V]) IsMinimum() bool {
	if n.parent == nil {
		return n.Len() == 0
	}
	return n.Len() < n.branch/2
}

// MaxKey returns the largest key held in this node (leaf key, or an
// internal node's rightmost child-subtree key).
func (n *Node[K, V]) MaxKey() K {
	if n.kind == leafKind {
		return n.leaf[len(n.leaf)-1].Key
	}
	return n.inner[len(n.inner)-1].Key
}

// Keys returns this node's keys in ascending order.
func (n *Node[K, V]) Keys() []K {
	keys := make([]K, n.Len())
	if n.kind == leafKind {
		for i, p := range n.leaf {
			keys[i] = p.Key
		}
	} else {
		for i, p := range n.inner {
			keys[i] = p.Key
		}
	}
	return keys
}

// Pairs returns a leaf's (key, value) pairs in ascending order. Panics if
// called on an internal node.
func (n *Node[K, V]) Pairs() []Pair[K, V] {
	n.requireLeaf()
	return n.leaf
}

// Children returns an internal node's child indices in ascending key
// order. Panics if called on a leaf.
func (n *Node[K, V]) Children() []int {
	n.requireInternal()
	out := make([]int, len(n.inner))
	for i, p := range n.inner {
		out[i] = p.Payload
	}
	return out
}

// Value looks up a leaf's value for key. Panics if called on an internal
// node.
func (n *Node[K, V]) Value(key K) (V, bool) {
	n.requireLeaf()
	i, ok := n.leafSearch(key)
	if !ok {
		var zero V
		return zero, false
	}
	return n.leaf[i].Payload, true
}

// SetValue inserts or updates a leaf's value for key, returning true if
// the key already existed. Panics if called on an internal node.
func (n *Node[K, V]) SetValue(key K, value V) (existed bool) {
	n.requireLeaf()
	i, ok := n.leafSearch(key)
	n.dirty = true
	if ok {
		n.leaf[i].Payload = value
		return true
	}
	n.leaf = append(n.leaf, Pair[K, V]{})
	copy(n.leaf[i+1:], n.leaf[i:])
	n.leaf[i] = Pair[K, V]{Key: key, Payload: value}
	return false
}

// RemoveValue removes a leaf's entry for key, returning its prior value.
// Panics if called on an internal node.
func (n *Node[K, V]) RemoveValue(key K) (V, bool) {
	n.requireLeaf()
	i, ok := n.leafSearch(key)
	if !ok {
		var zero V
		return zero, false
	}
	v := n.leaf[i].Payload
	n.leaf = append(n.leaf[:i], n.leaf[i+1:]...)
	n.dirty = true
	return v, true
}

// ChildForKey returns the child index responsible for key: the first
// child whose subtree maximum is >= key, or the last child if key
// exceeds every subtree maximum. Panics if called on a leaf, or if the
// node has no children at all (which never happens for a live internal
// node).
func (n *Node[K, V]) ChildForKey(key K) int {
	n.requireInternal()
	i := sort.Search(len(n.inner), func(i int) bool { return n.inner[i].Key >= key })
	if i == len(n.inner) {
		i--
	}
	return n.inner[i].Payload
}

// UpdateChildKey replaces the key paired with the given child index
// (found by scanning for that child, since rebalancing can shift which
// position it lives at) and returns the key it replaced. Panics if
// called on a leaf, or if no pair references that child.
func (n *Node[K, V]) UpdateChildKey(child int, newKey K) K {
	n.requireInternal()
	for i := range n.inner {
		if n.inner[i].Payload == child {
			old := n.inner[i].Key
			n.inner[i].Key = newKey
			n.dirty = true
			return old
		}
	}
	panic("btree: update child key: no such child")
}

// SetChild inserts a new (key, child) pair in key order, or replaces the
// payload of an existing pair whose key already matches. Panics if
// called on a leaf.
func (n *Node[K, V]) SetChild(key K, child int) {
	n.requireInternal()
	i := sort.Search(len(n.inner), func(i int) bool { return n.inner[i].Key >= key })
	n.dirty = true
	if i < len(n.inner) && n.inner[i].Key == key {
		n.inner[i].Payload = child
		return
	}
	n.inner = append(n.inner, Pair[K, int]{})
	copy(n.inner[i+1:], n.inner[i:])
	n.inner[i] = Pair[K, int]{Key: key, Payload: child}
}

// RemoveChild removes the pair referencing the given child index. Panics
// if called on a leaf, or if no pair references that child.
func (n *Node[K, V]) RemoveChild(child int) {
	n.requireInternal()
	for i := range n.inner {
		if n.inner[i].Payload == child {
			n.inner = append(n.inner[:i], n.inner[i+1:]...)
			n.dirty = true
			return
		}
	}
	panic("btree: remove child: no such child")
}

// FirstChild returns the leftmost child index. Panics if called on a
// leaf or an empty internal node.
func (n *Node[K, V]) FirstChild() int {
	n.requireInternal()
	return n.inner[0].Payload
}

// LastChild returns the rightmost child index. Panics if called on a
// leaf or an empty internal node.
func (n *Node[K, V]) LastChild() int {
	n.requireInternal()
	return n.inner[len(n.inner)-1].Payload
}

// Split removes the upper half of this node's entries into a newly
// created sibling node (caller assigns it a real index and links it into
// the parent), leaving the lower half in n. The lower half keeps
// branch/2 rounded up entries, so when an overfull node (branch+1
// entries) has an odd count, the sibling gets the extra one.
func (n *Node[K, V]) Split(newIndex int) *Node[K, V] {
	point := n.branch/2 + n.branch%2
	n.dirty = true
	if n.kind == leafKind {
		upper := append([]Pair[K, V]{}, n.leaf[point:]...)
		n.leaf = n.leaf[:point:point]
		return &Node[K, V]{kind: leafKind, leaf: upper, branch: n.branch, parent: n.parent, index: newIndex, dirty: true}
	}
	upper := append([]Pair[K, int]{}, n.inner[point:]...)
	n.inner = n.inner[:point:point]
	return &Node[K, V]{kind: internalKind, inner: upper, branch: n.branch, parent: n.parent, index: newIndex, dirty: true}
}

// Merge absorbs other's entries into n, ordering by which node holds the
// smaller keys. other is left empty; the caller is responsible for
// freeing its storage and updating the parent.
func (n *Node[K, V]) Merge(other *Node[K, V]) {
	if n.branch != other.branch {
		panic("btree: merge: branch mismatch")
	}
	n.dirty = true
	selfFirst := true
	if n.Len() > 0 && other.Len() > 0 {
		selfFirst = n.MaxKey() < other.MaxKey()
	}
	if n.kind == leafKind {
		if selfFirst {
			n.leaf = append(n.leaf, other.leaf...)
		} else {
			n.leaf = append(append([]Pair[K, V]{}, other.leaf...), n.leaf...)
		}
		other.leaf = nil
		return
	}
	if selfFirst {
		n.inner = append(n.inner, other.inner...)
	} else {
		n.inner = append(append([]Pair[K, int]{}, other.inner...), n.inner...)
	}
	other.inner = nil
}

// VerifyKeys asserts this node's keys are in strictly increasing order,
// the form invariant every node must maintain. It reports the violation
// rather than panicking, since Verify is a user-facing diagnostic.
func (n *Node[K, V]) VerifyKeys() bool {
	keys := n.Keys()
	for i := 1; i < len(keys); i++ {
		if !(keys[i-1] < keys[i]) {
			return false
		}
	}
	return true
}

func (n *Node[K, V]) leafSearch(key K) (int, bool) {
	i := sort.Search(len(n.leaf), func(i int) bool { return n.leaf[i].Key >= key })
	if i < len(n.leaf) && n.leaf[i].Key == key {
		return i, true
	}
	return i, false
}

func (n *Node[K, V]) requireLeaf() {
	if n.kind != leafKind {
		panic(ErrWrongVariant)
	}
}

func (n *Node[K, V]) requireInternal() {
	if n.kind != internalKind {
		panic(ErrWrongVariant)
	}
}

// wireNode is the exported mirror of Node used for gob encoding, since
// Node keeps its fields unexported to force callers through the
// invariant-checking accessors above.
type wireNode[K cmp.Ordered, V any] struct {
	Leaf   bool
	Pairs  []Pair[K, V]
	Inner  []Pair[K, int]
	Branch int
	Parent *int
	Index  int
}

// Marshal encodes the node into its gob-friendly wire form.
func (n *Node[K, V]) Marshal() wireNode[K, V] {
	return wireNode[K, V]{
		Leaf:   n.kind == leafKind,
		Pairs:  n.leaf,
		Inner:  n.inner,
		Branch: n.branch,
		Parent: n.parent,
		Index:  n.index,
	}
}

// Unmarshal builds a clean (non-dirty) Node from its wire form.
func Unmarshal[K cmp.Ordered, V any](w wireNode[K, V]) *Node[K, V] {
	n := &Node[K, V]{branch: w.Branch, parent: w.Parent, index: w.Index}
	if w.Leaf {
		n.kind = leafKind
		n.leaf = w.Pairs
	} else {
		n.kind = internalKind
		n.inner = w.Inner
	}
	return n
}

// Encode serializes the node through the process-wide codec.
func Encode[K cmp.Ordered, V any](n *Node[K, V]) ([]byte, error) {
	return codec.Encode(n.Marshal())
}

// Decode deserializes a node previously written by Encode. The returned
// node is clean.
func Decode[K cmp.Ordered, V any](data []byte) (*Node[K, V], error) {
	var w wireNode[K, V]
	if err := codec.Decode(data, &w); err != nil {
		return nil, err
	}
	return Unmarshal(w), nil
}
