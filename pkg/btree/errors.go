package btree

import "errors"

var (
	// ErrLostChild is returned when an internal node's child pointer does
	// not resolve to a node the tree can load: the in-memory cache and
	// the backing store have diverged.
	ErrLostChild = errors.New("btree: lost child")

	// ErrLostParent is returned when a node's parent pointer does not
	// resolve to a node the tree can load.
	ErrLostParent = errors.New("btree: lost parent")

	// ErrWrongVariant is returned by leaf-only or internal-only accessors
	// called against the other node kind. It signals a programming error
	// in the tree core, not a data problem.
	ErrWrongVariant = errors.New("btree: method not valid for this node kind")

	// ErrBranchTooSmall is returned when constructing a tree with a
	// branching factor below 2, which cannot hold a valid split.
	ErrBranchTooSmall = errors.New("btree: branch must be at least 2")
)
