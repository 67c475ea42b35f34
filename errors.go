package bargate

import (
	"errors"

	"github.com/ashgrove/bargate/pkg/btree"
)

// ErrBranchTooSmall is returned when constructing a store with a
// branching factor below 2.
var ErrBranchTooSmall = btree.ErrBranchTooSmall

// ErrAlreadyExists is returned by New when the backing file already
// exists; use Open to reattach to an existing store instead.
var ErrAlreadyExists = errors.New("bargate: database file already exists")
