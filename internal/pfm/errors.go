package pfm

import "errors"

// Structural errors. These indicate the on-disk bookkeeping is internally
// inconsistent and are fatal to the operation in progress; none of them
// represent an absent key, which callers signal separately.
var (
	// ErrLostMapping is returned when an index has no entry in the block
	// map: the caller asked for data that was never allocated or was
	// already freed.
	ErrLostMapping = errors.New("pfm: lost mapping for index")

	// ErrLostBlock is returned when a block map entry points at an
	// extent that cannot be read back, e.g. it runs past the end of the
	// file.
	ErrLostBlock = errors.New("pfm: lost block for index")

	// ErrBlockReturn is returned when freeing an index whose extent
	// cannot be reconciled with the free list.
	ErrBlockReturn = errors.New("pfm: block return failed")

	// ErrInvalidVersion is returned when opening a file whose header
	// declares a format or codec version this build does not support.
	ErrInvalidVersion = errors.New("pfm: unsupported file version")
)
