package bargate

import "github.com/ashgrove/bargate/pkg/btree"

// Direction selects which way an ordered stream proceeds.
type Direction = btree.Direction

const (
	Ascending  = btree.Ascending
	Descending = btree.Descending
)

// ParseDirection accepts "ascending"/"descending" case-insensitively, for
// CLI callers and other text-facing configuration.
func ParseDirection(s string) (Direction, error) { return btree.ParseDirection(s) }
