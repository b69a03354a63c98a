package filter

import "errors"

// ErrInvalidCriteria is returned before evaluation when criteria violate
// their invariants. Criteria are never clamped.
var ErrInvalidCriteria = errors.New("invalid filter criteria")
