package postgres

import "errors"

var (
	// ErrInvalidTable is returned for table names that are not plain identifiers.
	ErrInvalidTable = errors.New("invalid table name")
	// ErrFetch wraps failures of the bulk fetch query.
	ErrFetch = errors.New("bulk fetch failed")
)
