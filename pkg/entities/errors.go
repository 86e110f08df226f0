package entities

import "errors"

var (
	// ErrNotFound indicates no entity exists under the given MRN
	ErrNotFound = errors.New("entity not found")

	// ErrMrnMismatch indicates the entity MRN does not belong to the
	// organization the request addresses
	ErrMrnMismatch = errors.New("entity MRN does not match organization")
)
