package certificates

import "errors"

var (
	// ErrNotFound is returned when no certificate exists with the given id
	ErrNotFound = errors.New("certificate not found")

	// ErrForbidden is returned when the caller's organization does not own
	// the certificate being revoked
	ErrForbidden = errors.New("certificate belongs to another organization")

	// ErrNoOwner is returned when issuance is attempted for an owner
	// without a kind or id
	ErrNoOwner = errors.New("certificate owner is not set")
)
