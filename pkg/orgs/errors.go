package orgs

import "errors"

var (
	// ErrNotFound indicates no organization exists under the given MRN
	ErrNotFound = errors.New("organization not found")

	// ErrAlreadyExists indicates an organization with the same MRN has
	// already applied
	ErrAlreadyExists = errors.New("organization already exists")

	// ErrAlreadyApproved indicates an approval attempt on an organization
	// that is already approved
	ErrAlreadyApproved = errors.New("organization already approved")

	// ErrMrnMismatch indicates the MRN in an update body differs from the
	// MRN the request addresses
	ErrMrnMismatch = errors.New("organization MRN does not match request")
)
