package orgs

import "context"

// Store is the persistence interface for organizations
type Store interface {
	// Create persists a new organization and fills in its id and timestamps
	Create(ctx context.Context, org *Organization) error

	// GetByMrn returns the approved organization with the given MRN, or
	// ErrNotFound
	GetByMrn(ctx context.Context, orgMrn string) (*Organization, error)

	// GetByMrnAnyState returns the organization regardless of approval
	// state, or ErrNotFound
	GetByMrnAnyState(ctx context.Context, orgMrn string) (*Organization, error)

	// List returns every approved organization
	List(ctx context.Context) ([]*Organization, error)

	// ListUnapproved returns every organization awaiting approval
	ListUnapproved(ctx context.Context) ([]*Organization, error)

	// Update persists changes to an existing organization
	Update(ctx context.Context, org *Organization) error

	// Delete removes the organization record
	Delete(ctx context.Context, id int64) error
}
