package certificates

import (
	"context"
	"time"
)

// Store is the persistence contract for certificate records. Transaction
// demarcation is owned by the implementation; RevokeAndDetachOwner must be
// atomic with respect to concurrent readers.
type Store interface {
	// Create persists a new certificate record and fills in its id and
	// timestamps.
	Create(ctx context.Context, cert *Certificate) error

	// GetByID returns the certificate with the given id, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Certificate, error)

	// ListByOwner returns every certificate bound to the owner.
	ListByOwner(ctx context.Context, kind OwnerKind, ownerID int64) ([]*Certificate, error)

	// ListRevoked returns every revoked certificate.
	ListRevoked(ctx context.Context) ([]*Certificate, error)

	// CountExpired returns how many certificates have lapsed validity
	// windows without being revoked, as of the given instant.
	CountExpired(ctx context.Context, now time.Time) (int64, error)

	// MarkRevoked records the revocation of a single certificate.
	MarkRevoked(ctx context.Context, id int64, revokedAt time.Time, reason string) error

	// RevokeAndDetachOwner revokes every certificate bound to the owner
	// with the given reason and clears the owner slot, in one atomic
	// operation. Certificates already revoked keep their original
	// revocation state but are still detached.
	RevokeAndDetachOwner(ctx context.Context, kind OwnerKind, ownerID int64, revokedAt time.Time, reason string) error
}
