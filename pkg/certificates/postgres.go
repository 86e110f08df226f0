package certificates

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const certColumns = `id, serial, owner_kind, owner_id, owner_org_id, start_at, end_at,
	       revoked, revoked_at, revoke_reason, created_at, updated_at`

// Create persists a new certificate record
func (s *PostgresStore) Create(ctx context.Context, cert *Certificate) error {
	query := `
		INSERT INTO certificates (serial, owner_kind, owner_id, owner_org_id, start_at, end_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, false)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, cert.Serial, string(cert.OwnerKind), cert.OwnerID,
		cert.OwnerOrgID, cert.Start, cert.End).
		Scan(&cert.ID, &cert.CreatedAt, &cert.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	return nil
}

// GetByID retrieves a certificate by id
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*Certificate, error) {
	query := `SELECT ` + certColumns + ` FROM certificates WHERE id = $1`
	cert, err := scanCertificate(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return cert, nil
}

// ListByOwner lists all certificates bound to an owner
func (s *PostgresStore) ListByOwner(ctx context.Context, kind OwnerKind, ownerID int64) ([]*Certificate, error) {
	query := `SELECT ` + certColumns + ` FROM certificates
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, string(kind), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()
	return collectCertificates(rows)
}

// ListRevoked lists every revoked certificate
func (s *PostgresStore) ListRevoked(ctx context.Context) ([]*Certificate, error) {
	query := `SELECT ` + certColumns + ` FROM certificates WHERE revoked = true ORDER BY revoked_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list revoked certificates: %w", err)
	}
	defer rows.Close()
	return collectCertificates(rows)
}

// CountExpired counts certificates whose validity window has lapsed without
// a revocation
func (s *PostgresStore) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM certificates WHERE revoked = false AND end_at < $1`
	if err := s.db.QueryRowContext(ctx, query, now.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count expired certificates: %w", err)
	}
	return count, nil
}

// MarkRevoked records the revocation of a single certificate
func (s *PostgresStore) MarkRevoked(ctx context.Context, id int64, revokedAt time.Time, reason string) error {
	query := `
		UPDATE certificates
		SET revoked = true, revoked_at = $1, end_at = $1, revoke_reason = $2, updated_at = NOW()
		WHERE id = $3 AND revoked = false
	`
	// The revoked = false guard keeps a lost race against another revoke
	// from overwriting the first revocation's timestamp and reason.
	_, err := s.db.ExecContext(ctx, query, revokedAt.UTC(), reason, id)
	if err != nil {
		return fmt.Errorf("failed to revoke certificate: %w", err)
	}
	return nil
}

// RevokeAndDetachOwner revokes and detaches every certificate bound to an
// owner in a single statement, so a concurrent reader can never observe an
// active certificate pointing at a deleted owner.
func (s *PostgresStore) RevokeAndDetachOwner(ctx context.Context, kind OwnerKind, ownerID int64, revokedAt time.Time, reason string) error {
	query := `
		UPDATE certificates
		SET revoked = true,
		    revoked_at = COALESCE(revoked_at, $1),
		    end_at = CASE WHEN revoked THEN end_at ELSE $1 END,
		    revoke_reason = CASE WHEN revoked THEN revoke_reason ELSE $2 END,
		    owner_kind = '',
		    owner_id = 0,
		    updated_at = NOW()
		WHERE owner_kind = $3 AND owner_id = $4
	`
	_, err := s.db.ExecContext(ctx, query, revokedAt.UTC(), reason, string(kind), ownerID)
	if err != nil {
		return fmt.Errorf("failed to cascade revoke certificates: %w", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*Certificate, error) {
	cert := &Certificate{}
	var ownerKind string
	var revokedAt sql.NullTime
	var revokeReason sql.NullString
	err := row.Scan(
		&cert.ID, &cert.Serial, &ownerKind, &cert.OwnerID, &cert.OwnerOrgID,
		&cert.Start, &cert.End, &cert.Revoked, &revokedAt, &revokeReason,
		&cert.CreatedAt, &cert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cert.OwnerKind = OwnerKind(ownerKind)
	if revokedAt.Valid {
		t := revokedAt.Time
		cert.RevokedAt = &t
	}
	if revokeReason.Valid {
		cert.RevokeReason = revokeReason.String
	}
	return cert, nil
}

func collectCertificates(rows *sql.Rows) ([]*Certificate, error) {
	var certs []*Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, rows.Err()
}
