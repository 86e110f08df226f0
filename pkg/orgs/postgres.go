package orgs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL. Identity provider
// attributes are stored as a JSONB document alongside the row.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orgColumns = `id, mrn, name, email, url, address, country, approved, idp_attributes, created_at, updated_at`

// Create persists a new organization
func (s *PostgresStore) Create(ctx context.Context, org *Organization) error {
	attrs, err := json.Marshal(org.IdpAttributes)
	if err != nil {
		return fmt.Errorf("failed to marshal idp attributes: %w", err)
	}

	query := `
		INSERT INTO organizations (mrn, name, email, url, address, country, approved, idp_attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		org.Mrn, org.Name, org.Email, org.URL, org.Address, org.Country, org.Approved, attrs).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, org.Mrn)
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetByMrn returns the approved organization with the given MRN
func (s *PostgresStore) GetByMrn(ctx context.Context, orgMrn string) (*Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE mrn = $1 AND approved = true`
	return s.scanOne(s.db.QueryRowContext(ctx, query, orgMrn))
}

// GetByMrnAnyState returns the organization regardless of approval state
func (s *PostgresStore) GetByMrnAnyState(ctx context.Context, orgMrn string) (*Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE mrn = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, orgMrn))
}

// List returns every approved organization
func (s *PostgresStore) List(ctx context.Context) ([]*Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE approved = true ORDER BY name`
	return s.queryMany(ctx, query)
}

// ListUnapproved returns every organization awaiting approval
func (s *PostgresStore) ListUnapproved(ctx context.Context) ([]*Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE approved = false ORDER BY created_at`
	return s.queryMany(ctx, query)
}

// Update persists changes to an existing organization
func (s *PostgresStore) Update(ctx context.Context, org *Organization) error {
	attrs, err := json.Marshal(org.IdpAttributes)
	if err != nil {
		return fmt.Errorf("failed to marshal idp attributes: %w", err)
	}

	query := `
		UPDATE organizations
		SET name = $1, email = $2, url = $3, address = $4, country = $5,
		    approved = $6, idp_attributes = $7, updated_at = NOW()
		WHERE id = $8
	`
	result, err := s.db.ExecContext(ctx, query,
		org.Name, org.Email, org.URL, org.Address, org.Country, org.Approved, attrs, org.ID)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the organization record
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Organization, error) {
	org := &Organization{}
	var attrs []byte
	err := row.Scan(&org.ID, &org.Mrn, &org.Name, &org.Email, &org.URL, &org.Address,
		&org.Country, &org.Approved, &attrs, &org.CreatedAt, &org.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &org.IdpAttributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal idp attributes: %w", err)
		}
	}
	return org, nil
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...interface{}) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var organizations []*Organization
	for rows.Next() {
		org := &Organization{}
		var attrs []byte
		err := rows.Scan(&org.ID, &org.Mrn, &org.Name, &org.Email, &org.URL, &org.Address,
			&org.Country, &org.Approved, &attrs, &org.CreatedAt, &org.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &org.IdpAttributes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal idp attributes: %w", err)
			}
		}
		organizations = append(organizations, org)
	}
	return organizations, rows.Err()
}
