package entities

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const entityColumns = `id, org_id, kind, mrn, name, email, permissions,
	oidc_access_type, oidc_client_id, oidc_client_secret, oidc_redirect_uri,
	created_at, updated_at`

// Create persists a new entity
func (s *PostgresStore) Create(ctx context.Context, entity *Entity) error {
	query := `
		INSERT INTO entities (org_id, kind, mrn, name, email, permissions,
			oidc_access_type, oidc_client_id, oidc_client_secret, oidc_redirect_uri)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		entity.OrgID, entity.Kind, entity.Mrn, entity.Name, entity.Email, entity.Permissions,
		entity.OidcAccessType, entity.OidcClientID, entity.OidcClientSecret, entity.OidcRedirectURI).
		Scan(&entity.ID, &entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}
	return nil
}

// GetByMrn returns the entity with the given MRN within the organization
func (s *PostgresStore) GetByMrn(ctx context.Context, orgID int64, kind Kind, mrn string) (*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE org_id = $1 AND kind = $2 AND mrn = $3`
	entity := &Entity{}
	err := s.db.QueryRowContext(ctx, query, orgID, kind, mrn).Scan(
		&entity.ID, &entity.OrgID, &entity.Kind, &entity.Mrn, &entity.Name, &entity.Email,
		&entity.Permissions, &entity.OidcAccessType, &entity.OidcClientID,
		&entity.OidcClientSecret, &entity.OidcRedirectURI, &entity.CreatedAt, &entity.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return entity, nil
}

// ListByOrg returns the organization's entities of one kind
func (s *PostgresStore) ListByOrg(ctx context.Context, orgID int64, kind Kind) ([]*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE org_id = $1 AND kind = $2 ORDER BY mrn`
	return s.queryMany(ctx, query, orgID, kind)
}

// ListAllByOrg returns every entity of the organization
func (s *PostgresStore) ListAllByOrg(ctx context.Context, orgID int64) ([]*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE org_id = $1 ORDER BY kind, mrn`
	return s.queryMany(ctx, query, orgID)
}

// Update persists changes to an existing entity
func (s *PostgresStore) Update(ctx context.Context, entity *Entity) error {
	query := `
		UPDATE entities
		SET name = $1, email = $2, permissions = $3, oidc_access_type = $4,
		    oidc_client_id = $5, oidc_client_secret = $6, oidc_redirect_uri = $7,
		    updated_at = NOW()
		WHERE id = $8
	`
	result, err := s.db.ExecContext(ctx, query,
		entity.Name, entity.Email, entity.Permissions, entity.OidcAccessType,
		entity.OidcClientID, entity.OidcClientSecret, entity.OidcRedirectURI, entity.ID)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
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

// Delete removes the entity record
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
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

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...interface{}) ([]*Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		entity := &Entity{}
		err := rows.Scan(
			&entity.ID, &entity.OrgID, &entity.Kind, &entity.Mrn, &entity.Name, &entity.Email,
			&entity.Permissions, &entity.OidcAccessType, &entity.OidcClientID,
			&entity.OidcClientSecret, &entity.OidcRedirectURI, &entity.CreatedAt, &entity.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}
