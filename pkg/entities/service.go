package entities

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/maritimeconnect/mir/pkg/certificates"
	"github.com/maritimeconnect/mir/pkg/directory"
	"github.com/maritimeconnect/mir/pkg/federation"
	"github.com/maritimeconnect/mir/pkg/mrn"
	"github.com/maritimeconnect/mir/pkg/observability"
)

// CertificateRevoker revokes certificates when their owner is removed
type CertificateRevoker interface {
	CascadeRevoke(ctx context.Context, owner certificates.Owner) error
}

// ClientRegistrar manages service client registrations in the broker realm
type ClientRegistrar interface {
	CreateClient(ctx context.Context, client *federation.OIDCClient) error
	UpdateClient(ctx context.Context, client *federation.OIDCClient) error
	DeleteClient(ctx context.Context, clientID string) error
}

// Directory mirrors users into the shared users realm
type Directory interface {
	CreateUser(ctx context.Context, spec directory.UserSpec) error
	UpdateUser(ctx context.Context, spec directory.UserSpec) error
	DeleteUser(ctx context.Context, email string) error
}

// UserNotifier mails new users their login credentials
type UserNotifier interface {
	SendUserCreated(ctx context.Context, to, userName, loginName, password string) error
}

// Service manages entity records and their external identity state
type Service struct {
	store     Store
	certs     CertificateRevoker
	registrar ClientRegistrar
	directory Directory
	notifier  UserNotifier
	logger    *observability.Logger
}

// NewService creates a new entity service
func NewService(store Store, certs CertificateRevoker, registrar ClientRegistrar,
	directory Directory, logger *observability.Logger) *Service {
	return &Service{
		store:     store,
		certs:     certs,
		registrar: registrar,
		directory: directory,
		logger:    logger,
	}
}

// SetNotifier enables credential mail for newly created users
func (s *Service) SetNotifier(notifier UserNotifier) {
	s.notifier = notifier
}

// Create registers a new entity under the organization. User entities are
// mirrored into the users realm with a temporary password; service
// instances carrying a redirect URI get an OpenID Connect client in the
// broker realm.
func (s *Service) Create(ctx context.Context, orgID int64, orgMrn string, entity *Entity) (*Entity, error) {
	if err := mrn.Validate(entity.Mrn); err != nil {
		return nil, err
	}
	if err := s.checkOwnership(orgMrn, entity.Mrn); err != nil {
		return nil, err
	}
	entity.OrgID = orgID

	if entity.Kind == KindService && entity.OidcRedirectURI != "" {
		clientName, err := mrn.ClientName(entity.Mrn)
		if err != nil {
			return nil, err
		}
		secret, err := generateSecret()
		if err != nil {
			return nil, err
		}
		if err := s.registrar.CreateClient(ctx, &federation.OIDCClient{
			ClientID:     clientName,
			Secret:       secret,
			RedirectURIs: []string{entity.OidcRedirectURI},
			Enabled:      true,
		}); err != nil {
			return nil, err
		}
		entity.OidcClientID = clientName
		entity.OidcClientSecret = secret
	}

	if err := s.store.Create(ctx, entity); err != nil {
		// Best-effort removal of the just-registered broker client so a
		// store failure does not orphan the registration.
		if entity.Kind == KindService && entity.OidcClientID != "" {
			if cleanupErr := s.registrar.DeleteClient(ctx, entity.OidcClientID); cleanupErr != nil {
				s.logger.WithError(cleanupErr).WithField("client_id", entity.OidcClientID).
					Warn("failed to remove broker client after store failure")
			}
		}
		return nil, err
	}

	if entity.Kind == KindUser {
		password, err := generateSecret()
		if err != nil {
			return nil, err
		}
		if err := s.directory.CreateUser(ctx, directory.UserSpec{
			Mrn:         entity.Mrn,
			FirstName:   entity.Name,
			Email:       entity.Email,
			Password:    password,
			OrgMrn:      orgMrn,
			Permissions: entity.Permissions,
			Enabled:     true,
		}); err != nil {
			return nil, err
		}
		// Credential mail failures do not fail user creation.
		if s.notifier != nil && entity.Email != "" {
			if err := s.notifier.SendUserCreated(ctx, entity.Email, entity.Name, entity.Mrn, password); err != nil {
				s.logger.WithError(err).WithField("entity_mrn", entity.Mrn).Warn("failed to send credential mail")
			}
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"entity_mrn": entity.Mrn,
		"kind":       entity.Kind,
		"org_mrn":    orgMrn,
	}).Info("created entity")
	return entity, nil
}

// Get returns the entity with the given MRN within the organization
func (s *Service) Get(ctx context.Context, orgID int64, kind Kind, entityMrn string) (*Entity, error) {
	return s.store.GetByMrn(ctx, orgID, kind, entityMrn)
}

// List returns the organization's entities of one kind
func (s *Service) List(ctx context.Context, orgID int64, kind Kind) ([]*Entity, error) {
	return s.store.ListByOrg(ctx, orgID, kind)
}

// Update applies changes to an existing entity and mirrors user changes
// into the users realm
func (s *Service) Update(ctx context.Context, orgID int64, orgMrn string, input *Entity) (*Entity, error) {
	entity, err := s.store.GetByMrn(ctx, orgID, input.Kind, input.Mrn)
	if err != nil {
		return nil, err
	}

	entity.Name = input.Name
	entity.Email = input.Email
	entity.Permissions = input.Permissions
	entity.OidcAccessType = input.OidcAccessType
	entity.OidcRedirectURI = input.OidcRedirectURI

	// Keep the broker client registration in step with the service record.
	if entity.Kind == KindService && entity.OidcClientID != "" {
		if err := s.registrar.UpdateClient(ctx, &federation.OIDCClient{
			ClientID:     entity.OidcClientID,
			Secret:       entity.OidcClientSecret,
			RedirectURIs: []string{entity.OidcRedirectURI},
			Enabled:      true,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.store.Update(ctx, entity); err != nil {
		return nil, err
	}

	if entity.Kind == KindUser {
		if err := s.directory.UpdateUser(ctx, directory.UserSpec{
			Mrn:         entity.Mrn,
			FirstName:   entity.Name,
			Email:       entity.Email,
			OrgMrn:      orgMrn,
			Permissions: entity.Permissions,
			Enabled:     true,
		}); err != nil {
			return nil, err
		}
	}
	return entity, nil
}

// Delete removes the entity, revoking its certificates first and cleaning
// up its broker client or users-realm mirror
func (s *Service) Delete(ctx context.Context, orgID int64, kind Kind, entityMrn string) error {
	entity, err := s.store.GetByMrn(ctx, orgID, kind, entityMrn)
	if err != nil {
		return err
	}

	if err := s.certs.CascadeRevoke(ctx, entity.CertificateOwner()); err != nil {
		return fmt.Errorf("revoking entity certificates: %w", err)
	}
	if err := s.cleanupExternal(ctx, entity); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, entity.ID); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"entity_mrn": entity.Mrn,
		"kind":       entity.Kind,
	}).Info("deleted entity")
	return nil
}

// ListUserEmails returns the email addresses of the organization's users
func (s *Service) ListUserEmails(ctx context.Context, orgID int64) ([]string, error) {
	users, err := s.store.ListByOrg(ctx, orgID, KindUser)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(users))
	for _, user := range users {
		if user.Email != "" {
			emails = append(emails, user.Email)
		}
	}
	return emails, nil
}

// DeleteByOrg removes every entity of the organization, revoking each
// entity's certificates and deleting broker clients along the way. Users
// in the shared realm are cleaned by the organization deletion flow.
func (s *Service) DeleteByOrg(ctx context.Context, orgID int64) error {
	all, err := s.store.ListAllByOrg(ctx, orgID)
	if err != nil {
		return err
	}
	for _, entity := range all {
		if err := s.certs.CascadeRevoke(ctx, entity.CertificateOwner()); err != nil {
			return fmt.Errorf("revoking certificates for %s: %w", entity.Mrn, err)
		}
		if entity.Kind == KindService && entity.OidcClientID != "" {
			if err := s.registrar.DeleteClient(ctx, entity.OidcClientID); err != nil {
				return err
			}
		}
		if err := s.store.Delete(ctx, entity.ID); err != nil {
			return err
		}
	}
	return nil
}

// cleanupExternal removes the entity's footprint outside the registry
func (s *Service) cleanupExternal(ctx context.Context, entity *Entity) error {
	switch entity.Kind {
	case KindService:
		if entity.OidcClientID != "" {
			return s.registrar.DeleteClient(ctx, entity.OidcClientID)
		}
	case KindUser:
		if entity.Email != "" {
			return s.directory.DeleteUser(ctx, entity.Email)
		}
	}
	return nil
}

// checkOwnership verifies the entity MRN names the organization's short
// name
func (s *Service) checkOwnership(orgMrn, entityMrn string) error {
	short, err := mrn.OrgShortNameFromEntityMrn(entityMrn)
	if err != nil {
		return err
	}
	if short != mrn.OrgShortName(orgMrn) {
		return fmt.Errorf("%w: %s", ErrMrnMismatch, entityMrn)
	}
	return nil
}

// generateSecret generates a random credential string
func generateSecret() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
