package orgs

import (
	"context"
	"fmt"
	"strings"

	"github.com/maritimeconnect/mir/pkg/certificates"
	"github.com/maritimeconnect/mir/pkg/federation"
	"github.com/maritimeconnect/mir/pkg/mrn"
	"github.com/maritimeconnect/mir/pkg/observability"
)

// ProviderReconciler drives identity provider state in the broker realm
type ProviderReconciler interface {
	CreateOrUpdateProvider(ctx context.Context, orgMrn string, attrs []federation.Attribute) error
	DeleteProvider(ctx context.Context, orgMrn string) error
	ReconcileOrganizationUpdate(ctx context.Context, orgMrn string, oldAttrs, newAttrs []federation.Attribute) error
}

// CertificateRevoker revokes certificates when their owner is removed
type CertificateRevoker interface {
	CascadeRevoke(ctx context.Context, owner certificates.Owner) error
}

// EntityPurger removes an organization's entities and their external state
type EntityPurger interface {
	// ListUserEmails returns the email addresses of the organization's users
	ListUserEmails(ctx context.Context, orgID int64) ([]string, error)
	// DeleteByOrg removes every entity belonging to the organization,
	// cascade revoking their certificates first
	DeleteByOrg(ctx context.Context, orgID int64) error
}

// DirectoryCleaner removes users from the shared users realm
type DirectoryCleaner interface {
	DeleteUser(ctx context.Context, email string) error
}

// Notifier sends lifecycle notification mail
type Notifier interface {
	SendOrgAwaitingApproval(ctx context.Context, to, orgName string) error
	SendAdminOrgAwaitingApproval(ctx context.Context, orgName string) error
}

// Service orchestrates the organization lifecycle
type Service struct {
	store      Store
	reconciler ProviderReconciler
	certs      CertificateRevoker
	entities   EntityPurger
	directory  DirectoryCleaner
	notifier   Notifier
	logger     *observability.Logger
}

// NewService creates a new organization lifecycle service
func NewService(store Store, reconciler ProviderReconciler, certs CertificateRevoker,
	entities EntityPurger, directory DirectoryCleaner, notifier Notifier,
	logger *observability.Logger) *Service {
	return &Service{
		store:      store,
		reconciler: reconciler,
		certs:      certs,
		entities:   entities,
		directory:  directory,
		notifier:   notifier,
		logger:     logger,
	}
}

// Apply registers a new organization awaiting approval. The MRN is
// normalized to its trimmed, lower-case form before validation and
// persistence. Notification failures do not fail the application.
func (s *Service) Apply(ctx context.Context, org *Organization) (*Organization, error) {
	org.Mrn = strings.ToLower(strings.TrimSpace(org.Mrn))
	if err := mrn.Validate(org.Mrn); err != nil {
		return nil, err
	}
	org.Approved = false

	if err := s.store.Create(ctx, org); err != nil {
		return nil, err
	}

	if err := s.notifier.SendOrgAwaitingApproval(ctx, org.Email, org.Name); err != nil {
		s.logger.WithError(err).WithField("org_mrn", org.Mrn).Warn("failed to send applicant notification")
	}
	if err := s.notifier.SendAdminOrgAwaitingApproval(ctx, org.Name); err != nil {
		s.logger.WithError(err).WithField("org_mrn", org.Mrn).Warn("failed to send admin notification")
	}

	s.logger.WithField("org_mrn", org.Mrn).Info("organization applied")
	return org, nil
}

// Approve marks the organization approved and, if it supplies identity
// provider attributes, creates its provider in the broker realm. Approval
// is one-way; approving twice fails with ErrAlreadyApproved.
func (s *Service) Approve(ctx context.Context, orgMrn string) (*Organization, error) {
	org, err := s.store.GetByMrnAnyState(ctx, orgMrn)
	if err != nil {
		return nil, err
	}
	if org.Approved {
		return nil, ErrAlreadyApproved
	}

	if org.HasIdp() {
		if err := s.reconciler.CreateOrUpdateProvider(ctx, org.Mrn, org.IdpAttributes); err != nil {
			return nil, err
		}
	}

	org.Approved = true
	if err := s.store.Update(ctx, org); err != nil {
		return nil, err
	}

	s.logger.WithField("org_mrn", org.Mrn).Info("organization approved")
	return org, nil
}

// Get returns the approved organization with the given MRN
func (s *Service) Get(ctx context.Context, orgMrn string) (*Organization, error) {
	return s.store.GetByMrn(ctx, orgMrn)
}

// List returns every approved organization
func (s *Service) List(ctx context.Context) ([]*Organization, error) {
	return s.store.List(ctx)
}

// ListUnapproved returns every organization awaiting approval
func (s *Service) ListUnapproved(ctx context.Context) ([]*Organization, error) {
	return s.store.ListUnapproved(ctx)
}

// Update applies caller-editable fields and reconciles the identity
// provider against the changed attribute set. The MRN in the body must
// match the MRN being addressed.
func (s *Service) Update(ctx context.Context, orgMrn string, input *Organization) (*Organization, error) {
	if input.Mrn != "" && input.Mrn != orgMrn {
		return nil, ErrMrnMismatch
	}

	org, err := s.store.GetByMrn(ctx, orgMrn)
	if err != nil {
		return nil, err
	}

	if err := s.reconciler.ReconcileOrganizationUpdate(ctx, org.Mrn, org.IdpAttributes, input.IdpAttributes); err != nil {
		return nil, err
	}

	org.copyUpdatableFields(input)
	if err := s.store.Update(ctx, org); err != nil {
		return nil, err
	}

	s.logger.WithField("org_mrn", org.Mrn).Info("organization updated")
	return org, nil
}

// Delete removes the organization, its entities and its external identity
// state. Certificates are revoked before any record is deleted so no
// active certificate can outlive its owner.
func (s *Service) Delete(ctx context.Context, orgMrn string) error {
	org, err := s.store.GetByMrnAnyState(ctx, orgMrn)
	if err != nil {
		return err
	}

	owner := certificates.Owner{
		Kind:  certificates.KindOrganization,
		ID:    org.ID,
		OrgID: org.ID,
		Name:  org.Name,
		Mrn:   org.Mrn,
	}
	if err := s.certs.CascadeRevoke(ctx, owner); err != nil {
		return fmt.Errorf("revoking organization certificates: %w", err)
	}

	if org.HasIdp() {
		if err := s.reconciler.DeleteProvider(ctx, org.Mrn); err != nil {
			return err
		}
	} else {
		// The organization's users live in the shared users realm; remove
		// them individually.
		emails, err := s.entities.ListUserEmails(ctx, org.ID)
		if err != nil {
			return err
		}
		for _, email := range emails {
			if err := s.directory.DeleteUser(ctx, email); err != nil {
				return err
			}
		}
	}

	if err := s.entities.DeleteByOrg(ctx, org.ID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, org.ID); err != nil {
		return err
	}

	s.logger.WithField("org_mrn", org.Mrn).Info("organization deleted")
	return nil
}
