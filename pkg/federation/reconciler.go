package federation

import (
	"context"
	"fmt"
	"strings"

	"github.com/maritimeconnect/mir/pkg/mrn"
	"github.com/maritimeconnect/mir/pkg/observability"
)

// firstBrokerLoginFlow is the login flow assigned to every provider the
// reconciler creates
const firstBrokerLoginFlow = "Auto first broker login"

// Reconciler applies organization identity provider state to the broker
// realm of the federation service
type Reconciler struct {
	client Client
	logger *observability.Logger
}

// NewReconciler creates a new reconciler over the given client
func NewReconciler(client Client, logger *observability.Logger) *Reconciler {
	return &Reconciler{client: client, logger: logger}
}

// CreateOrUpdateProvider creates the identity provider for the organization,
// or replaces it if one already exists under the same alias. It finishes
// with a full mapper replacement so a partially applied earlier run is
// repaired by re-invocation.
func (r *Reconciler) CreateOrUpdateProvider(ctx context.Context, orgMrn string, attrs []Attribute) error {
	attrMap := AttributesToMap(attrs)

	providerType := attrMap[AttrProviderType]
	if providerType == "" {
		return fmt.Errorf("%w: missing providerType", ErrInvalidConfiguration)
	}
	if providerType != ProviderTypeOIDC && providerType != ProviderTypeSAML {
		return fmt.Errorf("%w: providerType must be %q or %q", ErrInvalidConfiguration, ProviderTypeOIDC, ProviderTypeSAML)
	}

	config, err := r.resolveConfig(ctx, providerType, attrMap)
	if err != nil {
		return err
	}

	if providerType == ProviderTypeOIDC {
		clientID := attrMap[AttrClientID]
		clientSecret := attrMap[AttrClientSecret]
		if clientID == "" {
			return fmt.Errorf("%w: missing clientId", ErrInvalidConfiguration)
		}
		if clientSecret == "" {
			return fmt.Errorf("%w: missing clientSecret", ErrInvalidConfiguration)
		}
		config[AttrClientID] = clientID
		config[AttrClientSecret] = clientSecret
	}

	alias := mrn.OrgShortName(orgMrn)

	provider := &Provider{
		Alias:                     alias,
		ProviderID:                providerType,
		Enabled:                   true,
		TrustEmail:                true,
		StoreToken:                false,
		AddReadTokenRoleOnCreate:  false,
		FirstBrokerLoginFlowAlias: firstBrokerLoginFlow,
		Config:                    config,
	}

	existing, err := r.client.GetProvider(ctx, alias)
	if err != nil {
		return fmt.Errorf("provider lookup for %s: %w", alias, err)
	}
	if existing != nil {
		if err := r.client.UpdateProvider(ctx, provider); err != nil {
			return fmt.Errorf("update provider %s: %w", alias, err)
		}
	} else {
		if err := r.client.CreateProvider(ctx, provider); err != nil {
			return fmt.Errorf("create provider %s: %w", alias, err)
		}
	}

	if err := r.replaceMappers(ctx, providerType, attrMap, alias, orgMrn); err != nil {
		return err
	}

	r.logger.WithFields(map[string]interface{}{
		"org_mrn":       orgMrn,
		"alias":         alias,
		"provider_type": providerType,
	}).Info("reconciled identity provider")
	return nil
}

// resolveConfig returns the provider configuration, importing it from the
// supplied URL when one is present
func (r *Reconciler) resolveConfig(ctx context.Context, providerType string, attrMap map[string]string) (map[string]string, error) {
	if importURL, ok := attrMap[AttrImportURL]; ok {
		config, err := r.client.ImportConfig(ctx, importURL, providerType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
		}
		if len(config) == 0 {
			return nil, fmt.Errorf("%w: no configuration found at import URL", ErrImportFailed)
		}
		return config, nil
	}
	config := make(map[string]string, len(attrMap))
	for name, value := range attrMap {
		if name == AttrProviderType {
			continue
		}
		config[name] = value
	}
	return config, nil
}

// replaceMappers deletes every mapper on the provider and installs the
// freshly built set
func (r *Reconciler) replaceMappers(ctx context.Context, providerType string, attrMap map[string]string, alias, orgMrn string) error {
	existing, err := r.client.ListMappers(ctx, alias)
	if err != nil {
		return fmt.Errorf("list mappers for %s: %w", alias, err)
	}
	for _, mapper := range existing {
		if err := r.client.DeleteMapper(ctx, alias, mapper.ID); err != nil {
			return fmt.Errorf("delete mapper %s on %s: %w", mapper.ID, alias, err)
		}
	}
	for _, mapper := range BuildMappers(providerType, attrMap, alias, orgMrn) {
		mapper := mapper
		if err := r.client.AddMapper(ctx, &mapper); err != nil {
			return fmt.Errorf("add mapper %s on %s: %w", mapper.Name, alias, err)
		}
	}
	return nil
}

// DeleteProvider removes the organization's identity provider and every
// federated user it brokered. Users are removed before the provider so a
// partial failure cannot orphan federated identities.
func (r *Reconciler) DeleteProvider(ctx context.Context, orgMrn string) error {
	alias := mrn.OrgShortName(orgMrn)

	prefix := orgMrn + ":user:"
	users, err := r.client.SearchUsers(ctx, prefix)
	if err != nil {
		return fmt.Errorf("search federated users for %s: %w", orgMrn, err)
	}
	for _, user := range users {
		if !strings.HasPrefix(user.Username, prefix) {
			continue
		}
		if err := r.client.DeleteUser(ctx, user.ID); err != nil {
			return fmt.Errorf("delete federated user %s: %w", user.Username, err)
		}
	}

	if err := r.client.DeleteProvider(ctx, alias); err != nil {
		return fmt.Errorf("delete provider %s: %w", alias, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"org_mrn": orgMrn,
		"alias":   alias,
		"users":   len(users),
	}).Info("deleted identity provider")
	return nil
}

// ReconcileOrganizationUpdate compares the organization's old and new
// attribute sets and applies the minimal provider transition: delete when
// attributes were removed, delete-then-create when they changed, create
// when they appeared, nothing when they are equal.
func (r *Reconciler) ReconcileOrganizationUpdate(ctx context.Context, orgMrn string, oldAttrs, newAttrs []Attribute) error {
	switch {
	case len(newAttrs) == 0 && len(oldAttrs) > 0:
		return r.DeleteProvider(ctx, orgMrn)
	case len(newAttrs) > 0 && len(oldAttrs) == 0:
		return r.CreateOrUpdateProvider(ctx, orgMrn, newAttrs)
	case len(newAttrs) > 0 && !AttributesEqual(oldAttrs, newAttrs):
		if err := r.DeleteProvider(ctx, orgMrn); err != nil {
			return err
		}
		return r.CreateOrUpdateProvider(ctx, orgMrn, newAttrs)
	default:
		return nil
	}
}
