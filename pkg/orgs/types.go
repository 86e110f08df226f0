package orgs

import (
	"time"

	"github.com/maritimeconnect/mir/pkg/federation"
	"github.com/maritimeconnect/mir/pkg/mrn"
)

// Organization represents a maritime organization registered with the
// identity registry
type Organization struct {
	ID            int64                  `json:"id"`
	Mrn           string                 `json:"mrn"`
	Name          string                 `json:"name"`
	Email         string                 `json:"email"`
	URL           string                 `json:"url,omitempty"`
	Address       string                 `json:"address,omitempty"`
	Country       string                 `json:"country,omitempty"`
	Approved      bool                   `json:"approved"`
	IdpAttributes []federation.Attribute `json:"identityProviderAttributes,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// ShortName returns the organization's short name derived from its MRN
func (o *Organization) ShortName() string {
	return mrn.OrgShortName(o.Mrn)
}

// HasIdp reports whether the organization brokers its own identity provider
func (o *Organization) HasIdp() bool {
	return len(o.IdpAttributes) > 0
}

// copyUpdatableFields applies the caller-editable fields of in to o. MRN
// and approval state are never copied; they have their own transitions.
func (o *Organization) copyUpdatableFields(in *Organization) {
	o.Name = in.Name
	o.Email = in.Email
	o.URL = in.URL
	o.Address = in.Address
	o.Country = in.Country
	o.IdpAttributes = in.IdpAttributes
}
