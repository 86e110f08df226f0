package entities

import (
	"time"

	"github.com/maritimeconnect/mir/pkg/certificates"
)

// Kind enumerates the entity kinds managed under an organization
type Kind string

const (
	KindUser    Kind = "user"
	KindDevice  Kind = "device"
	KindVessel  Kind = "vessel"
	KindService Kind = "service"
)

// Valid reports whether the kind is one of the managed entity kinds
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindDevice, KindVessel, KindService:
		return true
	}
	return false
}

// Entity is an identity holder registered under an organization
type Entity struct {
	ID          int64  `json:"id"`
	OrgID       int64  `json:"org_id"`
	Kind        Kind   `json:"kind"`
	Mrn         string `json:"mrn"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Permissions string `json:"permissions,omitempty"`

	// Service instance fields. A service with a redirect URI gets an OpenID
	// Connect client registered in the broker realm.
	OidcAccessType   string `json:"oidcAccessType,omitempty"`
	OidcClientID     string `json:"oidcClientId,omitempty"`
	OidcClientSecret string `json:"oidcClientSecret,omitempty"`
	OidcRedirectURI  string `json:"oidcRedirectUri,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CertificateOwner returns the certificate owner binding for this entity
func (e *Entity) CertificateOwner() certificates.Owner {
	return certificates.Owner{
		Kind:  certificates.OwnerKind(e.Kind),
		ID:    e.ID,
		OrgID: e.OrgID,
		Name:  e.Name,
		Mrn:   e.Mrn,
		Email: e.Email,
	}
}
