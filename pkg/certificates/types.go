package certificates

import "time"

// OwnerKind enumerates the closed set of entity kinds that can hold
// certificates. A certificate references at most one owner, discriminated
// by kind.
type OwnerKind string

const (
	KindOrganization OwnerKind = "organization"
	KindUser         OwnerKind = "user"
	KindDevice       OwnerKind = "device"
	KindVessel       OwnerKind = "vessel"
	KindService      OwnerKind = "service"

	// KindNone marks a certificate detached from its owner after a
	// cascading revocation
	KindNone OwnerKind = ""
)

// RevocationReason values follow the RFC 5280 CRL reason names used by the
// external CA.
const (
	ReasonUnspecified          = "unspecified"
	ReasonKeyCompromise        = "keycompromise"
	ReasonCACompromise         = "cacompromise"
	ReasonAffiliationChanged   = "affiliationchanged"
	ReasonSuperseded           = "superseded"
	ReasonCessationOfOperation = "cessationofoperation"
	ReasonCertificateHold      = "certificatehold"
	ReasonPrivilegeWithdrawn   = "privilegewithdrawn"
)

// Owner is the capability record the lifecycle manager needs from any
// entity that holds certificates: its discriminant, display fields used at
// issuance and the id of the organization the entity belongs to (for
// organizations themselves, OrgID equals ID).
type Owner struct {
	Kind  OwnerKind `json:"kind"`
	ID    int64     `json:"id"`
	OrgID int64     `json:"org_id"`
	Name  string    `json:"name"`
	Mrn   string    `json:"mrn"`
	Email string    `json:"email,omitempty"`
}

// Certificate is a certificate record. OwnerKind/OwnerID form the
// discriminated owner slot; both are cleared when the certificate is
// detached during a cascading revocation.
type Certificate struct {
	ID           int64      `json:"id"`
	Serial       string     `json:"serial"`
	OwnerKind    OwnerKind  `json:"owner_kind,omitempty"`
	OwnerID      int64      `json:"owner_id,omitempty"`
	OwnerOrgID   int64      `json:"owner_org_id,omitempty"`
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	Revoked      bool       `json:"revoked"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason string     `json:"revoke_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Active reports whether the certificate is inside its validity window and
// not revoked.
func (c *Certificate) Active(now time.Time) bool {
	return !c.Revoked && !now.UTC().Before(c.Start) && now.UTC().Before(c.End)
}

// Expired reports the derived expiry classification: the validity window
// has lapsed and the certificate was never revoked.
func (c *Certificate) Expired(now time.Time) bool {
	return !c.Revoked && now.UTC().After(c.End)
}
