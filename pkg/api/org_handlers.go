package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/maritimeconnect/mir/pkg/certificates"
	"github.com/maritimeconnect/mir/pkg/httputil"
	"github.com/maritimeconnect/mir/pkg/orgs"
)

// OrgService is the organization lifecycle surface used by the handlers
type OrgService interface {
	Apply(ctx context.Context, org *orgs.Organization) (*orgs.Organization, error)
	Approve(ctx context.Context, orgMrn string) (*orgs.Organization, error)
	Get(ctx context.Context, orgMrn string) (*orgs.Organization, error)
	List(ctx context.Context) ([]*orgs.Organization, error)
	ListUnapproved(ctx context.Context) ([]*orgs.Organization, error)
	Update(ctx context.Context, orgMrn string, input *orgs.Organization) (*orgs.Organization, error)
	Delete(ctx context.Context, orgMrn string) error
}

// CertificateService is the certificate lifecycle surface used by the
// handlers
type CertificateService interface {
	Issue(ctx context.Context, owner certificates.Owner) (*certificates.Certificate, error)
	Revoke(ctx context.Context, certID int64, reason string, callerOrgID int64) (*certificates.Certificate, error)
	ListByOwner(ctx context.Context, owner certificates.Owner) ([]*certificates.Certificate, error)
}

// CertificateRevocation is the request body for revoking a certificate
type CertificateRevocation struct {
	Reason string `json:"revokationReason"`
}

// OrgHandlers handles organization lifecycle HTTP requests
type OrgHandlers struct {
	orgService  OrgService
	certService CertificateService
}

// NewOrgHandlers creates a new OrgHandlers
func NewOrgHandlers(orgService OrgService, certService CertificateService) *OrgHandlers {
	return &OrgHandlers{
		orgService:  orgService,
		certService: certService,
	}
}

// RegisterRoutes registers organization routes. Fixed paths are registered
// before the MRN-parameterized ones so they are matched first.
func (h *OrgHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/org/unapprovedorgs", h.ListUnapproved).Methods("GET")
	router.HandleFunc("/orgs", h.ListOrganizations).Methods("GET")

	router.HandleFunc("/org/{orgMrn}/approve", h.ApproveOrganization).Methods("GET")
	router.HandleFunc("/org/{orgMrn}/certificate/issue-new", h.IssueCertificate).Methods("GET")
	router.HandleFunc("/org/{orgMrn}/certificate/{certId}/revoke", h.RevokeCertificate).Methods("POST")
	router.HandleFunc("/org/{orgMrn}/certificates", h.ListCertificates).Methods("GET")

	router.HandleFunc("/org/{orgMrn}", h.GetOrganization).Methods("GET")
	router.HandleFunc("/org/{orgMrn}", h.UpdateOrganization).Methods("PUT")
	router.HandleFunc("/org/{orgMrn}", h.DeleteOrganization).Methods("DELETE")
}

// RegisterOpenRoutes registers the routes reachable without a bearer
// token. New organizations apply before they have any account to sign in
// with.
func (h *OrgHandlers) RegisterOpenRoutes(router *mux.Router) {
	router.HandleFunc("/org/apply", h.ApplyOrganization).Methods("POST")
}

// ApplyOrganization registers a new organization awaiting approval
func (h *OrgHandlers) ApplyOrganization(w http.ResponseWriter, r *http.Request) {
	var input orgs.Organization
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	org, err := h.orgService.Apply(r.Context(), &input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, org)
}

// ApproveOrganization flips a pending organization to approved
func (h *OrgHandlers) ApproveOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgService.Approve(r.Context(), mux.Vars(r)["orgMrn"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// GetOrganization returns the approved organization with the given MRN
func (h *OrgHandlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgService.Get(r.Context(), mux.Vars(r)["orgMrn"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// ListOrganizations lists every approved organization
func (h *OrgHandlers) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	list, err := h.orgService.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// ListUnapproved lists organizations awaiting approval
func (h *OrgHandlers) ListUnapproved(w http.ResponseWriter, r *http.Request) {
	list, err := h.orgService.ListUnapproved(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// UpdateOrganization applies caller-editable fields to an organization
func (h *OrgHandlers) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var input orgs.Organization
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	org, err := h.orgService.Update(r.Context(), mux.Vars(r)["orgMrn"], &input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// DeleteOrganization removes an organization and all its dependent state
func (h *OrgHandlers) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	if err := h.orgService.Delete(r.Context(), mux.Vars(r)["orgMrn"]); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// IssueCertificate issues a new certificate bound to the organization
func (h *OrgHandlers) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgService.Get(r.Context(), mux.Vars(r)["orgMrn"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	cert, err := h.certService.Issue(r.Context(), orgOwner(org))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, cert)
}

// RevokeCertificate revokes one of the organization's certificates
func (h *OrgHandlers) RevokeCertificate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	certID, ok := httputil.ParsePathInt64OrError(w, r, "certId")
	if !ok {
		return
	}
	var input CertificateRevocation
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	org, err := h.orgService.Get(r.Context(), vars["orgMrn"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	cert, err := h.certService.Revoke(r.Context(), certID, input.Reason, org.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, cert)
}

// ListCertificates lists the organization's certificates
func (h *OrgHandlers) ListCertificates(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgService.Get(r.Context(), mux.Vars(r)["orgMrn"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	certs, err := h.certService.ListByOwner(r.Context(), orgOwner(org))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, certs)
}

// orgOwner returns the certificate owner binding for an organization
func orgOwner(org *orgs.Organization) certificates.Owner {
	return certificates.Owner{
		Kind:  certificates.KindOrganization,
		ID:    org.ID,
		OrgID: org.ID,
		Name:  org.Name,
		Mrn:   org.Mrn,
		Email: org.Email,
	}
}
