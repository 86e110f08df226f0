package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/maritimeconnect/mir/pkg/entities"
	"github.com/maritimeconnect/mir/pkg/httputil"
	"github.com/maritimeconnect/mir/pkg/orgs"
)

// EntityService is the entity management surface used by the handlers
type EntityService interface {
	Create(ctx context.Context, orgID int64, orgMrn string, entity *entities.Entity) (*entities.Entity, error)
	Get(ctx context.Context, orgID int64, kind entities.Kind, entityMrn string) (*entities.Entity, error)
	List(ctx context.Context, orgID int64, kind entities.Kind) ([]*entities.Entity, error)
	Update(ctx context.Context, orgID int64, orgMrn string, input *entities.Entity) (*entities.Entity, error)
	Delete(ctx context.Context, orgID int64, kind entities.Kind, entityMrn string) error
}

// EntityHandlers handles entity HTTP requests for every entity kind
type EntityHandlers struct {
	orgService    OrgService
	entityService EntityService
	certService   CertificateService
}

// NewEntityHandlers creates a new EntityHandlers
func NewEntityHandlers(orgService OrgService, entityService EntityService,
	certService CertificateService) *EntityHandlers {
	return &EntityHandlers{
		orgService:    orgService,
		entityService: entityService,
		certService:   certService,
	}
}

// RegisterRoutes registers entity routes. These are parameterized over the
// entity kind and must be registered after the organization routes so the
// fixed organization paths win.
func (h *EntityHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/org/{orgMrn}/{kind}s", h.ListEntities).Methods("GET")
	router.HandleFunc("/org/{orgMrn}/{kind}", h.CreateEntity).Methods("POST")
	router.HandleFunc("/org/{orgMrn}/{kind}/{entityMrn}/certificate/issue-new", h.IssueCertificate).Methods("GET")
	router.HandleFunc("/org/{orgMrn}/{kind}/{entityMrn}/certificate/{certId}/revoke", h.RevokeCertificate).Methods("POST")
	router.HandleFunc("/org/{orgMrn}/{kind}/{entityMrn}/certificates", h.ListCertificates).Methods("GET")
	router.HandleFunc("/org/{orgMrn}/{kind}/{entityMrn}", h.GetEntity).Methods("GET")
	router.HandleFunc("/org/{orgMrn}/{kind}/{entityMrn}", h.UpdateEntity).Methods("PUT")
	router.HandleFunc("/org/{orgMrn}/{kind}/{entityMrn}", h.DeleteEntity).Methods("DELETE")
}

// resolve parses the kind path variable and loads the addressed
// organization
func (h *EntityHandlers) resolve(w http.ResponseWriter, r *http.Request) (*orgs.Organization, entities.Kind, bool) {
	vars := mux.Vars(r)
	kind := entities.Kind(vars["kind"])
	if !kind.Valid() {
		httputil.WriteNotFoundError(w, fmt.Sprintf("unknown entity kind: %s", vars["kind"]))
		return nil, "", false
	}
	org, err := h.orgService.Get(r.Context(), vars["orgMrn"])
	if err != nil {
		writeDomainError(w, err)
		return nil, "", false
	}
	return org, kind, true
}

// CreateEntity registers a new entity under the organization
func (h *EntityHandlers) CreateEntity(w http.ResponseWriter, r *http.Request) {
	org, kind, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var input entities.Entity
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	input.Kind = kind
	entity, err := h.entityService.Create(r.Context(), org.ID, org.Mrn, &input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, entity)
}

// GetEntity returns one entity by MRN
func (h *EntityHandlers) GetEntity(w http.ResponseWriter, r *http.Request) {
	org, kind, ok := h.resolve(w, r)
	if !ok {
		return
	}
	entity, err := h.entityService.Get(r.Context(), org.ID, kind, mux.Vars(r)["entityMrn"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, entity)
}

// ListEntities lists the organization's entities of one kind
func (h *EntityHandlers) ListEntities(w http.ResponseWriter, r *http.Request) {
	org, kind, ok := h.resolve(w, r)
	if !ok {
		return
	}
	list, err := h.entityService.List(r.Context(), org.ID, kind)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// UpdateEntity applies changes to an existing entity
func (h *EntityHandlers) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	org, kind, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var input entities.Entity
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	input.Kind = kind
	input.Mrn = mux.Vars(r)["entityMrn"]
	entity, err := h.entityService.Update(r.Context(), org.ID, org.Mrn, &input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, entity)
}

// DeleteEntity removes an entity and revokes its certificates
func (h *EntityHandlers) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	org, kind, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if err := h.entityService.Delete(r.Context(), org.ID, kind, mux.Vars(r)["entityMrn"]); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// IssueCertificate issues a new certificate bound to the entity
func (h *EntityHandlers) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	org, kind, ok := h.resolve(w, r)
	if !ok {
		return
	}
	entity, err := h.entityService.Get(r.Context(), org.ID, kind, mux.Vars(r)["entityMrn"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	cert, err := h.certService.Issue(r.Context(), entity.CertificateOwner())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, cert)
}

// RevokeCertificate revokes one of the entity's certificates
func (h *EntityHandlers) RevokeCertificate(w http.ResponseWriter, r *http.Request) {
	org, _, ok := h.resolve(w, r)
	if !ok {
		return
	}
	certID, ok := httputil.ParsePathInt64OrError(w, r, "certId")
	if !ok {
		return
	}
	var input CertificateRevocation
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	cert, err := h.certService.Revoke(r.Context(), certID, input.Reason, org.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, cert)
}

// ListCertificates lists the entity's certificates
func (h *EntityHandlers) ListCertificates(w http.ResponseWriter, r *http.Request) {
	org, kind, ok := h.resolve(w, r)
	if !ok {
		return
	}
	entity, err := h.entityService.Get(r.Context(), org.ID, kind, mux.Vars(r)["entityMrn"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	certs, err := h.certService.ListByOwner(r.Context(), entity.CertificateOwner())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, certs)
}
