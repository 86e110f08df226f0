package api

import (
	"errors"
	"net/http"

	"github.com/maritimeconnect/mir/pkg/certificates"
	"github.com/maritimeconnect/mir/pkg/entities"
	"github.com/maritimeconnect/mir/pkg/federation"
	"github.com/maritimeconnect/mir/pkg/httputil"
	"github.com/maritimeconnect/mir/pkg/mrn"
	"github.com/maritimeconnect/mir/pkg/orgs"
)

// writeDomainError maps domain errors onto stable HTTP status codes.
// Federation failures are reported as a generic upstream error; their
// response bodies are never forwarded to callers.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orgs.ErrNotFound),
		errors.Is(err, entities.ErrNotFound),
		errors.Is(err, certificates.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, orgs.ErrAlreadyExists):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, orgs.ErrAlreadyApproved):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, certificates.ErrForbidden):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, orgs.ErrMrnMismatch),
		errors.Is(err, entities.ErrMrnMismatch),
		errors.Is(err, mrn.ErrInvalidMrn),
		errors.Is(err, mrn.ErrMalformedMrn),
		errors.Is(err, mrn.ErrUnsupportedKind),
		errors.Is(err, certificates.ErrNoOwner),
		errors.Is(err, federation.ErrInvalidConfiguration),
		errors.Is(err, federation.ErrImportFailed):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, federation.ErrExternalService):
		httputil.WriteBadGateway(w, "identity broker unavailable")
	default:
		httputil.WriteInternalError(w, err)
	}
}
