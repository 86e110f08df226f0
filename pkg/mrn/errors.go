package mrn

import "errors"

var (
	// ErrInvalidMrn is returned when a string fails MRN grammar validation
	ErrInvalidMrn = errors.New("invalid MRN")

	// ErrMalformedMrn is returned when an MRN lacks the structure an
	// extraction function requires (e.g. no entity type marker)
	ErrMalformedMrn = errors.New("malformed MRN")

	// ErrUnsupportedKind is returned when an MRN cannot be generated for
	// the requested entity kind
	ErrUnsupportedKind = errors.New("unsupported entity kind")
)
