package federation

import "errors"

var (
	// ErrInvalidConfiguration indicates the identity provider attribute set
	// fails a precondition (missing or unsupported providerType, missing
	// oidc client credentials)
	ErrInvalidConfiguration = errors.New("invalid identity provider configuration")

	// ErrImportFailed indicates the provider configuration could not be
	// imported from the supplied URL
	ErrImportFailed = errors.New("identity provider import failed")

	// ErrExternalService indicates the federation service was unreachable or
	// returned a failure status
	ErrExternalService = errors.New("external identity system error")
)
