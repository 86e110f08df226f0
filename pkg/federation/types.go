package federation

import "context"

// Provider types accepted in identity provider attribute sets
const (
	ProviderTypeOIDC = "oidc"
	ProviderTypeSAML = "saml"
)

// Well-known identity provider attribute keys
const (
	AttrProviderType = "providerType"
	AttrImportURL    = "importUrl"
	AttrClientID     = "clientId"
	AttrClientSecret = "clientSecret"
	AttrUsername     = "usernameAttr"
	AttrFirstName    = "firstNameAttr"
	AttrLastName     = "lastNameAttr"
	AttrEmail        = "emailAttr"
	AttrPermissions  = "permissionsAttr"
)

// Attribute is a single identity provider attribute supplied by an
// organization
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AttributesToMap flattens an attribute list into a lookup map. Later
// entries win on duplicate names.
func AttributesToMap(attrs []Attribute) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		m[attr.Name] = attr.Value
	}
	return m
}

// AttributesEqual reports whether two attribute sets carry the same
// name/value pairs, independent of order
func AttributesEqual(a, b []Attribute) bool {
	am := AttributesToMap(a)
	bm := AttributesToMap(b)
	if len(am) != len(bm) {
		return false
	}
	for name, value := range am {
		if other, ok := bm[name]; !ok || other != value {
			return false
		}
	}
	return true
}

// Provider is an identity provider record in the broker realm
type Provider struct {
	Alias                     string            `json:"alias"`
	ProviderID                string            `json:"providerId"`
	Enabled                   bool              `json:"enabled"`
	TrustEmail                bool              `json:"trustEmail"`
	StoreToken                bool              `json:"storeToken"`
	AddReadTokenRoleOnCreate  bool              `json:"addReadTokenRoleOnCreate"`
	FirstBrokerLoginFlowAlias string            `json:"firstBrokerLoginFlowAlias"`
	Config                    map[string]string `json:"config"`
}

// Mapper is an attribute mapper attached to an identity provider
type Mapper struct {
	ID                    string            `json:"id,omitempty"`
	Name                  string            `json:"name"`
	IdentityProviderAlias string            `json:"identityProviderAlias"`
	MapperType            string            `json:"identityProviderMapper"`
	Config                map[string]string `json:"config"`
}

// User is a user record in a federation realm
type User struct {
	ID         string              `json:"id,omitempty"`
	Username   string              `json:"username"`
	FirstName  string              `json:"firstName,omitempty"`
	LastName   string              `json:"lastName,omitempty"`
	Email      string              `json:"email,omitempty"`
	Enabled    bool                `json:"enabled"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// Client is the abstract federation service client the reconciler and the
// directory sync operate against. A nil provider with a nil error from
// GetProvider means the alias does not exist, which is an expected branch
// and not an error.
type Client interface {
	GetProvider(ctx context.Context, alias string) (*Provider, error)
	CreateProvider(ctx context.Context, provider *Provider) error
	UpdateProvider(ctx context.Context, provider *Provider) error
	DeleteProvider(ctx context.Context, alias string) error

	ListMappers(ctx context.Context, alias string) ([]Mapper, error)
	AddMapper(ctx context.Context, mapper *Mapper) error
	DeleteMapper(ctx context.Context, alias, mapperID string) error

	// ImportConfig asks the federation service to parse a provider
	// configuration from a well-known URL
	ImportConfig(ctx context.Context, fromURL, providerID string) (map[string]string, error)

	SearchUsers(ctx context.Context, search string) ([]User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, userID string) error
	ResetPassword(ctx context.Context, userID, password string, temporary bool) error

	CreateClient(ctx context.Context, client *OIDCClient) error
	UpdateClient(ctx context.Context, client *OIDCClient) error
	DeleteClient(ctx context.Context, clientID string) error
}

// OIDCClient is a service client registration in the broker realm
type OIDCClient struct {
	ClientID     string   `json:"clientId"`
	Secret       string   `json:"secret,omitempty"`
	RedirectURIs []string `json:"redirectUris,omitempty"`
	Enabled      bool     `json:"enabled"`
}
