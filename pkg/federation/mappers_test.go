package federation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapperNames(mappers []Mapper) []string {
	names := make([]string, len(mappers))
	for i, m := range mappers {
		names[i] = m.Name
	}
	return names
}

func TestBuildMappers_OIDCPermissionsOnly(t *testing.T) {
	attrs := map[string]string{
		AttrProviderType: ProviderTypeOIDC,
		AttrPermissions:  "roles",
	}

	mappers := BuildMappers(ProviderTypeOIDC, attrs, "dma", "urn:mrn:mcl:org:dma")

	assert.Equal(t, []string{"org mapper", "username mapper", "permissions mapper"}, mapperNames(mappers))

	perms := mappers[2]
	assert.Equal(t, "oidc-user-attribute-idp-mapper", perms.MapperType)
	assert.Equal(t, "roles", perms.Config["claim"])
	assert.Equal(t, "permissions", perms.Config["user.attribute"])
}

func TestBuildMappers_OIDCNoAttrs(t *testing.T) {
	attrs := map[string]string{AttrProviderType: ProviderTypeOIDC}

	mappers := BuildMappers(ProviderTypeOIDC, attrs, "dma", "urn:mrn:mcl:org:dma")

	// Only the permissions mapper has an oidc default claim; name and email
	// mappers are skipped entirely.
	require.Equal(t, []string{"org mapper", "username mapper", "permissions mapper"}, mapperNames(mappers))
	assert.Equal(t, "permissions", mappers[2].Config["claim"])
}

func TestBuildMappers_SAMLDefaults(t *testing.T) {
	attrs := map[string]string{AttrProviderType: ProviderTypeSAML}

	mappers := BuildMappers(ProviderTypeSAML, attrs, "dma", "urn:mrn:mcl:org:dma")

	require.Equal(t, []string{
		"org mapper", "username mapper",
		"firstName mapper", "lastName mapper", "email mapper", "permissions mapper",
	}, mapperNames(mappers))

	assert.Equal(t, "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/givenname",
		mappers[2].Config["attribute.name"])
	assert.Equal(t, "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/surname",
		mappers[3].Config["attribute.name"])
	assert.Equal(t, "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress",
		mappers[4].Config["attribute.name"])
	assert.Equal(t, "http://schemas.microsoft.com/ws/2008/06/identity/claims/role",
		mappers[5].Config["attribute.name"])
	for _, m := range mappers[2:] {
		assert.Equal(t, "saml-user-attribute-idp-mapper", m.MapperType)
	}
}

func TestBuildMappers_OrgMapper(t *testing.T) {
	mappers := BuildMappers(ProviderTypeSAML, map[string]string{}, "dma", "urn:mrn:mcl:org:dma")

	org := mappers[0]
	assert.Equal(t, "hardcoded-attribute-idp-mapper", org.MapperType)
	assert.Equal(t, "urn:mrn:mcl:org:dma", org.Config["attribute.value"])
	assert.Equal(t, "org", org.Config["attribute"])
	assert.Equal(t, "dma", org.IdentityProviderAlias)
}

func TestBuildMappers_UsernameTemplates(t *testing.T) {
	oidc := BuildMappers(ProviderTypeOIDC, map[string]string{}, "dma", "urn:mrn:mcl:org:dma")
	assert.Equal(t, "urn:mrn:mcl:user:${ALIAS}:${CLAIM.preferred_username}", oidc[1].Config["template"])
	assert.Equal(t, "oidc-username-idp-mapper", oidc[1].MapperType)

	saml := BuildMappers(ProviderTypeSAML, map[string]string{}, "dma", "urn:mrn:mcl:org:dma")
	assert.Equal(t, "urn:mrn:mcl:user:${ALIAS}:${NAMEID}", saml[1].Config["template"])
	assert.Equal(t, "saml-username-idp-mapper", saml[1].MapperType)

	custom := BuildMappers(ProviderTypeOIDC, map[string]string{AttrUsername: "upn"}, "dma", "urn:mrn:mcl:org:dma")
	assert.Equal(t, "urn:mrn:mcl:user:${ALIAS}:${CLAIM.upn}", custom[1].Config["template"])
}

func TestBuildMappers_ExplicitValueWinsOverDefault(t *testing.T) {
	attrs := map[string]string{
		AttrProviderType: ProviderTypeSAML,
		AttrEmail:        "urn:custom:email",
	}

	mappers := BuildMappers(ProviderTypeSAML, attrs, "dma", "urn:mrn:mcl:org:dma")

	var email *Mapper
	for i := range mappers {
		if mappers[i].Name == "email mapper" {
			email = &mappers[i]
		}
	}
	require.NotNil(t, email)
	assert.Equal(t, "urn:custom:email", email.Config["attribute.name"])
}

func TestBuildMappers_Deterministic(t *testing.T) {
	attrs := map[string]string{
		AttrProviderType: ProviderTypeSAML,
		AttrFirstName:    "fn",
		AttrPermissions:  "perm",
	}

	first := BuildMappers(ProviderTypeSAML, attrs, "dma", "urn:mrn:mcl:org:dma")
	second := BuildMappers(ProviderTypeSAML, attrs, "dma", "urn:mrn:mcl:org:dma")
	assert.Equal(t, first, second)
}

func TestAttributesEqual(t *testing.T) {
	a := []Attribute{{Name: "providerType", Value: "oidc"}, {Name: "clientId", Value: "x"}}
	b := []Attribute{{Name: "clientId", Value: "x"}, {Name: "providerType", Value: "oidc"}}
	c := []Attribute{{Name: "providerType", Value: "saml"}, {Name: "clientId", Value: "x"}}

	assert.True(t, AttributesEqual(a, b), "equality is order-independent")
	assert.False(t, AttributesEqual(a, c))
	assert.False(t, AttributesEqual(a, a[:1]))
	assert.True(t, AttributesEqual(nil, nil))
}
