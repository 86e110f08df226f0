package federation

// Default claim per well-known attribute key. A nil-equivalent (absent)
// entry means the mapper is skipped unless the organization supplies an
// explicit value. These tables are constructed once and never written to.
var (
	oidcDefaultClaims = map[string]string{
		AttrPermissions: "permissions",
	}

	samlDefaultClaims = map[string]string{
		AttrFirstName:   "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/givenname",
		AttrLastName:    "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/surname",
		AttrEmail:       "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress",
		AttrPermissions: "http://schemas.microsoft.com/ws/2008/06/identity/claims/role",
	}

	// localAttrNames maps attribute keys to the user attribute each mapper
	// writes in the local realm
	localAttrNames = map[string]string{
		AttrFirstName:   "firstName",
		AttrLastName:    "lastName",
		AttrEmail:       "email",
		AttrPermissions: "permissions",
	}

	// semanticAttrOrder fixes the emission order so repeated builds produce
	// identical mapper sequences
	semanticAttrOrder = []string{AttrFirstName, AttrLastName, AttrEmail, AttrPermissions}
)

// BuildMappers derives the full mapper set for an identity provider from
// the organization's attribute map. The set always contains a hardcoded
// organization mapper and a username template mapper; the four semantic
// attribute mappers (first name, last name, email, permissions) are emitted
// only when a claim is resolvable, explicit values winning over
// provider-type defaults.
func BuildMappers(providerType string, attrMap map[string]string, alias, orgMrn string) []Mapper {
	mappers := make([]Mapper, 0, 6)

	mappers = append(mappers, Mapper{
		Name:                  "org mapper",
		IdentityProviderAlias: alias,
		MapperType:            "hardcoded-attribute-idp-mapper",
		Config: map[string]string{
			"attribute.value": orgMrn,
			"attribute":       "org",
		},
	})

	mappers = append(mappers, buildUsernameMapper(providerType, attrMap, alias))

	defaults := samlDefaultClaims
	claimKey := "attribute.name"
	if providerType == ProviderTypeOIDC {
		defaults = oidcDefaultClaims
		claimKey = "claim"
	}
	mapperType := providerType + "-user-attribute-idp-mapper"

	for _, key := range semanticAttrOrder {
		claim, ok := attrMap[key]
		if !ok || claim == "" {
			claim, ok = defaults[key]
			if !ok {
				continue
			}
		}
		localName := localAttrNames[key]
		mappers = append(mappers, Mapper{
			Name:                  localName + " mapper",
			IdentityProviderAlias: alias,
			MapperType:            mapperType,
			Config: map[string]string{
				claimKey:         claim,
				"user.attribute": localName,
			},
		})
	}

	return mappers
}

// buildUsernameMapper emits the template mapper that rewrites the external
// username into a user MRN of the form urn:mrn:mcl:user:<alias>:<claim>
func buildUsernameMapper(providerType string, attrMap map[string]string, alias string) Mapper {
	mapper := Mapper{
		Name:                  "username mapper",
		IdentityProviderAlias: alias,
	}
	if providerType == ProviderTypeOIDC {
		claim := attrMap[AttrUsername]
		if claim == "" {
			claim = "preferred_username"
		}
		mapper.MapperType = "oidc-username-idp-mapper"
		mapper.Config = map[string]string{
			"template": "urn:mrn:mcl:user:${ALIAS}:${CLAIM." + claim + "}",
		}
		return mapper
	}
	claim := attrMap[AttrUsername]
	if claim == "" {
		claim = "NAMEID"
	}
	mapper.MapperType = "saml-username-idp-mapper"
	mapper.Config = map[string]string{
		"template": "urn:mrn:mcl:user:${ALIAS}:${" + claim + "}",
	}
	return mapper
}
