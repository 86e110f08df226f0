package mrn

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// Prefix is the URN namespace every MRN starts with
	Prefix = "urn:mrn"

	// DefaultValidator is the identifier of the root validator used when an
	// organization short name carries no nested validator suffix
	DefaultValidator = "mcl"
)

// The MRN character set follows the URN grammar: unreserved URN characters
// plus percent-encoded octets. The per-type patterns tighten the base
// grammar by pinning the entity type markers.
const mrnChars = `(?:[a-z0-9()+,\-.:=@;$_!*']|%[0-9a-f]{2})`

var (
	mrnPattern             = regexp.MustCompile(`(?i)^urn:mrn:` + mrnChars + `+$`)
	userPattern            = regexp.MustCompile(`(?i)^urn:mrn:` + mrnChars + `+?:user:` + mrnChars + `+$`)
	vesselPattern          = regexp.MustCompile(`(?i)^urn:mrn:` + mrnChars + `+?:vessel:` + mrnChars + `+$`)
	devicePattern          = regexp.MustCompile(`(?i)^urn:mrn:` + mrnChars + `+?:device:` + mrnChars + `+$`)
	serviceInstancePattern = regexp.MustCompile(`(?i)^urn:mrn:` + mrnChars + `+?:service:` + mrnChars + `+?:instance:` + mrnChars + `+$`)

	// Reserved and unsafe URN characters replaced during entity id sanitation
	reservedChars = regexp.MustCompile(`[()+,\-.:=@;$_!*'%/?#]`)
)

// OrgShortName returns the short name of an organization, which is the
// final colon-delimited segment of its MRN.
func OrgShortName(orgMrn string) string {
	idx := strings.LastIndex(orgMrn, ":")
	return orgMrn[idx+1:]
}

// OrgValidator returns the short name of the organization responsible for
// validating the organization identified by the given short name. Nested
// validators are delegated with an "@" suffix; without one the root
// validator is returned.
func OrgValidator(orgShortName string) string {
	if strings.Contains(orgShortName, "@") {
		parts := strings.SplitN(orgShortName, "@", 2)
		return parts[1]
	}
	return DefaultValidator
}

// OrgShortNameFromEntityMrn extracts the owning organization's short name
// from an entity MRN, e.g. "dma" from "urn:mrn:mcl:user:dma:jdoe" or from
// "urn:mrn:mcl:org:dma:service:nw-nm:instance:nw-nm2".
func OrgShortNameFromEntityMrn(entityMrn string) (string, error) {
	for _, marker := range []string{":user:", ":device:", ":vessel:"} {
		idx := strings.Index(entityMrn, marker)
		if idx < 0 {
			continue
		}
		start := idx + len(marker)
		end := strings.Index(entityMrn[start:], ":")
		if end < 0 {
			return "", fmt.Errorf("%w: no segment follows the organization short name", ErrMalformedMrn)
		}
		return entityMrn[start : start+end], nil
	}
	// Service instance MRNs embed the full org MRN before the service
	// marker, so the short name is the segment preceding it.
	if idx := strings.Index(entityMrn, ":service:"); idx >= 0 {
		return OrgShortName(entityMrn[:idx]), nil
	}
	return "", fmt.Errorf("%w: not an entity MRN", ErrMalformedMrn)
}

// EntityID returns the entity identifier, which is the final
// colon-delimited segment of an entity MRN.
func EntityID(entityMrn string) string {
	idx := strings.LastIndex(entityMrn, ":")
	return entityMrn[idx+1:]
}

// ServiceType extracts the service design/specification identifier sitting
// between the ":service:" and ":instance:" markers of a service instance
// MRN.
func ServiceType(serviceMrn string) (string, error) {
	sIdx := strings.Index(serviceMrn, ":service:")
	iIdx := strings.Index(serviceMrn, ":instance:")
	if sIdx < 0 || iIdx < 0 {
		return "", fmt.Errorf("%w: the MRN must belong to a service instance", ErrMalformedMrn)
	}
	start := sIdx + len(":service:")
	if iIdx <= start {
		return "", fmt.Errorf("%w: no service type between service and instance markers", ErrMalformedMrn)
	}
	return serviceMrn[start:iIdx], nil
}

// Generate builds the MRN for an entity owned by the given organization.
// Reserved URN characters in the entity id are replaced with "_".
// Service MRNs cannot be generated from a flat id because they require a
// design/specification and instance pair.
func Generate(orgMrn, kind, entityID string) (string, error) {
	if kind == "service" {
		return "", fmt.Errorf("%w: generating MRNs for services is not supported", ErrUnsupportedKind)
	}
	sanitized := reservedChars.ReplaceAllString(entityID, "_")
	return orgMrn + ":" + kind + ":" + sanitized, nil
}

// Validate checks an MRN against the base grammar and, when the MRN carries
// an entity type marker, against that type's stricter grammar.
func Validate(m string) error {
	if strings.TrimSpace(m) == "" {
		return fmt.Errorf("%w: MRN is empty", ErrInvalidMrn)
	}
	if !mrnPattern.MatchString(m) {
		return fmt.Errorf("%w: not in a valid format", ErrInvalidMrn)
	}
	switch {
	case strings.Contains(m, ":service:") && !serviceInstancePattern.MatchString(m):
		return fmt.Errorf("%w: not in a valid format for a service instance", ErrInvalidMrn)
	case strings.Contains(m, ":user:") && !userPattern.MatchString(m):
		return fmt.Errorf("%w: not in a valid format for a user", ErrInvalidMrn)
	case strings.Contains(m, ":vessel:") && !vesselPattern.MatchString(m):
		return fmt.Errorf("%w: not in a valid format for a vessel", ErrInvalidMrn)
	case strings.Contains(m, ":device:") && !devicePattern.MatchString(m):
		return fmt.Errorf("%w: not in a valid format for a device", ErrInvalidMrn)
	}
	return nil
}

// ClientName composes the external client identifier registered for a
// service instance: validator, org short name, service type and instance
// id joined by underscores.
func ClientName(serviceMrn string) (string, error) {
	if !serviceInstancePattern.MatchString(serviceMrn) {
		return "", fmt.Errorf("%w: not a valid service instance MRN", ErrMalformedMrn)
	}
	orgShortName, err := OrgShortNameFromEntityMrn(serviceMrn)
	if err != nil {
		return "", err
	}
	serviceType, err := ServiceType(serviceMrn)
	if err != nil {
		return "", err
	}
	validator := OrgValidator(orgShortName)
	return validator + "_" + orgShortName + "_" + serviceType + "_" + EntityID(serviceMrn), nil
}
