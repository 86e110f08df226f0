// Package federation reconciles organization-supplied identity provider
// attributes against an external Keycloak-style federation service.
//
// The reconciler drives provider records, their attribute mapper sets and
// the federated user directory. Mapper sets are always replaced wholesale
// rather than patched, so a failed partial apply is repaired by simply
// re-running the reconciliation.
package federation
