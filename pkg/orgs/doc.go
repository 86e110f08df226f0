// Package orgs manages the organization lifecycle: application, approval,
// update and deletion. Approval is a one-way transition; updates and
// deletions drive identity provider reconciliation and cascading
// certificate revocation through their collaborators.
package orgs
