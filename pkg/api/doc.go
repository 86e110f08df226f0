// Package api exposes the identity registry over HTTP: organization
// lifecycle, entity management and certificate issuance/revocation.
// Requests are authenticated with bearer tokens issued by the broker
// realm, except for the open organization application endpoint.
package api
