// Package certificates manages certificate records and their lifecycle
// state for every kind of certificate owner in the registry.
//
// A certificate is created ACTIVE at issuance and transitions once,
// irreversibly, to revoked. Expiry is a derived read-time classification
// (the validity window has lapsed and the certificate is not revoked),
// never a stored transition. Deleting an owner cascades: all of its
// certificates are revoked with reason "cessationofoperation" and detached
// so the record survives for audit without resolving to a live owner.
//
// Cryptographic material is out of scope; signing and key handling happen
// in an external CA. This package owns the records.
package certificates
