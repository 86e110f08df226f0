// Package entities manages the non-organization identity holders: users,
// devices, vessels and service instances. Service instances may register an
// OpenID Connect client in the broker realm; users are mirrored into the
// shared users realm. Deleting an entity cascade revokes its certificates
// before the record goes away.
package entities
