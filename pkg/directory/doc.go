// Package directory mirrors locally managed users into the users realm of
// the federation service. Unlike the broker realm, these users authenticate
// directly against the federation service rather than through an external
// identity provider.
package directory
