// Package mrn creates, validates and extracts information from Maritime
// Resource Names (MRNs), the URN-based addressing scheme used for every
// entity in the registry: organizations, users, devices, vessels and
// service instances.
//
// All functions are pure string operations with no I/O. The rest of the
// registry treats MRNs as opaque validated strings and never re-implements
// parsing.
package mrn
