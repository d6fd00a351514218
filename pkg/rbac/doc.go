// Package rbac defines the platform's closed role enumeration and the
// static role-to-capability table.
//
// The table is the only sanctioned way to grant a capability: authorization
// code asks HasCapability and never hardcodes role names at call sites.
// Lookups are pure, constant-time, and fail closed on unknown roles or
// capability names.
package rbac
