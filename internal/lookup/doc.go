// Package lookup owns the map interfaces the socketmap service
// dispatches into.
//
// Ownership boundary:
// - map metadata shape
// - the lookup execution interface
// - local map registry primitives
// - the TTL cache wrapper shared by all backends
package lookup
