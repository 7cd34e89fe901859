// Package server owns the nsmapd runtime: the socketmap listener, per
// connection request handling, dispatch into the lookup registry, and
// the optional HTTP admin plane.
//
// Ownership boundary: wire decoding stays in internal/protocol/netstring
// and message semantics in internal/protocol/socketmap; map backends stay
// under internal/lookup. This package only connects them to sockets and
// process lifecycle.
package server
