// Package netstring owns decoding of single netstring records.
//
// Ownership boundary:
// - length scan and overflow policy
// - payload transfer into caller-owned buffers
// - the decode error taxonomy
//
// A netstring frames a payload as <decimal-length>:<payload>, with no
// escaping. Decode handles exactly one record per call and never reads
// past its trailing comma; looping, stream buffering, and length policy
// belong to the caller.
//
// Canonical reference: https://cr.yp.to/proto/netstrings.txt
package netstring
