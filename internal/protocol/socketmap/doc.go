// Package socketmap owns the socketmap request/reply exchange carried
// over netstrings.
//
// Ownership boundary:
// - request and reply payload shapes
// - reply status vocabulary
// - client dial/retry/lookup behavior
//
// One request is the payload "name SP key"; one reply is "STATUS SP text".
// Both directions travel as single netstrings framed by this package's
// writers and decoded with internal/protocol/netstring.
//
// Canonical reference: https://www.postfix.org/socketmap_table.5.html
package socketmap
