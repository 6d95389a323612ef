// Package correlate reconstructs download sessions from a stream of
// independently observed transactions.
//
// A session is opened by a successful dispatch response and advances through
// the playlist, the selected variant, and the decryption keys that variant
// needs:
//
//	awaiting_dispatch -> awaiting_playlist -> awaiting_variant -> awaiting_keys -> complete
//
// The Engine classifies each transaction against the fixed dispatch and key
// endpoints and against the Registry's URL indexes, then advances exactly one
// session (or, for keys, every session waiting on that key). Keys may arrive
// before the session that needs them; the KeyPool holds them until claimed.
// Once a variant is selected the session's other alternatives are removed
// from the indexes so they cannot route anything further.
//
// Engines are single-threaded and own all of their state. Finalize runs the
// Dedupe pass and reports stalled sessions and keys nobody claimed.
package correlate
