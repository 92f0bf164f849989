// Package session defines the authoritative session document and its
// persistence contract.
//
// A session's step history is append-only: revisions supersede prior
// records through a back-reference instead of mutating them, and
// commitments in path memory are never removed. Stores are
// transactional at the document level; the file backend writes through
// a temp file and atomic rename so a save either fully lands or not at
// all.
package session
