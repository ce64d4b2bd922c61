// Package gameplay models the character roster of a play session and is the
// only gate between untrusted data (stored records, imported files, remote
// backups) and in-memory character state.
//
// Sanitize is total: any JSON-shaped input yields a fully valid
// CharacterSheet, with invalid fields replaced by the fallback sheet's
// values. Snapshot.Apply is the one operation that refuses input, and only
// when the candidate has no character list at all.
package gameplay
