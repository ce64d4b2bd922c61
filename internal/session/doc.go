// Package session implements the teacher's session registry: a keyed
// collection of classroom play sessions, each with its own gameplay
// snapshot, per-scene progress and two card logs.
//
// Invariants:
//   - at most one scene per session has status started
//   - every mutation sets the session's UpdatedAt and persists the whole
//     registry, since the store has no partial-update primitive
//   - deleting the active session clears the active pointer
package session
