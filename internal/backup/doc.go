// Package backup mirrors local gameplay and session records to a remote
// store and reconciles them on load.
//
// Each (role, session key) pair owns two slots, autosave and manual. Local
// state is always the source of truth: a failed push never rolls back the
// mutation that caused it, and loading never merges. When both slots exist
// and differ, ReconcileLoad returns a Decision listing the differing paths
// and the caller must choose a slot.
package backup
