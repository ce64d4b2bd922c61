// Package app is the application shell: it owns the local store, the scene
// collection, the timeline engine, the gameplay snapshot, the session
// registry and the backup service, and routes every user action through
// them so persistence and autosave are never skipped.
//
// An App serves one user action at a time and is not safe for concurrent
// use. Background autosave pushes are the only concurrency, and they are
// confined to backup.Autosaver.
package app
