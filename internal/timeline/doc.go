// Package timeline implements the fill-in-the-blank timeline puzzle.
//
// A scene's timeline is an ordered list of anchors (fixed text) and blanks
// (slots whose canonical answer is the event text). The player assigns
// options from a shuffled pool to blanks; the pool holds every canonical
// answer plus the scene's distractors.
//
// State per scene:
//   - OptionPool: shuffled once per Prepare
//   - Selections: blank index -> chosen option, never empty strings
//   - Conflicts: derived from Selections, never stored
//   - Results: blank index -> correct|incorrect, only after Evaluate and
//     cleared by any selection change
//   - Attempts: number of Evaluate calls
//
// No operation panics or returns an error. Indices that do not denote a
// blank, texts outside the pool and malformed persisted records are ignored.
// Every change is persisted through the quota-aware store; a failed save is
// logged and play continues in memory.
package timeline
