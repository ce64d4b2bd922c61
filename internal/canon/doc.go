// Package canon provides canonical JSON for fablekeep records.
//
// Canonical bytes are used wherever two JSON documents must be compared
// structurally: backup slot reconciliation, content fingerprints and golden
// test fixtures.
//
// Canonical form:
//   - Object keys sorted by UTF-16 code units (RFC 8785), so key order in the
//     source document never matters
//   - Strings and keys NFC normalized
//   - No HTML escaping; U+2028 and U+2029 emitted literally
//   - Numbers in shortest form; integral values never carry a fraction, so
//     1, 1.0 and 1e0 are the same number
//   - null is allowed (an unset die is null)
package canon
