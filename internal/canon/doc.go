// Package canon provides the canonical value model and content hashing used
// for idempotency and decision-trace integrity.
//
// Every hash the engine persists (input_hash, output_hash, evidence digests,
// document content hashes) is computed here from RFC 8785 canonical JSON
// with SHA-256 and a versioned domain prefix. canon imports nothing internal.
//
// Key constraints:
//   - NO float types anywhere; scores and percentages are integers
//   - null object members are dropped before hashing (absent == null)
//   - object keys ordered by UTF-16 code units, strings NFC-normalized
package canon
