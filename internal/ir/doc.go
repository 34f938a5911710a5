// Package ir provides the foundational value types for restsql.
//
// This package contains the cell value model, canonical JSON and the error
// taxonomy. All other internal packages import ir; ir imports nothing
// internal. This keeps ir the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - Null is a first-class Value variant (Null{}) serialised as JSON null
//   - Int and Float compare numerically (Equal, Compare, Key)
//   - Every error surfaced to a caller is a *QueryError carrying an ErrorCode
//   - Fingerprints use canonical JSON with domain-separated SHA-256
package ir
