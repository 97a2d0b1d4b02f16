// Package ir provides the foundational value types shared by every other
// tabstore package.
//
// This package contains ids, scalars and plain snapshot types only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key constraints:
//   - Every id is a string. Keys of any other type are coerced with ToID
//     before storage, comparison or listener matching.
//   - A Scalar is exactly one of String, Number or Bool. Number is a finite
//     float64; NaN and the infinities are not scalars.
//   - Snapshot maps (Tables, Table, Row, Values) are copies. Insertion order
//     lives in the store; use its id getters when order matters.
package ir
