// Package ir provides the canonical value, record, link and operation
// types for cascade.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Record field values are IRValue; a missing key is "undefined"
//   - Value equality is canonical-JSON equality (RFC 8785, NFC strings)
//   - All JSON tags use snake_case
//   - Logical sequence numbers only, never wall-clock timestamps
package ir
