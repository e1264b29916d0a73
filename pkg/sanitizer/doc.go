// Package sanitizer provides input normalization for data arriving from
// partner systems and access terminals.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// typically by returning empty strings rather than errors.
//
// Normalization includes:
//   - QR tokens: Trim surrounding whitespace, uppercase (terminals append
//     CR/LF to scanned strings)
//   - Medical card numbers: Trim, uppercase, drop inner whitespace
//   - MAC addresses: Lowercase hex without separators - "A4:14:37:BE:01:9F"
//     becomes "a41437be019f"
//   - Names: Collapse whitespace, trim leading/trailing spaces
//   - Phone numbers: Convert to E.164 format (+[country][number])
package sanitizer
