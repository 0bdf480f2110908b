// Package sanitizer normalizes user input before validation and storage.
//
// All functions are idempotent: applying them twice gives the same result as
// applying them once. Invalid input yields an empty value rather than an error
// so that the validator can report the missing field.
//
// Normalization includes:
//   - Phone numbers: E.164 format, Bangladesh first, then US
//   - Emails: trimmed and lowercased
//   - Text: whitespace collapsed per line, capped to a rune length
//   - Cities: title-cased words, "  dhaka   north " becomes "Dhaka North"
//   - Amenities: lowercased labels with single spaces
//   - Slices: duplicates and empty values removed after normalization
//   - URLs: https enforced, host lowercased, tracking params dropped
package sanitizer
