// Package sanitizer normalizes user input before validation and storage.
//
// All normalization functions are idempotent: applying them twice gives the
// same result as applying them once. None of them reports errors; rejection
// is left to the validators.
//
// Normalization includes:
//   - Names, titles and locations: trim and collapse inner whitespace
//   - Emails: trim and lowercase
//   - Free text (descriptions, booking messages): trim and drop control characters
//   - Image references: trim only; order, duplicates and bad entries are kept
//     so validation can name them by index
package sanitizer
