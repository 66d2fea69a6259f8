// Package log provides secure logging utilities for comicscan.
//
// The SecureHandler wraps any slog.Handler and masks API credentials in log
// attributes, so verbose debug output (which includes request headers and
// configuration dumps) can never leak the analysis service key.
package log
