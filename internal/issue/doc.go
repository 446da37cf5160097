// SPDX-License-Identifier: MPL-2.0

// Package issue carries user-facing error context.
//
// ActionableError wraps a failure with the operation that was attempted, the
// resource involved and suggestions for fixing it. The issue catalog holds
// longer Markdown help pages for the failures users hit most, rendered in the
// terminal with glamour.
package issue
