// SPDX-License-Identifier: MPL-2.0

// Package confset implements the layered, lazily resolved configuration of a run.
//
// A Config owns one Store per section: the core section ("envrun") and one per
// environment. Keys are declared with a type and a default; Get resolves a key
// the first time it is read and memoizes the result for the rest of the run.
//
// Precedence, highest first:
//
//  1. an invocation-time Override (qualified by section or applying to all)
//  2. the raw value in the store's own section
//  3. the shared environment defaults section ("env"), for environment stores
//  4. the core section, when the declaration sets AllowCoreFallback
//  5. the declared Default or DefaultFunc
//
// Raw values are filtered by factor conditions, have their substitution markers
// expanded, and are then coerced to the declared type. Substitution cycles are
// reported as UnresolvedSubstitutionError instead of recursing.
package confset
