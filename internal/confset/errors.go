// SPDX-License-Identifier: MPL-2.0

package confset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateDeclaration is the sentinel error wrapped by DuplicateDeclarationError.
	ErrDuplicateDeclaration = errors.New("duplicate declaration")
	// ErrMissingValue is the sentinel error wrapped by MissingValueError.
	ErrMissingValue = errors.New("missing value")
	// ErrTypeCoercion is the sentinel error wrapped by TypeCoercionError.
	ErrTypeCoercion = errors.New("type coercion failed")
	// ErrUnresolvedSubstitution is the sentinel error wrapped by UnresolvedSubstitutionError.
	ErrUnresolvedSubstitution = errors.New("unresolved substitution")
	// ErrInvalidOverride is returned when an override cannot be parsed.
	ErrInvalidOverride = errors.New("invalid override")
)

type (
	// DuplicateDeclarationError is returned when a key is redeclared with an incompatible type.
	DuplicateDeclarationError struct {
		Section   string
		Key       string
		Existing  ValueType
		Requested ValueType
	}

	// MissingValueError is returned when a key has no override, raw value, or default.
	MissingValueError struct {
		Section string
		Key     string
	}

	// TypeCoercionError carries the raw value and target type of a failed conversion.
	TypeCoercionError struct {
		Section string
		Key     string
		Raw     string
		Target  ValueType
		Err     error
	}

	// UnresolvedSubstitutionError names the key whose substitution could not complete,
	// either because the reference is unknown or because it forms a cycle.
	UnresolvedSubstitutionError struct {
		Section   string
		Key       string
		Reference string
		// Chain lists section:key pairs in resolution order when a cycle was found.
		Chain []string
	}
)

// Error implements the error interface.
func (e *DuplicateDeclarationError) Error() string {
	return fmt.Sprintf("[%s] %s: already declared as %s, cannot redeclare as %s",
		e.Section, e.Key, e.Existing, e.Requested)
}

// Unwrap returns ErrDuplicateDeclaration for errors.Is.
func (e *DuplicateDeclarationError) Unwrap() error { return ErrDuplicateDeclaration }

// Error implements the error interface.
func (e *MissingValueError) Error() string {
	return fmt.Sprintf("[%s] %s: no value configured and no default", e.Section, e.Key)
}

// Unwrap returns ErrMissingValue for errors.Is.
func (e *MissingValueError) Unwrap() error { return ErrMissingValue }

// Error implements the error interface.
func (e *TypeCoercionError) Error() string {
	msg := fmt.Sprintf("[%s] %s: cannot convert %q to %s", e.Section, e.Key, e.Raw, e.Target)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrTypeCoercion for errors.Is.
func (e *TypeCoercionError) Unwrap() error { return ErrTypeCoercion }

// Error implements the error interface.
func (e *UnresolvedSubstitutionError) Error() string {
	if len(e.Chain) > 0 {
		return fmt.Sprintf("[%s] %s: substitution cycle: %s", e.Section, e.Key, strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("[%s] %s: cannot resolve {%s}", e.Section, e.Key, e.Reference)
}

// Unwrap returns ErrUnresolvedSubstitution for errors.Is.
func (e *UnresolvedSubstitutionError) Unwrap() error { return ErrUnresolvedSubstitution }
