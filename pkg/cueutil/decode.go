// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Result is a decoded document together with the unified CUE value it came from.
type Result[T any] struct {
	Value   *T
	Unified cue.Value
}

// Decode unifies data with the definition at defPath in schema, validates the
// result and decodes it into T. Validation errors carry the field path.
func Decode[T any](schema, data []byte, defPath string, opts ...Option) (*Result[T], error) {
	o := newOptions(opts)
	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	schemaVal := ctx.CompileBytes(schema)
	if err := schemaVal.Err(); err != nil {
		return nil, fmt.Errorf("internal error: compile schema: %w", err)
	}
	def := schemaVal.LookupPath(cue.ParsePath(defPath))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("internal error: schema has no %s: %w", defPath, err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(o.filename))
	if err := doc.Err(); err != nil {
		return nil, FormatError(err, o.filename)
	}

	unified := def.Unify(doc)
	var validateOpts []cue.Option
	if o.concrete {
		validateOpts = append(validateOpts, cue.Concrete(true))
	}
	if err := unified.Validate(validateOpts...); err != nil {
		return nil, FormatError(err, o.filename)
	}

	var out T
	if err := unified.Decode(&out); err != nil {
		return nil, FormatError(err, o.filename)
	}
	return &Result[T]{Value: &out, Unified: unified}, nil
}

// Compile compiles a standalone document without a schema and checks that it
// is concrete. Used for envrun.cue, whose sections are free-form.
func Compile(data []byte, opts ...Option) (cue.Value, error) {
	o := newOptions(opts)
	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return cue.Value{}, err
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(o.filename))
	if err := v.Err(); err != nil {
		return cue.Value{}, FormatError(err, o.filename)
	}
	if o.concrete {
		if err := v.Validate(cue.Concrete(true)); err != nil {
			return cue.Value{}, FormatError(err, o.filename)
		}
	}
	return v, nil
}

// CheckFileSize fails when data is larger than maxSize.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", filename, len(data), maxSize)
	}
	return nil
}
