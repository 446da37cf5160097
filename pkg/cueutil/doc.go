// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the CUE helpers shared by the user settings loader and
// the envrun.cue project source.
//
// Decoding against a schema follows three steps: compile the embedded schema,
// compile the user document and unify it with the schema's root definition,
// then validate and decode into a Go struct.
//
//	//go:embed config_schema.cue
//	var schema []byte
//
//	res, err := cueutil.Decode[Settings](schema, data, "#Settings",
//	    cueutil.WithFilename("config.cue"))
package cueutil
