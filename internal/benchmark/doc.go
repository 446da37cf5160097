// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks of the hot paths of a run, usable as a
// PGO profile source:
//   - TOML and CUE project parsing
//   - session preparation (configuration, kind resolution, graph)
//   - native and virtual command execution
//   - an end-to-end sequential and parallel run
//
// To collect a profile:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
