// SPDX-License-Identifier: MPL-2.0

// Package session prepares and runs one envrun invocation.
//
// New turns command-line options into a dependency graph: it loads the
// project configuration, declares the core keys, finishes plugin
// registration, registers environment kinds, selects environments and builds
// the graph. Every fatal configuration problem surfaces from New, before any
// environment is touched. Run then hands the graph to the scheduler.
package session
