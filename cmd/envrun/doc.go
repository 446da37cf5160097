// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the envrun command line.
//
// NewRootCommand builds the cobra tree from an App; Execute runs it through
// fang, which styles help and errors and cancels the command context on
// interrupt. Command handlers never call os.Exit: they return an ExitError
// carrying the code Main hands back to the process.
package cmd
