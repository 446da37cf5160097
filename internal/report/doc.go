// SPDX-License-Identifier: MPL-2.0

// Package report renders what envrun learned and did: the materialized
// configuration, the environment listing, the end-of-run summary and the JSON
// result file. The core packages return data; only this package formats it.
package report
