// SPDX-License-Identifier: MPL-2.0

// Package testutil holds test helpers shared across packages: a fake clock
// for the scheduler and a semaphore bounding container integration tests.
package testutil
