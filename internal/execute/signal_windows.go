// SPDX-License-Identifier: MPL-2.0

//go:build windows

package execute

const interruptSignal = 2
