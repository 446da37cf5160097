// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package execute

import "syscall"

const interruptSignal = syscall.SIGINT
