// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"runtime"
	"strconv"
	"sync"
)

// EnvContainerParallel caps concurrent container tests when set to a positive integer.
const EnvContainerParallel = "ENVRUN_TEST_CONTAINER_PARALLEL"

// ContainerSemaphore returns the process-wide slot channel of container tests.
// Send to acquire, receive to release:
//
//	sem := testutil.ContainerSemaphore()
//	sem <- struct{}{}
//	defer func() { <-sem }()
var ContainerSemaphore = sync.OnceValue(func() chan struct{} {
	return make(chan struct{}, containerParallelism())
})

func containerParallelism() int {
	if n, err := strconv.Atoi(os.Getenv(EnvContainerParallel)); err == nil && n > 0 {
		return n
	}
	return min(runtime.GOMAXPROCS(0), 2)
}
