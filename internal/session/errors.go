// SPDX-License-Identifier: MPL-2.0

package session

import "errors"

// ErrUnknownEnvironment is returned when a selected environment is not defined.
var ErrUnknownEnvironment = errors.New("unknown environment")
