// Package process signals agent processes and their process groups.
//
// Every helper treats "no such process" as success: the caller wanted the
// process gone and it is.
package process

import "errors"

// ErrInvalidPID is returned for pid 0, which would otherwise signal the
// caller's own process group.
var ErrInvalidPID = errors.New("process: invalid pid 0")
