// Package contract checks the invariants the allocator and its policies rely on. A failed check is a bug in the
// allocator or in a policy, never a user error, so it logs and panics instead of returning an error.
package contract

import (
	"fmt"

	"github.com/golang/glog"
)

const (
	failMsg    = "BUG"
	requireMsg = "BUG: a precondition has failed for %v"
)

// failfast logs and panics in a way that is friendly to debugging: glog keeps the message even when the panic is
// recovered by a caller further up.
func failfast(msg string) {
	glog.ErrorDepth(2, msg)
	panic(msg)
}

// Failf unconditionally abandons the current pass, formatting and logging the given message.
func Failf(msg string, args ...interface{}) {
	failfast(fmt.Sprintf("%v: %v", failMsg, fmt.Sprintf(msg, args...)))
}

// Assertf checks an internal invariant, and Failfs if it is false.
func Assertf(cond bool, msg string, args ...interface{}) {
	if !cond {
		failfast(fmt.Sprintf("%v: %v", failMsg, fmt.Sprintf(msg, args...)))
	}
}

// Requiref checks a precondition pertaining to a function parameter, and Failfs if it is false.
func Requiref(cond bool, param string, msg string, args ...interface{}) {
	if !cond {
		failfast(fmt.Sprintf("%v: %v", fmt.Sprintf(requireMsg, param), fmt.Sprintf(msg, args...)))
	}
}
