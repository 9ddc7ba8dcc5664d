package regalloc

import (
	"fmt"

	"github.com/pkg/errors"
)

// OutOfRegistersError is returned when a virtual register can't be given a register at all, e.g. when its class has
// no allocatable register, or when an unspillable live range can't be placed. This is a diagnostic for the
// compilation, not a bug of the allocator.
type OutOfRegistersError struct {
	V         VReg
	ClassName string
}

// Error implements error.
func (e *OutOfRegistersError) Error() string {
	return fmt.Sprintf("out of registers: no %s register available for %s", e.ClassName, e.V)
}

// InternalError is returned when the allocation can't terminate, which means that a Policy doesn't make progress.
type InternalError struct {
	V   VReg
	Msg string
}

// Error implements error.
func (e *InternalError) Error() string {
	return fmt.Sprintf("internal compiler error: %s: %s", e.V, e.Msg)
}

// IsOutOfRegisters returns true if err, or the error it wraps, is an OutOfRegistersError.
func IsOutOfRegisters(err error) bool {
	_, ok := errors.Cause(err).(*OutOfRegistersError)
	return ok
}

// IsInternalError returns true if err, or the error it wraps, is an InternalError.
func IsInternalError(err error) bool {
	_, ok := errors.Cause(err).(*InternalError)
	return ok
}
