// Package regallocapi holds the pieces shared by the register allocator and its collaborators which must not be
// part of the public API.
package regallocapi

// These consts are used various places in the allocator. Instead of defining them in each file, we define them
// here so that we can quickly iterate on debugging without spending "where do we have debug logging?" time.

// ----- Debug logging -----
// These consts must be disabled by default. Enable them only when debugging.

const (
	// RegAllocLoggingEnabled dumps the interval unions and decisions to stdout.
	RegAllocLoggingEnabled = false
	// LivenessLoggingEnabled dumps the per-block liveness sets to stdout.
	LivenessLoggingEnabled = false
)

// ----- Validations -----
// These consts must be enabled by default until we reach the point where we can disable them (e.g. multiple days of fuzzing passes).

const (
	// RegAllocValidationEnabled enables the cheap invariant checks on every mutation of the interval unions.
	RegAllocValidationEnabled = true
	// DefaultMaxRounds is the number of SelectOrSplit rounds one split family may take before the allocator gives up
	// when validation is enabled and the Config doesn't set a limit.
	DefaultMaxRounds = 1 << 12
)
