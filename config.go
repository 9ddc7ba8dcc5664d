package regalloc

import (
	"github.com/xyproto/env/v2"
)

// Config controls the Allocator behavior, with the default implementation as NewConfig.
type Config struct {
	verify    bool
	maxRounds int
}

// defaultConfig helps avoid copy/pasting the wrong defaults.
var defaultConfig = &Config{}

// clone ensures all fields are copied.
func (c *Config) clone() *Config {
	ret := *c
	return &ret
}

// NewConfig returns a Config with verification disabled and no bound on the SelectOrSplit rounds other than the
// one implied by regallocapi.RegAllocValidationEnabled.
func NewConfig() *Config {
	return defaultConfig.clone()
}

// NewConfigFromEnv returns NewConfig overridden by the environment:
//
//   - REGALLOC_VERIFY: when true, Allocator.Allocate verifies the interval unions at the end of the pass.
//   - REGALLOC_MAX_ROUNDS: see Config.WithMaxRounds.
func NewConfigFromEnv() *Config {
	// env caches the environment on first use.
	env.Load()
	ret := NewConfig()
	ret.verify = env.Bool("REGALLOC_VERIFY")
	ret.maxRounds = env.Int("REGALLOC_MAX_ROUNDS", ret.maxRounds)
	return ret
}

// WithVerify makes Allocator.Allocate call Allocator.Verify once the worklist is empty, and fail the pass on a
// mismatch. This rebuilds every interval union, so it's meant for tests and debugging.
func (c *Config) WithVerify(enabled bool) *Config {
	ret := c.clone()
	ret.verify = enabled
	return ret
}

// WithMaxRounds bounds the number of times Policy.SelectOrSplit can be called for one virtual register, counting
// the pieces it was split into. Exceeding it fails the pass with an InternalError, since it means that the policy
// doesn't make progress. Zero means no bound, or regallocapi.DefaultMaxRounds when validation is enabled.
func (c *Config) WithMaxRounds(n int) *Config {
	if n < 0 {
		n = 0
	}
	ret := c.clone()
	ret.maxRounds = n
	return ret
}

// Verify returns true if the interval unions are verified at the end of each pass.
func (c *Config) Verify() bool {
	return c.verify
}

// MaxRounds returns the value set by WithMaxRounds.
func (c *Config) MaxRounds() int {
	return c.maxRounds
}
