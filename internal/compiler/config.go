// Package compiler implements the per-method orchestrator that chooses
// between VM translation and state-machine codegen, special-cases
// constructors/class-initializers, and emits the final native source for
// one method.
package compiler

// Config is the compiler-wide, immutable set of toggles every method
// compiles against. Values are never mutated in place; each With*
// method returns a modified copy of the receiver.
type Config struct {
	VirtualizationEnabled    bool
	FlattenEnabled           bool
	StringObfuscationEnabled bool
	PermissiveVMEligibility  bool
	MasterSeed               uint64
}

// NewConfig returns the default configuration: virtualization and
// flattening on, string obfuscation on, permissive VM eligibility off
//.
func NewConfig() Config {
	return Config{
		VirtualizationEnabled:    true,
		FlattenEnabled:           true,
		StringObfuscationEnabled: true,
		PermissiveVMEligibility:  false,
		MasterSeed:               0,
	}
}

func (c Config) WithVirtualization(enabled bool) Config {
	c.VirtualizationEnabled = enabled
	return c
}

func (c Config) WithFlattening(enabled bool) Config {
	c.FlattenEnabled = enabled
	return c
}

func (c Config) WithStringObfuscation(enabled bool) Config {
	c.StringObfuscationEnabled = enabled
	return c
}

func (c Config) WithPermissiveVMEligibility(enabled bool) Config {
	c.PermissiveVMEligibility = enabled
	return c
}

func (c Config) WithMasterSeed(seed uint64) Config {
	c.MasterSeed = seed
	return c
}
