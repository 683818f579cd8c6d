package compiler

// CompilationListener is an optional observer attached to a Compiler: a
// narrow consumer-supplied interface, never a concrete logging call baked
// into the core itself.
type CompilationListener interface {
	// MethodCompiled is called once per non-skipped method after its
	// native source has been produced, naming the path taken.
	MethodCompiled(owner, name, desc string, path MethodPath)

	// MethodSkipped is called for constructors, abstract/native methods,
	// and enum/switch-map classes the orchestrator never compiles.
	MethodSkipped(owner, name, desc string, reason string)

	// CatchesMaterialized is called once per method with at least one
	// try/catch region, reporting how many extra dispatch states the
	// resolver minted for it.
	CatchesMaterialized(owner, name, desc string, count int)
}

// MethodPath names which of 's two compilation strategies produced a
// method's native source.
type MethodPath uint8

const (
	PathStateMachine MethodPath = iota
	PathVM
	PathClinitRewrite
)

func (p MethodPath) String() string {
	switch p {
	case PathVM:
		return "vm"
	case PathClinitRewrite:
		return "clinit-rewrite"
	default:
		return "state-machine"
	}
}

// noopListener discards every event; used when a Compiler is built
// without an explicit listener so call sites never need a nil check.
type noopListener struct{}

func (noopListener) MethodCompiled(string, string, string, MethodPath) {}
func (noopListener) MethodSkipped(string, string, string, string)      {}
func (noopListener) CatchesMaterialized(string, string, string, int)   {}
