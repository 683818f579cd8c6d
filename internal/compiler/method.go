package compiler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kryptid/classnative/internal/bytecode"
	"github.com/kryptid/classnative/internal/codegen"
	"github.com/kryptid/classnative/internal/flatten"
	"github.com/kryptid/classnative/internal/labelpool"
	"github.com/kryptid/classnative/internal/microvm"
	"github.com/kryptid/classnative/internal/namepool"
	"github.com/kryptid/classnative/internal/stringpool"
	"github.com/kryptid/classnative/internal/trycatch"
	"github.com/kryptid/classnative/internal/vmtranslate"
)

// ClassInfo carries the class-level facts the per-method algorithm needs but bytecode.Method does not itself record.
type ClassInfo struct {
	Name string

	// IsEnum marks an enum-owning class: its methods are skipped entirely.
	IsEnum bool

	// IsSwitchMap marks the synthetic "$SwitchMap$..." shape: a single
	// static synthetic []int field, methods containing only <clinit>.
	IsSwitchMap bool

	IsInterface bool
}

func (c ClassInfo) specialCased() bool { return c.IsEnum || c.IsSwitchMap }

// Stats accumulates counters across a compilation session, supplementing
// the spec's silence on post-compilation introspection (the design notes).
type Stats struct {
	CompiledViaVM           int
	CompiledViaStateMachine int
	ClinitRewrites          int
	Skipped                 int
	CatchesMaterialized     int
	NativeSourceBytes       int
}

// CompiledMethod is one method's orchestration result.
type CompiledMethod struct {
	Method *bytecode.Method
	Path   MethodPath
	Source string

	// VMResult is populated only when Path == PathVM.
	VMResult *microvm.RefTables
	VMCode   []microvm.Instruction
}

// Compiler is the per-method orchestrator: it owns the archive-session-wide name
// and string pools and drives each method through VM translation or
// state-machine codegen per .
type Compiler struct {
	Names   *namepool.Pool
	Strings *stringpool.Pool
	Config  Config
	Listener CompilationListener
	Stats   Stats

	mu            sync.Mutex
	stringHandles map[uint32]stringpool.Handle
	nextSeed      uint64
}

// New builds a Compiler with fresh, empty pools. The returned name pool's
// token function renders per-kind accessor expressions; string-literal
// tokens additionally route through the string pool to produce a
// decrypt_string(...) call, tying the name pool and string pool together the way the method
// compiler (not either pool in isolation) is responsible for.
func New(cfg Config, listener CompilationListener) *Compiler {
	c := &Compiler{
		Strings:       stringpool.New(),
		Config:        cfg,
		stringHandles: make(map[uint32]stringpool.Handle),
		nextSeed:      cfg.MasterSeed,
	}
	if listener == nil {
		listener = noopListener{}
	}
	c.Listener = listener
	c.Names = namepool.New(c.token)
	if !cfg.StringObfuscationEnabled {
		c.Strings.Reset(false)
	}
	return c
}

func (c *Compiler) token(kind namepool.Kind, id uint32) string {
	switch kind {
	case namepool.KindStringLiteral:
		return c.stringToken(id)
	case namepool.KindClassInternalName:
		return fmt.Sprintf("classes[%d]", id)
	case namepool.KindMethodRef:
		return fmt.Sprintf("methods[%d]", id)
	case namepool.KindFieldRef:
		return fmt.Sprintf("fields[%d]", id)
	default:
		return fmt.Sprintf("names[%d]", id)
	}
}

func (c *Compiler) stringToken(id uint32) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	handle, ok := c.stringHandles[id]
	if !ok {
		texts := c.Names.Texts(namepool.KindStringLiteral)
		handle = c.Strings.Intern(texts[id])
		c.stringHandles[id] = handle
	}
	key, nonce, _ := c.Strings.KeyNonceOf(handle)
	return fmt.Sprintf("decrypt_string(decode_key(%s), decode_nonce(%s), %dUL, %d)", byteArrayLiteral(key[:]), byteArrayLiteral(nonce[:]), handle.Encoded(), handle.Length)
}

func byteArrayLiteral(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "(unsigned char[]){" + strings.Join(parts, ",") + "}"
}

// nextMethodSeed derives one deterministic per-method VM seed from the
// master seed, advancing it with an add-and-xor-shift step,
// seed <- (seed + GOLDEN_RATIO_64) XOR (seed >> 3). The step has the same
// shape as the micro-VM encoder's state update but not the same
// constants: the encoder XORs with its fixed KEY >> 3, not the seed.
func (c *Compiler) nextMethodSeed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeed = (c.nextSeed + 0x9E3779B97F4A7C15) ^ (c.nextSeed >> 3)
	return c.nextSeed
}

// CompileMethod runs the  per-method algorithm for one method of class.
func (c *Compiler) CompileMethod(class ClassInfo, m *bytecode.Method) (*CompiledMethod, error) {
	if m.Name == "<init>" {
		c.skip(class, m, "constructor")
		return &CompiledMethod{Method: m, Path: PathStateMachine, Source: ""}, nil
	}
	if m.Flags.Has(bytecode.FlagAbstract) || m.Flags.Has(bytecode.FlagNative) {
		c.skip(class, m, "abstract-or-native")
		return &CompiledMethod{Method: m, Path: PathStateMachine, Source: ""}, nil
	}

	if class.specialCased() {
		c.skip(class, m, "enum-or-switch-map-class")
		return &CompiledMethod{Method: m, Path: PathStateMachine, Source: ""}, nil
	}

	if m.Name == "<clinit>" {
		return c.compileClinit(class, m)
	}

	cm, err := c.compileBody(class, m)
	if err != nil {
		return nil, err
	}
	m.Clear()
	return cm, nil
}

func (c *Compiler) skip(class ClassInfo, m *bytecode.Method, reason string) {
	c.mu.Lock()
	c.Stats.Skipped++
	c.mu.Unlock()
	c.Listener.MethodSkipped(class.Name, m.Name, m.Desc, reason)
}

func (c *Compiler) compileClinit(class ClassInfo, m *bytecode.Method) (*CompiledMethod, error) {
	const proxyName = "hidden_proxy"
	proxy := *m
	proxy.Name = proxyName

	proxyCompiled, err := c.compileBody(class, &proxy)
	if err != nil {
		return nil, fmt.Errorf("compiler: compiling <clinit> proxy body: %w", err)
	}

	classID := c.Names.Intern(namepool.KindClassInternalName, class.Name)
	var b strings.Builder
	fmt.Fprintf(&b, "registerNativesForClass(%d, Class);\n%s(Class);\nreturn;\n\n", classID, proxyName)
	b.WriteString(proxyCompiled.Source)

	m.Clear()

	c.mu.Lock()
	c.Stats.ClinitRewrites++
	c.Stats.NativeSourceBytes += b.Len()
	c.mu.Unlock()
	c.Listener.MethodCompiled(class.Name, m.Name, m.Desc, PathClinitRewrite)

	return &CompiledMethod{Method: m, Path: PathClinitRewrite, Source: b.String()}, nil
}

func (c *Compiler) compileBody(class ClassInfo, m *bytecode.Method) (*CompiledMethod, error) {
	if c.Config.VirtualizationEnabled {
		interner := vmtranslate.Interner(func(text string) uint32 { return c.Names.Intern(namepool.KindStringLiteral, text) })
		result, ok := vmtranslate.Translate(m, interner, class.IsInterface, c.Config.PermissiveVMEligibility)
		if ok {
			seed := c.nextMethodSeed()
			code := append([]microvm.Instruction(nil), result.Code...)
			microvm.EncodeProgram(code, seed)

			c.mu.Lock()
			c.Stats.CompiledViaVM++
			c.mu.Unlock()
			c.Listener.MethodCompiled(class.Name, m.Name, m.Desc, PathVM)

			return &CompiledMethod{
				Method:   m,
				Path:     PathVM,
				Source:   c.emitVMStub(m, seed, len(code)),
				VMResult: &result.Refs,
				VMCode:   code,
			}, nil
		}
	}

	lp := labelpool.New()

	// The resolver mints every catch-chain state id up front (Assign), before
	// codegen walks the method body, so a protected ATHROW can goto its
	// chain's entry state while codegen is still emitting that very
	// fragment. Rendering the chain's actual test bodies (Render) has to
	// wait until codegen has resolved every handler label to a state id.
	var resolver *trycatch.Resolver
	var entryState map[*bytecode.Label]int32
	var chains []*trycatch.Chain
	if len(m.Catches) > 0 {
		resolver = trycatch.New(lp, c.Names)
		entryState, chains = resolver.Assign(m.Catches)
	}

	gen := codegen.New(lp, c.Names)
	prog, err := gen.Generate(m, entryState)
	if err != nil {
		return nil, fmt.Errorf("compiler: %s.%s%s: %w", class.Name, m.Name, m.Desc, err)
	}

	if resolver != nil {
		fragments, err := resolver.Render(chains, prog.LabelStates)
		if err != nil {
			return nil, fmt.Errorf("compiler: %s.%s%s: %w", class.Name, m.Name, m.Desc, err)
		}
		for id, frag := range fragments {
			prog.Fragments[id] = frag
			prog.Order = append(prog.Order, id)
		}

		c.mu.Lock()
		c.Stats.CatchesMaterialized += len(fragments)
		c.mu.Unlock()
		c.Listener.CatchesMaterialized(class.Name, m.Name, m.Desc, len(fragments))
	}

	params := flatten.DeriveParams(m.Name)
	source := flatten.Assemble(prog, params, c.Config.FlattenEnabled)

	c.mu.Lock()
	c.Stats.CompiledViaStateMachine++
	c.Stats.NativeSourceBytes += len(source)
	c.mu.Unlock()
	c.Listener.MethodCompiled(class.Name, m.Name, m.Desc, PathStateMachine)

	return &CompiledMethod{Method: m, Path: PathStateMachine, Source: source}, nil
}

func (c *Compiler) emitVMStub(m *bytecode.Method, seed uint64, instructionCount int) string {
	entry := "vm_interpreter_entry"
	if c.Config.PermissiveVMEligibility {
		// Permissive programs may still be JIT-eligible; the orchestrator
		// leaves that choice to the runtime loader, which probes
		// microvm.EligibleForJIT itself before picking vm_jit_entry.
		entry = "vm_dispatch_entry"
	}
	return fmt.Sprintf("/* %s.%s%s: %d micro-VM instructions, seed %#x */\nreturn %s(env, micro_vm_code_%s, %d, %#xULL, &refs_%s);",
		m.Owner, m.Name, m.Desc, instructionCount, seed, entry, sanitize(m.Name), instructionCount, seed, sanitize(m.Name))
}

func sanitize(name string) string {
	return strings.NewReplacer("<", "_", ">", "_").Replace(name)
}
