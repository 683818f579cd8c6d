// Package flatten implements turning a codegen.Program's
// state_id->fragment map into final dispatcher source, either as a
// flattened switch-in-a-loop with affine-obfuscated state ids, or as a
// plain linear label/goto body when flattening is disabled.
//
// The enabled/disabled split follows a single toggle selecting between
// two code paths that must remain behaviorally equivalent, checked once
// at the call site rather than inside the hot loop.
package flatten

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/kryptid/classnative/internal/codegen"
)

// Params is the per-method affine obfuscation (A, B) pair derived from a
// stable hash of the method name, per : visible = (raw XOR A) + B mod 2^32.
type Params struct {
	A, B uint32
}

// DeriveParams computes (A, B) from methodName via two independent FNV-1a
// hashes (one over the plain name, one over the name with a fixed salt
// appended) so A and B are not trivially related to each other.
func DeriveParams(methodName string) Params {
	h1 := fnv.New32a()
	h1.Write([]byte(methodName))
	a := h1.Sum32()

	h2 := fnv.New32a()
	h2.Write([]byte(methodName))
	h2.Write([]byte{0xA5})
	b := h2.Sum32()

	// A must be non-zero, or the XOR half of the transform is an identity.
	if a == 0 {
		a = 1
	}
	return Params{A: a, B: b}
}

func (p Params) obfuscate(raw int32) uint32 {
	return (uint32(raw) ^ p.A) + p.B
}

func (p Params) deobfuscate(visible uint32) int32 {
	return int32((visible - p.B) ^ p.A)
}

// Assemble renders prog's states into a complete method body. When
// flattenEnabled, the result is a dispatcher loop around a switch on the
// affine-obfuscated state id; when disabled, it is a linear sequence of
// `state_N:` labels with explicit gotos, identical to how the fragments
// already reference each other, so disabling flattening is purely a
// presentation choice.
func Assemble(prog *codegen.Program, params Params, flattenEnabled bool) string {
	if !flattenEnabled {
		return assembleLinear(prog)
	}
	return assembleFlattened(prog, params)
}

func assembleLinear(prog *codegen.Program) string {
	var b strings.Builder
	b.WriteString(prog.Prologue)
	fmt.Fprintf(&b, "\n\tgoto state_%d;\n", prog.EntryState)
	for _, id := range prog.Order {
		b.WriteString(prog.Fragments[id])
		b.WriteString("\n")
	}
	b.WriteString(prog.Epilogue)
	return b.String()
}

// assembleFlattened wraps every fragment in a visible-state case inside a
// `for(;;) switch` dispatcher. Each fragment's internal `goto state_N;`
// text still addresses the *raw* state id (codegen has no notion of
// obfuscation), so every occurrence of that literal goto target is
// rewritten to instead assign the obfuscated "current" variable and
// `continue` the dispatch loop — the same raw->visible mapping Params
// defines, applied uniformly as a textual substitution pass.
func assembleFlattened(prog *codegen.Program, params Params) string {
	allStates := append(append([]int32{}, prog.Order...), prog.SentinelExit)

	rewritten := make(map[int32]string, len(prog.Fragments))
	for id, frag := range prog.Fragments {
		rewritten[id] = rewriteGotos(frag, allStates, params)
	}

	sort.Slice(allStates, func(i, j int) bool { return allStates[i] < allStates[j] })

	var b strings.Builder
	b.WriteString(prog.Prologue)
	fmt.Fprintf(&b, "\n\tuint32_t __state = %dU;\n\tfor (;;) {\n\tswitch (__state) {\n", params.obfuscate(prog.EntryState))
	for _, id := range prog.Order {
		fmt.Fprintf(&b, "\tcase %dU: {\n%s\n\tbreak;\n\t}\n", params.obfuscate(id), stripLabel(rewritten[id]))
	}
	fmt.Fprintf(&b, "\tdefault:\n%s\n\t}\n\t}\n", stripLabel(prog.Epilogue))
	return b.String()
}

func stripLabel(fragment string) string {
	// codegen emits "state_N:\n\t..."; the flattened switch already
	// provides the dispatch target via `case`, so the label line is
	// redundant noise inside a case block.
	if idx := strings.IndexByte(fragment, '\n'); idx >= 0 {
		return fragment[idx+1:]
	}
	return fragment
}

func rewriteGotos(fragment string, states []int32, params Params) string {
	out := fragment
	for _, id := range states {
		old := fmt.Sprintf("goto state_%d;", id)
		if !strings.Contains(out, old) {
			continue
		}
		new := fmt.Sprintf("{ __state = %dU; continue; }", params.obfuscate(id))
		out = strings.ReplaceAll(out, old, new)
	}
	return out
}
