// Package codegen implements turning one bytecode method into a
// "state_id -> fragment" map of native source text, the shape
// internal/flatten later assembles into either a flattened dispatcher loop
// or a linear label/goto body.
//
// The per-opcode handler table mirrors wazero's internal/engine/compiler,
// which walks wazeroir operations and calls one compileXxx method per
// operation kind to append architecture-specific instructions to an
// assembler builder (compiler.go's big switch in compileWasmOp). Here the
// "assembler" is a strings.Builder and the "instructions" are C-like
// source lines; the per-opcode dispatch table otherwise plays the same
// role DESIGN NOTES  asks for ("a fixed-size table indexed by
// instruction-type tag").
package codegen

import (
	"fmt"
	"strings"

	"github.com/kryptid/classnative/internal/bytecode"
	"github.com/kryptid/classnative/internal/labelpool"
	"github.com/kryptid/classnative/internal/namepool"
)

// Program is one method's compiled state-machine body: a dense map from
// state id to the native source fragment for that state, plus the
// prologue/epilogue text the dispatcher wraps around it.
type Program struct {
	Prologue string
	Epilogue string

	EntryState   int32
	SentinelExit int32 // unreachable trap state, per 

	Order     []int32 // emission order, stable for deterministic output
	Fragments map[int32]string

	// LabelStates is every bytecode.Label's resolved state id, exposed so
	// internal/trycatch can target a catch handler's existing block
	// instead of minting a second, disconnected state for it.
	LabelStates map[*bytecode.Label]int32
}

// Generator holds the per-method state needed while walking one method's
// instruction list: the label pool assigning state ids and the name pool
// used to render field/method/class/string references as tokens instead
// of raw text.
type Generator struct {
	Labels *labelpool.Pool
	Names  *namepool.Pool

	resolve func(*bytecode.Label) int32

	// protectedEntry maps a protected instruction's own state id to the
	// try/catch chain's entry state (internal/trycatch.Resolver.Assign),
	// so emitAThrow can route into the chain instead of unconditionally
	// escaping to the host.
	protectedEntry map[int32]int32
}

func New(labels *labelpool.Pool, names *namepool.Pool) *Generator {
	return &Generator{Labels: labels, Names: names}
}

// handler renders one instruction's fragment body (the transition to
// "next" is appended by Generate unless the handler already ends the
// state with a jump/return/throw).
type handler func(g *Generator, ins bytecode.Instruction, self, next int32) (body string, terminal bool)

var handlers = map[bytecode.Kind]handler{
	bytecode.KindNop:            emitNop,
	bytecode.KindConstInt:       emitConstInt,
	bytecode.KindConstLong:      emitConstLong,
	bytecode.KindConstFloat:     emitConstFloat,
	bytecode.KindConstDouble:    emitConstDouble,
	bytecode.KindConstString:    emitConstString,
	bytecode.KindConstNull:      emitConstNull,
	bytecode.KindLoad:           emitLoad,
	bytecode.KindStore:          emitStore,
	bytecode.KindArithmetic:     emitArithmetic,
	bytecode.KindBitOp:          emitArithmetic,
	bytecode.KindConvert:        emitConvert,
	bytecode.KindStackOp:        emitStackOp,
	bytecode.KindArrayLoad:      emitArrayLoad,
	bytecode.KindArrayStore:     emitArrayStore,
	bytecode.KindNew:            emitNew,
	bytecode.KindANewArray:      emitANewArray,
	bytecode.KindMultiANewArray: emitMultiANewArray,
	bytecode.KindCheckCast:      emitCheckCast,
	bytecode.KindInstanceOf:     emitInstanceOf,
	bytecode.KindGetStatic:      emitGetStatic,
	bytecode.KindPutStatic:      emitPutStatic,
	bytecode.KindGetField:       emitGetField,
	bytecode.KindPutField:       emitPutField,
	bytecode.KindInvokeStatic:   emitInvoke,
	bytecode.KindInvokeVirtual:  emitInvoke,
	bytecode.KindInvokeSpecial:  emitInvoke,
	bytecode.KindInvokeInterface: emitInvoke,
	bytecode.KindGoto:           emitGoto,
	bytecode.KindIf:             emitIf,
	bytecode.KindIfCmp:          emitIfCmp,
	bytecode.KindTableSwitch:    emitTableSwitch,
	bytecode.KindLookupSwitch:   emitLookupSwitch,
	bytecode.KindReturn:         emitReturn,
	bytecode.KindAThrow:         emitAThrow,
	bytecode.KindHalt:           emitReturn,
}

// Generate runs the  pipeline: a label pre-pass assigning one state id
// per emitted (non-label) instruction, then a second pass rendering each
// instruction's fragment with its "next" state already known — so forward
// branches never need patching.
//
// entryState is internal/trycatch.Resolver.Assign's region-Start -> chain-
// entry-state mapping, computed before Generate runs (it only needs the
// chain's shape, not any state id codegen assigns); it is nil for methods
// with no protected regions. Generate uses it to let a throwing instruction
// inside a protected range jump straight into its catch chain.
func (g *Generator) Generate(m *bytecode.Method, entryState map[*bytecode.Label]int32) (*Program, error) {
	states := make([]int32, len(m.Code))
	labelState := make(map[*bytecode.Label]int32)
	labelPos := make(map[*bytecode.Label]int)

	var order []int32
	for i, ins := range m.Code {
		if ins.Kind == bytecode.KindLabel {
			continue
		}
		id := g.Labels.NewStandalone()
		states[i] = id
		order = append(order, id)
	}
	// second sub-pass: every label aliases the state id of the next
	// emitted instruction at or after its position.
	for i, ins := range m.Code {
		if ins.Kind != bytecode.KindLabel {
			continue
		}
		labelPos[ins.Label] = i
		target := int32(0)
		found := false
		for j := i; j < len(m.Code); j++ {
			if m.Code[j].Kind != bytecode.KindLabel {
				target = states[j]
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("codegen: label %q has no following instruction", ins.Label.Name)
		}
		labelState[ins.Label] = target
	}

	g.protectedEntry = protectedEntryStates(m, states, labelPos, entryState)

	sentinel := g.Labels.NewStandalone()
	prog := &Program{
		Fragments:    make(map[int32]string),
		Order:        order,
		SentinelExit: sentinel,
		LabelStates:  labelState,
	}
	if len(order) > 0 {
		prog.EntryState = order[0]
	} else {
		prog.EntryState = sentinel
	}

	resolve := func(l *bytecode.Label) int32 {
		id, ok := labelState[l]
		if !ok {
			panic(fmt.Errorf("codegen: label %q never resolved", l.Name))
		}
		return id
	}
	g.resolve = resolve

	nextOf := func(i int) int32 {
		for j := i + 1; j < len(m.Code); j++ {
			if m.Code[j].Kind != bytecode.KindLabel {
				return states[j]
			}
		}
		return sentinel
	}

	for i, ins := range m.Code {
		if ins.Kind == bytecode.KindLabel {
			continue
		}
		h, ok := handlers[ins.Kind]
		if !ok {
			return nil, fmt.Errorf("codegen: no handler registered for kind %v", ins.Kind)
		}
		body, terminal := h(g, ins, states[i], nextOf(i))
		if !terminal {
			body += fmt.Sprintf("\n\tgoto state_%d;", nextOf(i))
		}
		prog.Fragments[states[i]] = body
	}

	prog.Prologue = g.prologue(m)
	epilogue := fmt.Sprintf("state_%d:\n\t/* unreachable: dispatcher default case is fatal */\n\tnative_fatal(\"unreachable state\");", sentinel)
	if len(m.Catches) > 0 {
		epilogue += "\nstate_unwind:\n\tthrow_java_exception(env, pending_exception);\n\treturn 0;"
	}
	prog.Epilogue = epilogue

	return prog, nil
}

// protectedEntryStates maps each protected instruction's own state id to
// the entry state of the innermost enclosing try/catch chain that covers
// it, per , so emitAThrow can route a throw into that chain instead of
// escaping unconditionally. When more than one region covers the same
// instruction (nested try blocks), the region with the smallest span wins,
// matching the innermost-try-first lookup order the JVM's own exception
// table search performs.
func protectedEntryStates(m *bytecode.Method, states []int32, labelPos map[*bytecode.Label]int, entryState map[*bytecode.Label]int32) map[int32]int32 {
	if len(entryState) == 0 {
		return nil
	}

	type span struct {
		start, end int
		entry      int32
	}
	var spans []span
	for _, tc := range m.Catches {
		entry, ok := entryState[tc.Start]
		if !ok {
			continue
		}
		start, sok := labelPos[tc.Start]
		end, eok := labelPos[tc.End]
		if !sok || !eok {
			continue
		}
		spans = append(spans, span{start, end, entry})
	}
	if len(spans) == 0 {
		return nil
	}

	result := make(map[int32]int32)
	for i, ins := range m.Code {
		if ins.Kind == bytecode.KindLabel {
			continue
		}
		var chosen *span
		for k := range spans {
			sp := &spans[k]
			if i < sp.start || i >= sp.end {
				continue
			}
			if chosen == nil || sp.end-sp.start < chosen.end-chosen.start {
				chosen = sp
			}
		}
		if chosen != nil {
			result[states[i]] = chosen.entry
		}
	}
	return result
}

// resolve is stashed on the Generator during Generate so handler functions
// (which only receive the instruction and two state ids) can still turn a
// branch's *bytecode.Label into a state id without threading an extra
// parameter through every handler signature.
func (g *Generator) resolveLabel(l *bytecode.Label) int32 { return g.resolve(l) }

func (g *Generator) prologue(m *bytecode.Method) string {
	var b strings.Builder
	fmt.Fprintf(&b, "/* %s.%s%s */\n", m.Owner, m.Name, m.Desc)
	if m.IsStatic() {
		fmt.Fprintf(&b, "jclass declaring_class = resolve_class(%d);\n", g.Names.Intern(namepool.KindClassInternalName, m.Owner))
	} else {
		b.WriteString("jobject receiver = arg_receiver;\njclass declaring_class = (*env)->GetObjectClass(env, receiver);\n")
	}
	fmt.Fprintf(&b, "value_t operand_stack[%d];\nvalue_t locals[%d];\nint sp = 0;\n", m.MaxStack, m.MaxLocals)
	if len(m.Catches) > 0 {
		b.WriteString("jobject pending_exception = NULL;\n")
	}

	slot := 0
	if !m.IsStatic() {
		b.WriteString("locals[0].ref = receiver;\n")
		slot = 1
	}
	for i, arg := range m.ArgTypes {
		fmt.Fprintf(&b, "locals[%d] = %s(arg%d);\n", slot, localInitializer(arg), i)
		slot += arg.Width()
	}
	return b.String()
}

func localInitializer(p bytecode.Prim) string {
	switch p {
	case bytecode.PrimLong:
		return "box_long"
	case bytecode.PrimFloat:
		return "box_float_bits"
	case bytecode.PrimDouble:
		return "box_double_bits"
	case bytecode.PrimRef:
		return "box_ref"
	default:
		return "box_int"
	}
}
