// Package vmtranslate implements walking one bytecode method's
// instructions in program order and producing the parallel micro-VM
// instruction stream plus its auxiliary reference tables (fields,
// methods, classes, multi-array shapes, switch tables, constant pool).
//
// The walk itself is one switch over the source instruction's Kind,
// resolving forward branch targets via a label->index map built during
// the same pass and emitting one micro-VM instruction per source
// operation. "Address" here is a micro-VM instruction index instead of a
// byte offset, and branch forward references are resolved with a second
// pass over pending fixups rather than per-target closures, since micro-VM
// instructions are simpler to patch after the fact. Switch targets, which
// live in a reference-table descriptor rather than an operand, are filled
// in by one deferred closure per switch instead.
package vmtranslate

import (
	"fmt"

	"github.com/kryptid/classnative/internal/bytecode"
	"github.com/kryptid/classnative/internal/microvm"
)

// Interner resolves a string/class name to the id a name pool assigned it
// (interned) before the emitted constant pool references it; the method
// compiler orchestrator owns the actual pool, so the translator only
// needs a function to call into it.
type Interner func(text string) uint32

// Result is everything the translator produced for one method.
type Result struct {
	Code []microvm.Instruction
	Refs microvm.RefTables
}

// pendingFixup is a branch/switch operand that targets a label not yet
// seen when it was emitted; resolved once every label's index is known.
type pendingFixup struct {
	instrIndex int      // index into code whose Operand needs patching
	target     *bytecode.Label
}

type translator struct {
	interner Interner

	code []microvm.Instruction
	refs microvm.RefTables

	labelIndex map[*bytecode.Label]int
	fixups     []pendingFixup

	fieldIndex  map[bytecode.Ref]int
	methodIndex map[bytecode.Ref]int
	classIndex  map[string]int

	sawInvoke          bool
	sawNonStaticInvoke bool
	permissiveInvoke   bool

	deferred []func()
}

// Translate walks m.Code and returns the micro-VM program plus reference
// tables, along with whether the method remains eligible for VM emission.
// permissiveInvoke enables the the design notes "permissive VM eligibility"
// mode (default off): when true, OpInvokeStatic sites are emitted instead
// of forcing ineligibility purely because an invocation is present.
// INVOKEVIRTUAL/INVOKESPECIAL/INVOKEINTERFACE always force ineligibility
// regardless of permissiveInvoke — only INVOKESTATIC is ever let through,
// per the design notes' resolution of the spec's eligibility open question.
// An interface-declared method (isInterfaceMethod) is never eligible,
// regardless of permissiveInvoke.
func Translate(m *bytecode.Method, interner Interner, isInterfaceMethod, permissiveInvoke bool) (*Result, bool) {
	if isInterfaceMethod {
		return nil, false
	}

	tr := &translator{
		interner:         interner,
		labelIndex:       make(map[*bytecode.Label]int),
		fieldIndex:       make(map[bytecode.Ref]int),
		methodIndex:      make(map[bytecode.Ref]int),
		classIndex:       make(map[string]int),
		permissiveInvoke: permissiveInvoke,
	}

	for _, ins := range m.Code {
		tr.emit(ins)
	}

	if len(tr.code) == 0 {
		return nil, false
	}
	if tr.sawNonStaticInvoke {
		return nil, false
	}
	if tr.sawInvoke && !permissiveInvoke {
		return nil, false
	}

	for _, fn := range tr.deferred {
		fn()
	}

	for _, fx := range tr.fixups {
		idx, ok := tr.labelIndex[fx.target]
		if !ok {
			panic(fmt.Errorf("vmtranslate: label %q never emitted", fx.target.Name))
		}
		tr.code[fx.instrIndex].Operand = int64(idx)
	}

	return &Result{Code: tr.code, Refs: tr.refs}, true
}

func (t *translator) emitOp(op microvm.Op, operand int64) int {
	idx := len(t.code)
	t.code = append(t.code, microvm.Instruction{Op: uint8(op), Operand: operand})
	return idx
}

func (t *translator) branchFixup(idx int, target *bytecode.Label) {
	t.fixups = append(t.fixups, pendingFixup{instrIndex: idx, target: target})
}

func (t *translator) classID(name string) int {
	if idx, ok := t.classIndex[name]; ok {
		return idx
	}
	idx := len(t.refs.Classes)
	t.refs.Classes = append(t.refs.Classes, name)
	t.classIndex[name] = idx
	return idx
}

func (t *translator) fieldID(r bytecode.Ref) int {
	if idx, ok := t.fieldIndex[r]; ok {
		return idx
	}
	idx := len(t.refs.Fields)
	t.refs.Fields = append(t.refs.Fields, microvm.FieldRef{Owner: r.Owner, Name: r.Name, Desc: r.Desc})
	t.fieldIndex[r] = idx
	return idx
}

func (t *translator) methodID(r bytecode.Ref) int {
	if idx, ok := t.methodIndex[r]; ok {
		return idx
	}
	idx := len(t.refs.Methods)
	t.refs.Methods = append(t.refs.Methods, microvm.MethodRef{Owner: r.Owner, Name: r.Name, Desc: r.Desc})
	t.methodIndex[r] = idx
	return idx
}

func (t *translator) constID(c microvm.ConstantPoolEntry) int {
	idx := len(t.refs.Constants)
	t.refs.Constants = append(t.refs.Constants, c)
	return idx
}

var arithOpcodes = map[bytecode.Prim]map[bytecode.ArithOp]microvm.Op{
	bytecode.PrimInt: {
		bytecode.ArithAdd: microvm.OpIAdd, bytecode.ArithSub: microvm.OpISub,
		bytecode.ArithMul: microvm.OpIMul, bytecode.ArithDiv: microvm.OpIDiv,
		bytecode.ArithRem: microvm.OpIRem, bytecode.ArithNeg: microvm.OpINeg,
		bytecode.ArithAnd: microvm.OpIAnd, bytecode.ArithOr: microvm.OpIOr,
		bytecode.ArithXor: microvm.OpIXor, bytecode.ArithShl: microvm.OpIShl,
		bytecode.ArithShr: microvm.OpIShr, bytecode.ArithUShr: microvm.OpIUShr,
	},
	bytecode.PrimLong: {
		bytecode.ArithAdd: microvm.OpLAdd, bytecode.ArithSub: microvm.OpLSub,
		bytecode.ArithMul: microvm.OpLMul, bytecode.ArithDiv: microvm.OpLDiv,
		bytecode.ArithRem: microvm.OpLRem, bytecode.ArithNeg: microvm.OpLNeg,
		bytecode.ArithAnd: microvm.OpLAnd, bytecode.ArithOr: microvm.OpLOr,
		bytecode.ArithXor: microvm.OpLXor, bytecode.ArithShl: microvm.OpLShl,
		bytecode.ArithShr: microvm.OpLShr, bytecode.ArithUShr: microvm.OpLUShr,
	},
	bytecode.PrimFloat: {
		bytecode.ArithAdd: microvm.OpFAdd, bytecode.ArithSub: microvm.OpFSub,
		bytecode.ArithMul: microvm.OpFMul, bytecode.ArithDiv: microvm.OpFDiv,
		bytecode.ArithRem: microvm.OpFRem, bytecode.ArithNeg: microvm.OpFNeg,
	},
	bytecode.PrimDouble: {
		bytecode.ArithAdd: microvm.OpDAdd, bytecode.ArithSub: microvm.OpDSub,
		bytecode.ArithMul: microvm.OpDMul, bytecode.ArithDiv: microvm.OpDDiv,
		bytecode.ArithRem: microvm.OpDRem, bytecode.ArithNeg: microvm.OpDNeg,
	},
}

var cmpToIf = map[bytecode.CmpOp]microvm.Op{
	bytecode.CmpEQ: microvm.OpIfEQ, bytecode.CmpNE: microvm.OpIfNE,
	bytecode.CmpLT: microvm.OpIfLT, bytecode.CmpLE: microvm.OpIfLE,
	bytecode.CmpGT: microvm.OpIfGT, bytecode.CmpGE: microvm.OpIfGE,
}

var cmpToIfCmp = map[bytecode.CmpOp]microvm.Op{
	bytecode.CmpEQ: microvm.OpIfICmpEQ, bytecode.CmpNE: microvm.OpIfICmpNE,
	bytecode.CmpLT: microvm.OpIfICmpLT, bytecode.CmpLE: microvm.OpIfICmpLE,
	bytecode.CmpGT: microvm.OpIfICmpGT, bytecode.CmpGE: microvm.OpIfICmpGE,
}

var stackOpcodes = map[bytecode.StackOp]microvm.Op{
	bytecode.StackDup: microvm.OpDup, bytecode.StackDupX1: microvm.OpDupX1,
	bytecode.StackDupX2: microvm.OpDupX2, bytecode.StackDup2: microvm.OpDup2,
	bytecode.StackDup2X1: microvm.OpDup2X1, bytecode.StackDup2X2: microvm.OpDup2X2,
	bytecode.StackSwap: microvm.OpSwap, bytecode.StackPop: microvm.OpPop,
	bytecode.StackPop2: microvm.OpPop2,
}

var convOpcodes = map[bytecode.ConvOp]microvm.Op{
	bytecode.ConvI2L: microvm.OpI2L, bytecode.ConvI2F: microvm.OpI2F, bytecode.ConvI2D: microvm.OpI2D,
	bytecode.ConvL2I: microvm.OpL2I, bytecode.ConvL2F: microvm.OpL2F, bytecode.ConvL2D: microvm.OpL2D,
	bytecode.ConvF2I: microvm.OpF2I, bytecode.ConvF2L: microvm.OpF2L, bytecode.ConvF2D: microvm.OpF2D,
	bytecode.ConvD2I: microvm.OpD2I, bytecode.ConvD2L: microvm.OpD2L, bytecode.ConvD2F: microvm.OpD2F,
	bytecode.ConvI2B: microvm.OpI2B, bytecode.ConvI2C: microvm.OpI2C, bytecode.ConvI2S: microvm.OpI2S,
}

func convertOp(ins bytecode.Instruction) microvm.Op {
	op, ok := convOpcodes[ins.Conv]
	if !ok {
		panic(fmt.Errorf("vmtranslate: no micro-VM opcode for conversion %v", ins.Conv))
	}
	return op
}

var arrayLoadOpcodes = map[bytecode.Prim]microvm.Op{
	bytecode.PrimInt: microvm.OpArrLoadI, bytecode.PrimLong: microvm.OpArrLoadL,
	bytecode.PrimFloat: microvm.OpArrLoadF, bytecode.PrimDouble: microvm.OpArrLoadD,
	bytecode.PrimRef: microvm.OpArrLoadA, bytecode.PrimBool: microvm.OpArrLoadB,
	bytecode.PrimByte: microvm.OpArrLoadB, bytecode.PrimChar: microvm.OpArrLoadC,
	bytecode.PrimShort: microvm.OpArrLoadS,
}

var arrayStoreOpcodes = map[bytecode.Prim]microvm.Op{
	bytecode.PrimInt: microvm.OpArrStoreI, bytecode.PrimLong: microvm.OpArrStoreL,
	bytecode.PrimFloat: microvm.OpArrStoreF, bytecode.PrimDouble: microvm.OpArrStoreD,
	bytecode.PrimRef: microvm.OpArrStoreA, bytecode.PrimBool: microvm.OpArrStoreB,
	bytecode.PrimByte: microvm.OpArrStoreB, bytecode.PrimChar: microvm.OpArrStoreC,
	bytecode.PrimShort: microvm.OpArrStoreS,
}

func arrayLoadOp(p bytecode.Prim) microvm.Op {
	op, ok := arrayLoadOpcodes[p]
	if !ok {
		panic(fmt.Errorf("vmtranslate: no array-load opcode for prim %v", p))
	}
	return op
}

func arrayStoreOp(p bytecode.Prim) microvm.Op {
	op, ok := arrayStoreOpcodes[p]
	if !ok {
		panic(fmt.Errorf("vmtranslate: no array-store opcode for prim %v", p))
	}
	return op
}

func loadOp(p bytecode.Prim) microvm.Op {
	switch p {
	case bytecode.PrimLong:
		return microvm.OpLLoad
	case bytecode.PrimFloat:
		return microvm.OpFLoad
	case bytecode.PrimDouble:
		return microvm.OpDLoad
	case bytecode.PrimRef:
		return microvm.OpALoad
	default:
		return microvm.OpILoad
	}
}

func storeOp(p bytecode.Prim) microvm.Op {
	switch p {
	case bytecode.PrimLong:
		return microvm.OpLStore
	case bytecode.PrimFloat:
		return microvm.OpFStore
	case bytecode.PrimDouble:
		return microvm.OpDStore
	case bytecode.PrimRef:
		return microvm.OpAStore
	default:
		return microvm.OpIStore
	}
}

func (t *translator) emit(ins bytecode.Instruction) {
	switch ins.Kind {
	case bytecode.KindLabel:
		t.labelIndex[ins.Label] = len(t.code)

	case bytecode.KindConstInt:
		t.emitOp(microvm.OpPushInt, ins.IntImm)
	case bytecode.KindConstLong:
		t.emitOp(microvm.OpPushLong, ins.IntImm)
	case bytecode.KindConstFloat:
		cidx := t.constID(microvm.ConstantPoolEntry{Kind: microvm.ConstFloat, FloatVal: ins.Float32})
		t.emitOp(microvm.OpLdc, int64(cidx))
	case bytecode.KindConstDouble:
		cidx := t.constID(microvm.ConstantPoolEntry{Kind: microvm.ConstDouble, DoubleVal: ins.Float64})
		t.emitOp(microvm.OpLdc, int64(cidx))
	case bytecode.KindConstString:
		sid := t.interner(ins.Str)
		cidx := t.constID(microvm.ConstantPoolEntry{Kind: microvm.ConstString, StringID: sid})
		t.emitOp(microvm.OpLdc, int64(cidx))
	case bytecode.KindConstNull:
		t.emitOp(microvm.OpPushLong, 0)

	case bytecode.KindLoad:
		t.emitOp(loadOp(ins.Prim), ins.IntImm)
	case bytecode.KindStore:
		t.emitOp(storeOp(ins.Prim), ins.IntImm)

	case bytecode.KindArithmetic:
		op, ok := arithOpcodes[ins.Prim][ins.Arith]
		if !ok {
			panic(fmt.Errorf("vmtranslate: no micro-VM opcode for arithmetic prim=%v op=%v", ins.Prim, ins.Arith))
		}
		t.emitOp(op, 0)
	case bytecode.KindBitOp:
		op, ok := arithOpcodes[ins.Prim][ins.Arith]
		if !ok {
			panic(fmt.Errorf("vmtranslate: no micro-VM opcode for bitop prim=%v op=%v", ins.Prim, ins.Arith))
		}
		t.emitOp(op, 0)

	case bytecode.KindConvert:
		t.emitOp(convertOp(ins), 0)

	case bytecode.KindStackOp:
		t.emitOp(stackOpcodes[ins.StackOp], 0)

	case bytecode.KindArrayLoad:
		t.emitOp(arrayLoadOp(ins.Prim), 0)
	case bytecode.KindArrayStore:
		t.emitOp(arrayStoreOp(ins.Prim), 0)

	case bytecode.KindNew:
		cidx := t.classID(ins.ArrType)
		t.emitOp(microvm.OpNew, int64(cidx))
	case bytecode.KindANewArray:
		cidx := t.classID(ins.ArrType)
		t.emitOp(microvm.OpANewArray, int64(cidx))
	case bytecode.KindMultiANewArray:
		idx := len(t.refs.MultiArrays)
		t.refs.MultiArrays = append(t.refs.MultiArrays, microvm.MultiArrayInfo{Desc: ins.ArrType, Dims: ins.Dims})
		t.emitOp(microvm.OpMultiANewArray, int64(idx))
	case bytecode.KindCheckCast:
		cidx := t.classID(ins.ArrType)
		t.emitOp(microvm.OpCheckCast, int64(cidx))
	case bytecode.KindInstanceOf:
		cidx := t.classID(ins.ArrType)
		t.emitOp(microvm.OpInstanceOf, int64(cidx))

	case bytecode.KindGetStatic:
		t.emitOp(microvm.OpGetStatic, int64(t.fieldID(ins.Ref)))
	case bytecode.KindPutStatic:
		t.emitOp(microvm.OpPutStatic, int64(t.fieldID(ins.Ref)))
	case bytecode.KindGetField:
		t.emitOp(microvm.OpGetField, int64(t.fieldID(ins.Ref)))
	case bytecode.KindPutField:
		t.emitOp(microvm.OpPutField, int64(t.fieldID(ins.Ref)))

	case bytecode.KindInvokeStatic:
		t.sawInvoke = true
		if t.permissiveInvoke {
			t.emitOp(microvm.OpInvokeStatic, int64(t.methodID(ins.Ref)))
		}
	case bytecode.KindInvokeVirtual, bytecode.KindInvokeSpecial, bytecode.KindInvokeInterface:
		t.sawInvoke = true
		t.sawNonStaticInvoke = true

	case bytecode.KindGoto:
		idx := t.emitOp(microvm.OpGoto, 0)
		t.branchFixup(idx, ins.Target)
	case bytecode.KindIf:
		idx := t.emitOp(cmpToIf[ins.Cmp], 0)
		t.branchFixup(idx, ins.Target)
	case bytecode.KindIfCmp:
		idx := t.emitOp(cmpToIfCmp[ins.Cmp], 0)
		t.branchFixup(idx, ins.Target)

	case bytecode.KindTableSwitch:
		desc := microvm.TableSwitchDescriptor{Low: ins.Low, High: ins.High}
		tidx := len(t.refs.TableSwitch)
		t.refs.TableSwitch = append(t.refs.TableSwitch, desc)
		t.emitOp(microvm.OpTableSwitch, int64(tidx))
		t.resolveTableSwitchTargets(tidx, ins.Targets, ins.Default)

	case bytecode.KindLookupSwitch:
		desc := microvm.LookupSwitchDescriptor{}
		for _, c := range ins.Cases {
			desc.Keys = append(desc.Keys, c.Key)
		}
		lidx := len(t.refs.LookupSwitch)
		t.refs.LookupSwitch = append(t.refs.LookupSwitch, desc)
		t.emitOp(microvm.OpLookupSwitch, int64(lidx))
		t.resolveLookupSwitchTargets(lidx, ins.Cases, ins.Default)

	case bytecode.KindReturn, bytecode.KindAThrow:
		t.emitOp(microvm.OpHalt, 0)

	case bytecode.KindHalt:
		t.emitOp(microvm.OpHalt, 0)

	case bytecode.KindNop:
		t.emitOp(microvm.OpNop, 0)

	default:
		panic(fmt.Errorf("vmtranslate: unhandled instruction kind %v", ins.Kind))
	}
}

// resolveTableSwitchTargets and resolveLookupSwitchTargets defer to a
// second pass (rather than the generic fixups list, whose instrIndex
// addresses a code slot) because a switch descriptor's Targets/Default
// live in a reference-table entry, not directly in an instruction
// operand; labels inside them may still be forward references, so the
// closure captured here runs only after Translate has walked every
// instruction (just before the fixup loop), reading the same labelIndex
// map.
func (t *translator) resolveTableSwitchTargets(descIdx int, targets []*bytecode.Label, def *bytecode.Label) {
	t.deferred = append(t.deferred, func() {
		desc := &t.refs.TableSwitch[descIdx]
		desc.Targets = make([]int, len(targets))
		for i, lbl := range targets {
			desc.Targets[i] = t.mustLabel(lbl)
		}
		desc.Default = t.mustLabel(def)
	})
}

func (t *translator) resolveLookupSwitchTargets(descIdx int, cases []bytecode.SwitchCase, def *bytecode.Label) {
	t.deferred = append(t.deferred, func() {
		desc := &t.refs.LookupSwitch[descIdx]
		desc.Targets = make([]int, len(cases))
		for i, c := range cases {
			desc.Targets[i] = t.mustLabel(c.Target)
		}
		desc.Default = t.mustLabel(def)
	})
}

func (t *translator) mustLabel(l *bytecode.Label) int {
	idx, ok := t.labelIndex[l]
	if !ok {
		panic(fmt.Errorf("vmtranslate: label %q never emitted", l.Name))
	}
	return idx
}
