// Package bytecode defines the data model for one compiled method: its
// typed instruction stream, its try/catch regions, and the flags the
// method compiler core needs to select a processing path for it.
//
// This package owns no behavior beyond simple accessors; it exists so that
// internal/vmtranslate, internal/codegen and internal/compiler all agree on
// one shape for "a bytecode method" and its instructions.
package bytecode

// Flag is a bitmask of the method attributes the orchestrator inspects
// when selecting a special processor (internal/compiler).
type Flag uint16

const (
	FlagStatic Flag = 1 << iota
	FlagNative
	FlagAbstract
	FlagSynthetic
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// Label is an identity-only marker attached to a position in a Method's
// instruction list. Two Labels are the same label iff they are the same
// pointer; labels are never compared by value.
type Label struct {
	// Name is only used for diagnostics (panic messages, DESIGN.md-style
	// debug dumps); it plays no role in identity.
	Name string
}

// NewLabel allocates a fresh, distinct label.
func NewLabel(name string) *Label {
	return &Label{Name: name}
}

// Kind tags the meaning of an Instruction's operand fields: a closed,
// dense set of instruction shapes dispatched on by a big switch in every
// downstream consumer (VM translator, state-machine codegen).
type Kind uint8

const (
	KindNop Kind = iota
	KindConstInt
	KindConstLong
	KindConstFloat
	KindConstDouble
	KindConstString // operand is a name-pool string id
	KindConstNull
	KindLoad  // local slot load, Prim identifies width/sort
	KindStore // local slot store
	KindArithmetic
	KindBitOp
	KindConvert
	KindStackOp // DUP family, SWAP, POP
	KindArrayLoad
	KindArrayStore
	KindNew
	KindANewArray
	KindMultiANewArray
	KindCheckCast
	KindInstanceOf
	KindGetStatic
	KindPutStatic
	KindGetField
	KindPutField
	KindInvokeStatic
	KindInvokeVirtual
	KindInvokeSpecial
	KindInvokeInterface
	KindGoto
	KindIf        // unary comparison against zero
	KindIfCmp     // binary comparison between two stack values
	KindTableSwitch
	KindLookupSwitch
	KindReturn
	KindAThrow
	KindLabel // marks a position; carries no runtime effect itself
	KindHalt
)

// Prim identifies the JVM-style primitive sort an instruction variant
// operates over, mirroring the spec's "per width" arithmetic/local
// families (IADD vs LADD vs FADD vs DADD, ILOAD vs LLOAD, ...).
type Prim uint8

const (
	PrimInt Prim = iota
	PrimLong
	PrimFloat
	PrimDouble
	PrimRef
	PrimBool
	PrimByte
	PrimChar
	PrimShort
)

// Width reports how many local-variable slots a value of this sort
// consumes: long and double occupy two slots, everything else occupies one.
func (p Prim) Width() int {
	if p == PrimLong || p == PrimDouble {
		return 2
	}
	return 1
}

// ArithOp enumerates the operator for KindArithmetic/KindBitOp instructions.
type ArithOp uint8

const (
	ArithAdd ArithOp = iota
	ArithSub
	ArithMul
	ArithDiv
	ArithRem
	ArithNeg
	ArithAnd
	ArithOr
	ArithXor
	ArithShl
	ArithShr
	ArithUShr
)

// CmpOp enumerates the comparison predicate for KindIf/KindIfCmp.
type CmpOp uint8

const (
	CmpEQ CmpOp = iota
	CmpNE
	CmpLT
	CmpLE
	CmpGT
	CmpGE
)

// StackOp enumerates the DUP/SWAP/POP family for KindStackOp.
type StackOp uint8

const (
	StackDup StackOp = iota
	StackDupX1
	StackDupX2
	StackDup2
	StackDup2X1
	StackDup2X2
	StackSwap
	StackPop
	StackPop2
)

// ConvOp enumerates a primitive narrowing/widening conversion for
// KindConvert; the name states the (from, to) pair directly, matching the
// JVM's own opcode naming (I2L, D2F, ...).
type ConvOp uint8

const (
	ConvI2L ConvOp = iota
	ConvI2F
	ConvI2D
	ConvL2I
	ConvL2F
	ConvL2D
	ConvF2I
	ConvF2L
	ConvF2D
	ConvD2I
	ConvD2L
	ConvD2F
	ConvI2B
	ConvI2C
	ConvI2S
)

// Ref identifies a field, method, or class referenced by an instruction,
// by the same (owner, name, desc) triple the spec's reference tables use.
type Ref struct {
	Owner string
	Name  string
	Desc  string
}

// SwitchCase is one (key, target) pair of a LOOKUPSWITCH.
type SwitchCase struct {
	Key    int32
	Target *Label
}

// Instruction is a single bytecode instruction: a Kind tag plus the subset
// of the fields below that the Kind gives meaning to. This mirrors the
// teacher's interpreterOp tagged-union shape (kind, b1, b2, b3, us, rs)
// rather than a Go type hierarchy per opcode, so every downstream walker
// can switch on one field instead of performing type assertions.
type Instruction struct {
	Kind Kind

	Prim    Prim
	Arith   ArithOp
	Cmp     CmpOp
	IntImm  int64
	Float32 float32
	Float64 float64
	Str     string // string/class/name constant text, before interning
	Ref     Ref

	StackOp StackOp // KindStackOp variant
	Conv    ConvOp  // KindConvert variant

	Target  *Label   // GOTO / IF / IFCMP branch target
	Label   *Label   // KindLabel: the label this instruction embeds
	Dims    int      // MULTIANEWARRAY dimension count
	ArrType string   // array/class element type descriptor

	// Table switch: contiguous range [Low, High], Targets has High-Low+1
	// entries, Default is the fallback.
	Low, High int32
	Targets   []*Label
	Default   *Label

	// Lookup switch.
	Cases []SwitchCase
}

// TryCatch is one protected-region/handler pair. Start and End delimit the
// protected region (End exclusive); ExceptionType is empty when this entry
// catches ANY throwable.
type TryCatch struct {
	Start, End, Handler *Label
	ExceptionType       string // "" means ANY
}

// Method is one compiled method's bytecode: its instruction stream, its
// stack/local bounds, its protected regions, and its flags. Labels
// referenced by Target/Handler/Targets/Default/Cases must appear as the
// Label field of some KindLabel instruction in Code.
type Method struct {
	Owner      string
	Name       string
	Desc       string
	ArgTypes   []Prim
	ArgRefType []string // element type descriptor when ArgTypes[i] == PrimRef
	Return     Prim
	ReturnRef  string

	MaxStack  int
	MaxLocals int

	Code    []Instruction
	Catches []TryCatch

	Flags Flag
}

func (m *Method) IsStatic() bool { return m.Flags.Has(FlagStatic) }

// Clear drops the try/catch and (conceptually) local-variable-table side
// data carried on the bytecode side, per : "prevents verifier
// conflicts downstream" once the native stub has been spliced in.
func (m *Method) Clear() {
	m.Catches = nil
}
