// Package microvm implements the second-level stack-VM instruction
// set, the evolving-XOR instruction encoder, and the two runtime
// interpreter variants ("interpreter" and "JIT") that execute it.
//
// The two-variant split mirrors wazero's own interpreter/compiler engine
// split (internal/engine/interpreter vs internal/engine/compiler): both
// share identical observable semantics over the same instruction stream,
// differing only in whether decoding happens once up front or once per
// step. Per spec  Non-goals, "JIT" here names a second
// interpreter variant, never a machine-code assembler.
package microvm

// Op is one micro-VM opcode. The set is a superset of the source
// stack-machine: every bytecode instruction family the VM translator
// (internal/vmtranslate) can legally produce has a home here.
type Op uint8

const (
	OpNop Op = iota

	// Constants / loads from the typed constant pool.
	OpPushInt
	OpPushLong
	OpPushFloat
	OpPushDouble
	OpLdc // operand indexes ConstantPool

	// Arithmetic, one opcode per (operator, primitive width) pair.
	OpIAdd
	OpISub
	OpIMul
	OpIDiv
	OpIRem
	OpINeg
	OpLAdd
	OpLSub
	OpLMul
	OpLDiv
	OpLRem
	OpLNeg
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFRem
	OpFNeg
	OpDAdd
	OpDSub
	OpDMul
	OpDDiv
	OpDRem
	OpDNeg

	// Bitwise ops (int and long).
	OpIAnd
	OpIOr
	OpIXor
	OpIShl
	OpIShr
	OpIUShr
	OpLAnd
	OpLOr
	OpLXor
	OpLShl
	OpLShr
	OpLUShr

	// Stack manipulation.
	OpDup
	OpDupX1
	OpDupX2
	OpDup2
	OpDup2X1
	OpDup2X2
	OpSwap
	OpPop
	OpPop2

	// Locals, one opcode per (load/store, width) pair.
	OpILoad
	OpLLoad
	OpFLoad
	OpDLoad
	OpALoad
	OpIStore
	OpLStore
	OpFStore
	OpDStore
	OpAStore

	// Primitive and object array access.
	OpArrLoadI
	OpArrLoadL
	OpArrLoadF
	OpArrLoadD
	OpArrLoadA
	OpArrLoadB // byte/bool
	OpArrLoadC
	OpArrLoadS
	OpArrStoreI
	OpArrStoreL
	OpArrStoreF
	OpArrStoreD
	OpArrStoreA
	OpArrStoreB
	OpArrStoreC
	OpArrStoreS
	OpArrayLength

	// Conversions: operand encodes nothing, the opcode itself names the
	// (from, to) pair (I2L, I2F, ..., D2F).
	OpI2L
	OpI2F
	OpI2D
	OpL2I
	OpL2F
	OpL2D
	OpF2I
	OpF2L
	OpF2D
	OpD2I
	OpD2L
	OpD2F
	OpI2B
	OpI2C
	OpI2S

	// Branches.
	OpGoto
	OpIfEQ
	OpIfNE
	OpIfLT
	OpIfLE
	OpIfGT
	OpIfGE
	OpIfICmpEQ
	OpIfICmpNE
	OpIfICmpLT
	OpIfICmpLE
	OpIfICmpGT
	OpIfICmpGE

	// Switches: operand indexes into the switch-descriptor table.
	OpTableSwitch
	OpLookupSwitch

	// Calls (simplified: static dispatch only, ).
	OpInvokeStatic

	// Object/array/type model.
	OpNew
	OpANewArray
	OpMultiANewArray
	OpCheckCast
	OpInstanceOf

	// Field access: operand indexes into the field-ref table.
	OpGetStatic
	OpPutStatic
	OpGetField
	OpPutField

	// Exception scaffolding.
	OpAThrow
	OpTryStart
	OpCatchHandler
	OpFinallyHandler
	OpExceptionCheck
	OpExceptionClear

	OpHalt

	opCount
)

// Instruction is one micro-VM instruction in its wire form: op and operand
// are XOR-masked by the evolving per-program key (see EncodeProgram and
// DecodeProgram);
// nonce is carried verbatim and is available to per-opcode runtime checks
// that want an additional tamper signal, though the reference interpreter
// does not itself validate it.
type Instruction struct {
	Op      uint8
	Operand int64
	Nonce   uint64
}

// eligibleForJIT lists the opcodes the "JIT" (decode-once) variant accepts;
// anything outside this set causes JIT compilation to refuse and return an
// empty handle. Calls are notably absent: the default VM eligibility
// policy already rejects any program containing an invoke before this
// check runs, but the allow-list is kept independent of that gate so the
// JIT variant still refuses OpInvokeStatic when permissive eligibility
// admits it into a program.
var eligibleForJIT = map[Op]bool{
	OpNop: true,

	OpPushInt: true, OpPushLong: true, OpPushFloat: true, OpPushDouble: true, OpLdc: true,

	OpIAdd: true, OpISub: true, OpIMul: true, OpIDiv: true, OpIRem: true, OpINeg: true,
	OpLAdd: true, OpLSub: true, OpLMul: true, OpLDiv: true, OpLRem: true, OpLNeg: true,
	OpFAdd: true, OpFSub: true, OpFMul: true, OpFDiv: true, OpFRem: true, OpFNeg: true,
	OpDAdd: true, OpDSub: true, OpDMul: true, OpDDiv: true, OpDRem: true, OpDNeg: true,

	OpIAnd: true, OpIOr: true, OpIXor: true, OpIShl: true, OpIShr: true, OpIUShr: true,
	OpLAnd: true, OpLOr: true, OpLXor: true, OpLShl: true, OpLShr: true, OpLUShr: true,

	OpDup: true, OpDupX1: true, OpDupX2: true, OpDup2: true, OpDup2X1: true, OpDup2X2: true,
	OpSwap: true, OpPop: true, OpPop2: true,

	OpILoad: true, OpLLoad: true, OpFLoad: true, OpDLoad: true, OpALoad: true,
	OpIStore: true, OpLStore: true, OpFStore: true, OpDStore: true, OpAStore: true,

	OpArrLoadI: true, OpArrLoadL: true, OpArrLoadF: true, OpArrLoadD: true, OpArrLoadA: true,
	OpArrLoadB: true, OpArrLoadC: true, OpArrLoadS: true,
	OpArrStoreI: true, OpArrStoreL: true, OpArrStoreF: true, OpArrStoreD: true, OpArrStoreA: true,
	OpArrStoreB: true, OpArrStoreC: true, OpArrStoreS: true, OpArrayLength: true,

	OpI2L: true, OpI2F: true, OpI2D: true, OpL2I: true, OpL2F: true, OpL2D: true,
	OpF2I: true, OpF2L: true, OpF2D: true, OpD2I: true, OpD2L: true, OpD2F: true,
	OpI2B: true, OpI2C: true, OpI2S: true,

	OpGoto: true, OpIfEQ: true, OpIfNE: true, OpIfLT: true, OpIfLE: true, OpIfGT: true, OpIfGE: true,
	OpIfICmpEQ: true, OpIfICmpNE: true, OpIfICmpLT: true, OpIfICmpLE: true, OpIfICmpGT: true, OpIfICmpGE: true,
	OpTableSwitch: true, OpLookupSwitch: true,

	OpAThrow: true, OpTryStart: true, OpCatchHandler: true, OpFinallyHandler: true,
	OpExceptionCheck: true, OpExceptionClear: true,

	OpHalt: true,
}

// EligibleForJIT reports whether op belongs to the JIT variant's
// documented allow-list (arithmetic, stack ops, locals, conversions,
// primitive array access, branches, switches, constants, exception
// scaffolding, HALT — ).
func EligibleForJIT(op Op) bool {
	return eligibleForJIT[op]
}
