package microvm

import (
	"math"

	"github.com/kryptid/classnative/internal/bytecode"
	"github.com/kryptid/classnative/internal/nativefault"
)

// stackCapacity is the fixed operand-stack size  specifies: "a
// 256-slot 64-bit operand stack".
const stackCapacity = 256

// arrayObject is the interpreter's own backing store for arrays created
// by ANEWARRAY/MULTIANEWARRAY (: "array ops (primitive and object
// load/store)" are interpreter-owned; only class-model operations are
// delegated to Host).
type arrayObject struct {
	elem bytecode.Prim
	data []uint64
}

// heap holds every array object created during one call engine's
// lifetime; a Ref is its 1-based index (0 is null), mirroring how
// wazero's table/memory model uses 0 as a sentinel absent value.
type heap struct {
	objects []*arrayObject
}

func (h *heap) alloc(elem bytecode.Prim, length int32) (int64, error) {
	if length < 0 {
		return 0, nativefault.ErrNegativeArraySize
	}
	obj := &arrayObject{elem: elem, data: make([]uint64, length)}
	h.objects = append(h.objects, obj)
	return int64(len(h.objects)), nil
}

func (h *heap) get(ref int64) (*arrayObject, error) {
	if ref <= 0 || int(ref) > len(h.objects) {
		return nil, nativefault.ErrNullPointer
	}
	return h.objects[ref-1], nil
}

// CallEngine holds the per-call mutable state for one micro-VM program
// execution: the operand stack, the caller-provided locals, and the
// interpreter-owned array heap. A fresh CallEngine is created per
// invocation, mirroring wazero's callEngine being created per
// moduleEngine.Call.
type CallEngine struct {
	stack  [stackCapacity]uint64
	sp     int
	locals []uint64
	heap   heap

	exception int64 // 0 = none; opaque Host-side object ref otherwise
}

// NewCallEngine allocates a call engine with the given locals array
// (already populated with the bit-exact argument conversions 
// describes).
func NewCallEngine(locals []uint64) *CallEngine {
	return &CallEngine{locals: locals}
}

func (ce *CallEngine) push(v uint64) {
	if ce.sp >= stackCapacity {
		panic(nativefault.ErrStackOverflow)
	}
	ce.stack[ce.sp] = v
	ce.sp++
}

func (ce *CallEngine) pop() uint64 {
	ce.sp--
	return ce.stack[ce.sp]
}

func (ce *CallEngine) peek() uint64 { return ce.stack[ce.sp-1] }

func (ce *CallEngine) pushI32(v int32)     { ce.push(uint64(uint32(v))) }
func (ce *CallEngine) popI32() int32       { return int32(uint32(ce.pop())) }
func (ce *CallEngine) pushI64(v int64)     { ce.push(uint64(v)) }
func (ce *CallEngine) popI64() int64       { return int64(ce.pop()) }
func (ce *CallEngine) pushF32(v float32)   { ce.push(uint64(math.Float32bits(v))) }
func (ce *CallEngine) popF32() float32     { return math.Float32frombits(uint32(ce.pop())) }
func (ce *CallEngine) pushF64(v float64)   { ce.push(math.Float64bits(v)) }
func (ce *CallEngine) popF64() float64     { return math.Float64frombits(ce.pop()) }

// Run executes an encoded program step by step, decoding each instruction
// from its position rather than materializing a decoded copy up front —
// the "interpreter" variant of . host may be nil for programs known
// not to touch NEW/field-access/INVOKESTATIC (the common case, since
// default eligibility already excludes invokes).
func (ce *CallEngine) Run(code []Instruction, seed uint64, refs *RefTables, host Host) (result uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	pc := 0
	for pc < len(code) {
		decoded := decodeStep(code[pc], pc, seed)
		next, halted := ce.step(decoded, pc, refs, host)
		if halted {
			return ce.peek(), nil
		}
		pc = next
	}
	return 0, nil
}

// RunJIT decodes the whole program once into a plain []DecodedInstruction
// and then dispatches — the "JIT" variant of . If any opcode in the
// program falls outside the JIT allow-list it refuses: nothing is executed
// and it returns an empty result (0) with a nil error.
func (ce *CallEngine) RunJIT(code []Instruction, seed uint64, refs *RefTables, host Host) (result uint64, err error) {
	decoded := DecodeAll(code, seed)
	for _, d := range decoded {
		if !EligibleForJIT(d.Op) {
			return 0, nil
		}
	}

	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	pc := 0
	for pc < len(decoded) {
		next, halted := ce.step(decoded[pc], pc, refs, host)
		if halted {
			return ce.peek(), nil
		}
		pc = next
	}
	return 0, nil
}

// step executes one decoded instruction at program position pc and
// returns the next pc to run plus whether execution halted (RETURN-family
// or HALT). Control-flow opcodes set pc themselves; everything else falls
// through to pc+1, matching the dispatch rule in  ("while pc < len,
// decode (op, operand), increment pc, then jump by opcode").
func (ce *CallEngine) step(d DecodedInstruction, pc int, refs *RefTables, host Host) (next int, halted bool) {
	next = pc + 1

	switch d.Op {
	case OpNop:

	case OpPushInt:
		ce.pushI32(int32(d.Operand))
	case OpPushLong:
		ce.pushI64(d.Operand)
	case OpPushFloat:
		ce.pushF32(math.Float32frombits(uint32(d.Operand)))
	case OpPushDouble:
		ce.pushF64(math.Float64frombits(uint64(d.Operand)))
	case OpLdc:
		ce.execLdc(refs.Constants[d.Operand])

	case OpIAdd:
		b, a := ce.popI32(), ce.popI32()
		ce.pushI32(a + b)
	case OpISub:
		b, a := ce.popI32(), ce.popI32()
		ce.pushI32(a - b)
	case OpIMul:
		b, a := ce.popI32(), ce.popI32()
		ce.pushI32(a * b)
	case OpIDiv:
		b, a := ce.popI32(), ce.popI32()
		if b == 0 {
			panic(nativefault.ErrDivideByZero)
		}
		ce.pushI32(a / b)
	case OpIRem:
		b, a := ce.popI32(), ce.popI32()
		if b == 0 {
			panic(nativefault.ErrDivideByZero)
		}
		ce.pushI32(a % b)
	case OpINeg:
		ce.pushI32(-ce.popI32())

	case OpLAdd:
		b, a := ce.popI64(), ce.popI64()
		ce.pushI64(a + b)
	case OpLSub:
		b, a := ce.popI64(), ce.popI64()
		ce.pushI64(a - b)
	case OpLMul:
		b, a := ce.popI64(), ce.popI64()
		ce.pushI64(a * b)
	case OpLDiv:
		b, a := ce.popI64(), ce.popI64()
		if b == 0 {
			panic(nativefault.ErrDivideByZero)
		}
		ce.pushI64(a / b)
	case OpLRem:
		b, a := ce.popI64(), ce.popI64()
		if b == 0 {
			panic(nativefault.ErrDivideByZero)
		}
		ce.pushI64(a % b)
	case OpLNeg:
		ce.pushI64(-ce.popI64())

	case OpFAdd:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(a + b)
	case OpFSub:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(a - b)
	case OpFMul:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(a * b)
	case OpFDiv:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(a / b)
	case OpFRem:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(float32(math.Mod(float64(a), float64(b))))
	case OpFNeg:
		ce.pushF32(-ce.popF32())

	case OpDAdd:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(a + b)
	case OpDSub:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(a - b)
	case OpDMul:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(a * b)
	case OpDDiv:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(a / b)
	case OpDRem:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(math.Mod(a, b))
	case OpDNeg:
		ce.pushF64(-ce.popF64())

	case OpIAnd:
		b, a := ce.popI32(), ce.popI32()
		ce.pushI32(a & b)
	case OpIOr:
		b, a := ce.popI32(), ce.popI32()
		ce.pushI32(a | b)
	case OpIXor:
		b, a := ce.popI32(), ce.popI32()
		ce.pushI32(a ^ b)
	case OpIShl:
		b, a := ce.popI32(), ce.popI32()
		ce.pushI32(a << (uint32(b) & 31))
	case OpIShr:
		b, a := ce.popI32(), ce.popI32()
		ce.pushI32(a >> (uint32(b) & 31))
	case OpIUShr:
		b, a := ce.popI32(), ce.popI32()
		ce.pushI32(int32(uint32(a) >> (uint32(b) & 31)))

	case OpLAnd:
		b, a := ce.popI64(), ce.popI64()
		ce.pushI64(a & b)
	case OpLOr:
		b, a := ce.popI64(), ce.popI64()
		ce.pushI64(a | b)
	case OpLXor:
		b, a := ce.popI64(), ce.popI64()
		ce.pushI64(a ^ b)
	case OpLShl:
		b, a := ce.popI32(), ce.popI64()
		ce.pushI64(a << (uint32(b) & 63))
	case OpLShr:
		b, a := ce.popI32(), ce.popI64()
		ce.pushI64(a >> (uint32(b) & 63))
	case OpLUShr:
		b, a := ce.popI32(), ce.popI64()
		ce.pushI64(int64(uint64(a) >> (uint32(b) & 63)))

	case OpDup:
		ce.push(ce.peek())
	case OpDupX1:
		v1, v2 := ce.pop(), ce.pop()
		ce.push(v1)
		ce.push(v2)
		ce.push(v1)
	case OpDupX2:
		v1, v2, v3 := ce.pop(), ce.pop(), ce.pop()
		ce.push(v1)
		ce.push(v3)
		ce.push(v2)
		ce.push(v1)
	case OpDup2:
		v1, v2 := ce.pop(), ce.pop()
		ce.push(v2)
		ce.push(v1)
		ce.push(v2)
		ce.push(v1)
	case OpDup2X1:
		v1, v2, v3 := ce.pop(), ce.pop(), ce.pop()
		ce.push(v2)
		ce.push(v1)
		ce.push(v3)
		ce.push(v2)
		ce.push(v1)
	case OpDup2X2:
		v1, v2, v3, v4 := ce.pop(), ce.pop(), ce.pop(), ce.pop()
		ce.push(v2)
		ce.push(v1)
		ce.push(v4)
		ce.push(v3)
		ce.push(v2)
		ce.push(v1)
	case OpSwap:
		v1, v2 := ce.pop(), ce.pop()
		ce.push(v1)
		ce.push(v2)
	case OpPop:
		ce.pop()
	case OpPop2:
		ce.pop()
		ce.pop()

	case OpILoad, OpFLoad, OpALoad:
		ce.push(ce.locals[d.Operand])
	case OpLLoad, OpDLoad:
		ce.push(ce.locals[d.Operand])
	case OpIStore, OpFStore, OpAStore:
		ce.locals[d.Operand] = ce.pop()
	case OpLStore, OpDStore:
		ce.locals[d.Operand] = ce.pop()

	case OpArrLoadI, OpArrLoadF, OpArrLoadL, OpArrLoadD, OpArrLoadA,
		OpArrLoadB, OpArrLoadC, OpArrLoadS:
		idx := ce.popI32()
		ref := ce.popI64()
		obj, e := ce.heap.get(ref)
		if e != nil {
			panic(e)
		}
		if idx < 0 || int(idx) >= len(obj.data) {
			panic(nativefault.ErrArrayIndexOutOfBounds)
		}
		ce.push(obj.data[idx])
	case OpArrStoreI, OpArrStoreF, OpArrStoreL, OpArrStoreD, OpArrStoreA,
		OpArrStoreB, OpArrStoreC, OpArrStoreS:
		v := ce.pop()
		idx := ce.popI32()
		ref := ce.popI64()
		obj, e := ce.heap.get(ref)
		if e != nil {
			panic(e)
		}
		if idx < 0 || int(idx) >= len(obj.data) {
			panic(nativefault.ErrArrayIndexOutOfBounds)
		}
		obj.data[idx] = v
	case OpArrayLength:
		ref := ce.popI64()
		obj, e := ce.heap.get(ref)
		if e != nil {
			panic(e)
		}
		ce.pushI32(int32(len(obj.data)))

	case OpI2L:
		ce.pushI64(int64(ce.popI32()))
	case OpI2F:
		ce.pushF32(float32(ce.popI32()))
	case OpI2D:
		ce.pushF64(float64(ce.popI32()))
	case OpL2I:
		ce.pushI32(int32(ce.popI64()))
	case OpL2F:
		ce.pushF32(float32(ce.popI64()))
	case OpL2D:
		ce.pushF64(float64(ce.popI64()))
	case OpF2I:
		ce.pushI32(f2i32(ce.popF32()))
	case OpF2L:
		ce.pushI64(f2i64(float64(ce.popF32())))
	case OpF2D:
		ce.pushF64(float64(ce.popF32()))
	case OpD2I:
		ce.pushI32(f2i32(float32(ce.popF64())))
	case OpD2L:
		ce.pushI64(f2i64(ce.popF64()))
	case OpD2F:
		ce.pushF32(float32(ce.popF64()))
	case OpI2B:
		ce.pushI32(int32(int8(ce.popI32())))
	case OpI2C:
		ce.pushI32(int32(uint16(ce.popI32())))
	case OpI2S:
		ce.pushI32(int32(int16(ce.popI32())))

	case OpGoto:
		return int(d.Operand), false

	case OpIfEQ:
		if ce.popI32() == 0 {
			return int(d.Operand), false
		}
	case OpIfNE:
		if ce.popI32() != 0 {
			return int(d.Operand), false
		}
	case OpIfLT:
		if ce.popI32() < 0 {
			return int(d.Operand), false
		}
	case OpIfLE:
		if ce.popI32() <= 0 {
			return int(d.Operand), false
		}
	case OpIfGT:
		if ce.popI32() > 0 {
			return int(d.Operand), false
		}
	case OpIfGE:
		if ce.popI32() >= 0 {
			return int(d.Operand), false
		}

	case OpIfICmpEQ, OpIfICmpNE, OpIfICmpLT, OpIfICmpLE, OpIfICmpGT, OpIfICmpGE:
		b, a := ce.popI32(), ce.popI32()
		taken := false
		switch d.Op {
		case OpIfICmpEQ:
			taken = a == b
		case OpIfICmpNE:
			taken = a != b
		case OpIfICmpLT:
			taken = a < b
		case OpIfICmpLE:
			taken = a <= b
		case OpIfICmpGT:
			taken = a > b
		case OpIfICmpGE:
			taken = a >= b
		}
		if taken {
			return int(d.Operand), false
		}

	case OpTableSwitch:
		desc := refs.TableSwitch[d.Operand]
		v := ce.popI32()
		if v < desc.Low || v > desc.High {
			return desc.Default, false
		}
		return desc.Targets[v-desc.Low], false

	case OpLookupSwitch:
		desc := refs.LookupSwitch[d.Operand]
		v := ce.popI32()
		for i, k := range desc.Keys {
			if k == v {
				return desc.Targets[i], false
			}
		}
		return desc.Default, false

	case OpInvokeStatic:
		m := refs.Methods[d.Operand]
		if host == nil {
			panic(nativefault.ErrNullPointer)
		}
		// Simplified static dispatch: no values are popped for the
		// callee's parameters and the host receives a nil argument
		// slice; only the host's results are pushed.
		results, err := host.InvokeStatic(m, nil)
		if err != nil {
			panic(err)
		}
		for _, r := range results {
			ce.push(r)
		}

	case OpNew:
		class := refs.Classes[d.Operand]
		if host == nil {
			panic(nativefault.ErrNullPointer)
		}
		ref, err := host.New(class)
		if err != nil {
			panic(err)
		}
		ce.pushI64(ref)
	case OpANewArray:
		length := ce.popI32()
		ref, err := ce.heap.alloc(bytecode.PrimRef, length)
		if err != nil {
			panic(err)
		}
		ce.pushI64(ref)
	case OpMultiANewArray:
		info := refs.MultiArrays[d.Operand]
		ref := ce.allocMultiArray(info)
		ce.pushI64(ref)
	case OpCheckCast:
		ref := ce.popI64()
		class := refs.Classes[d.Operand]
		if ref != 0 && host != nil {
			if err := host.CheckCast(ref, class); err != nil {
				panic(err)
			}
		}
		ce.pushI64(ref)
	case OpInstanceOf:
		ref := ce.popI64()
		class := refs.Classes[d.Operand]
		if ref == 0 || host == nil {
			ce.pushI32(0)
		} else if host.InstanceOf(ref, class) {
			ce.pushI32(1)
		} else {
			ce.pushI32(0)
		}

	case OpGetStatic:
		f := refs.Fields[d.Operand]
		v, err := host.GetStatic(f)
		if err != nil {
			panic(err)
		}
		ce.push(v)
	case OpPutStatic:
		f := refs.Fields[d.Operand]
		if err := host.PutStatic(f, ce.pop()); err != nil {
			panic(err)
		}
	case OpGetField:
		f := refs.Fields[d.Operand]
		ref := ce.popI64()
		if ref == 0 {
			panic(nativefault.ErrNullPointer)
		}
		v, err := host.GetField(ref, f)
		if err != nil {
			panic(err)
		}
		ce.push(v)
	case OpPutField:
		f := refs.Fields[d.Operand]
		v := ce.pop()
		ref := ce.popI64()
		if ref == 0 {
			panic(nativefault.ErrNullPointer)
		}
		if err := host.PutField(ref, f, v); err != nil {
			panic(err)
		}

	case OpAThrow:
		ce.exception = ce.popI64()
		panic(nativefault.ErrUserThrow) // caller-level catch resolution inspects ce.exception

	case OpTryStart, OpFinallyHandler:
		// Scaffolding markers only; the state-machine/VM code around them
		// encodes the actual protected-region/handler wiring as branch
		// targets (internal/trycatch). Nothing to execute here.
	case OpCatchHandler:
		ce.pushI64(ce.exception)
		ce.exception = 0
	case OpExceptionCheck:
		if ce.exception != 0 {
			ce.pushI32(1)
		} else {
			ce.pushI32(0)
		}
	case OpExceptionClear:
		ce.exception = 0

	case OpHalt:
		return pc, true

	default:
		panic(nativefault.ErrUnreachableState)
	}

	return next, false
}

func (ce *CallEngine) allocMultiArray(info MultiArrayInfo) int64 {
	// MULTIANEWARRAY with dim == required-count terminates at leaf arrays
	// without recursing further: the dimension lengths are popped off the
	// stack (the last-pushed length is the innermost dimension), then
	// buildDims allocates the outermost array first and fills each of its
	// slots with a freshly built inner array.
	lengths := make([]int32, info.Dims)
	for i := info.Dims - 1; i >= 0; i-- {
		lengths[i] = ce.popI32()
	}
	return ce.buildDims(lengths)
}

func (ce *CallEngine) buildDims(lengths []int32) int64 {
	n := lengths[0]
	if n < 0 {
		panic(nativefault.ErrNegativeArraySize)
	}
	ref, err := ce.heap.alloc(bytecode.PrimRef, n)
	if err != nil {
		panic(err)
	}
	if len(lengths) == 1 {
		return ref
	}
	obj, _ := ce.heap.get(ref)
	for i := range obj.data {
		obj.data[i] = uint64(ce.buildDims(lengths[1:]))
	}
	return ref
}

func f2i32(f float32) int32 {
	if f != f { // NaN
		return 0
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	if f <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(f)
}

func f2i64(f float64) int64 {
	if f != f {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}

func (ce *CallEngine) execLdc(c ConstantPoolEntry) {
	switch c.Kind {
	case ConstInteger:
		ce.pushI32(c.IntVal)
	case ConstFloat:
		ce.pushF32(c.FloatVal)
	case ConstLong:
		ce.pushI64(c.LongVal)
	case ConstDouble:
		ce.pushF64(c.DoubleVal)
	case ConstString:
		ce.push(uint64(c.StringID))
	case ConstClass:
		ce.push(uint64(c.ClassIndex))
	}
}
