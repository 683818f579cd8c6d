package microvm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestArithmeticOverflowRoundTrip is scenario 1 of the design notes's  (via
// the original notes): compile int add(int a, int b) { return a + b; } through the
// VM path with seed 0xDEADBEEF; calling with (2_147_483_640, 10) yields
// -2_147_483_646 (two's-complement overflow), whether decoded all at once
// (RunJIT) or per step (Run).
func TestArithmeticOverflowRoundTrip(t *testing.T) {
	plain := []Instruction{
		{Op: uint8(OpILoad), Operand: 0},
		{Op: uint8(OpILoad), Operand: 1},
		{Op: uint8(OpIAdd)},
		{Op: uint8(OpHalt)},
	}
	const seed = 0xDEADBEEF
	encoded := make([]Instruction, len(plain))
	copy(encoded, plain)
	EncodeProgram(encoded, seed)

	locals := []uint64{uint64(uint32(int32(2147483640))), uint64(uint32(int32(10)))}

	ce := NewCallEngine(locals)
	result, err := ce.Run(encoded, seed, &RefTables{}, nil)
	require.NoError(t, err)
	require.Equal(t, int32(-2147483646), int32(uint32(result)))

	ce2 := NewCallEngine(append([]uint64{}, locals...))
	result2, err := ce2.RunJIT(encoded, seed, &RefTables{}, nil)
	require.NoError(t, err)
	require.Equal(t, result, result2)
}

// TestFloatBitcastRoundTrip is scenario 2: compile float id(float x) {
// return x; }; calling with Float.intBitsToFloat(0x7FC00001) returns a
// float whose raw int bits equal 0x7FC00001 — i.e. NaN payload survives.
func TestFloatBitcastRoundTrip(t *testing.T) {
	plain := []Instruction{
		{Op: uint8(OpFLoad), Operand: 0},
		{Op: uint8(OpHalt)},
	}
	const seed = 42
	encoded := make([]Instruction, len(plain))
	copy(encoded, plain)
	EncodeProgram(encoded, seed)

	x := math.Float32frombits(0x7FC00001)
	ce := NewCallEngine([]uint64{uint64(math.Float32bits(x))})
	result, err := ce.Run(encoded, seed, &RefTables{}, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(0x7FC00001), uint32(result))
}

func TestDivideByZeroFaults(t *testing.T) {
	plain := []Instruction{
		{Op: uint8(OpPushInt), Operand: 1},
		{Op: uint8(OpPushInt), Operand: 0},
		{Op: uint8(OpIDiv)},
		{Op: uint8(OpHalt)},
	}
	EncodeProgram(plain, 9)
	ce := NewCallEngine(nil)
	_, err := ce.Run(plain, 9, &RefTables{}, nil)
	require.Error(t, err)
}

func TestArrayBoundsFault(t *testing.T) {
	ce := NewCallEngine(nil)
	ref, err := ce.heap.alloc(0, 3)
	require.NoError(t, err)

	code := []Instruction{
		{Op: uint8(OpPushLong), Operand: ref},
		{Op: uint8(OpPushInt), Operand: 5},
		{Op: uint8(OpArrLoadI)},
		{Op: uint8(OpHalt)},
	}
	EncodeProgram(code, 3)
	_, err = ce.Run(code, 3, &RefTables{}, nil)
	require.Error(t, err)
}

func TestMultiANewArrayTerminatesAtLeaves(t *testing.T) {
	ce := NewCallEngine(nil)
	code := []Instruction{
		{Op: uint8(OpPushInt), Operand: 2},
		{Op: uint8(OpPushInt), Operand: 3},
		{Op: uint8(OpMultiANewArray), Operand: 0},
		{Op: uint8(OpHalt)},
	}
	refs := &RefTables{MultiArrays: []MultiArrayInfo{{Desc: "[[I", Dims: 2}}}
	EncodeProgram(code, 5)
	result, err := ce.Run(code, 5, refs, nil)
	require.NoError(t, err)

	outer, err := ce.heap.get(int64(result))
	require.NoError(t, err)
	require.Len(t, outer.data, 2)
	inner, err := ce.heap.get(int64(outer.data[0]))
	require.NoError(t, err)
	require.Len(t, inner.data, 3)
}

func TestTableSwitchDefaultAndMatch(t *testing.T) {
	refs := &RefTables{TableSwitch: []TableSwitchDescriptor{
		{Low: 0, High: 1, Targets: []int{5, 6}, Default: 7},
	}}
	code := make([]Instruction, 8)
	code[0] = Instruction{Op: uint8(OpPushInt), Operand: 0}
	code[1] = Instruction{Op: uint8(OpTableSwitch), Operand: 0}
	code[5] = Instruction{Op: uint8(OpPushInt), Operand: 100}
	code[6] = Instruction{Op: uint8(OpGoto), Operand: 99}
	code[7] = Instruction{Op: uint8(OpPushInt), Operand: 999}

	full := append(code, Instruction{Op: uint8(OpHalt)})
	// goto 99 above is a deliberately out-of-range placeholder replaced
	// below once the halt position is known.
	full[6].Operand = int64(len(full) - 1)

	EncodeProgram(full, 11)
	ce := NewCallEngine(nil)
	result, err := ce.Run(full, 11, refs, nil)
	require.NoError(t, err)
	require.Equal(t, int32(100), int32(uint32(result)))

	// A key outside [Low, High] takes the default target, which pushes 999
	// and falls through to the halt.
	dflt := append(append([]Instruction{}, code...), Instruction{Op: uint8(OpHalt)})
	dflt[0].Operand = 5
	EncodeProgram(dflt, 11)
	result, err = NewCallEngine(nil).Run(dflt, 11, refs, nil)
	require.NoError(t, err)
	require.Equal(t, int32(999), int32(uint32(result)))
}
