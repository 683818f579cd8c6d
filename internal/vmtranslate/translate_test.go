package vmtranslate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kryptid/classnative/internal/bytecode"
	"github.com/kryptid/classnative/internal/microvm"
)

func internerStub() (Interner, map[string]uint32) {
	ids := map[string]uint32{}
	next := uint32(0)
	return func(text string) uint32 {
		if id, ok := ids[text]; ok {
			return id
		}
		ids[text] = next
		next++
		return ids[text]
	}, ids
}

// add(int,int) int: ILOAD 0; ILOAD 1; IADD; IRETURN.
func addMethod() *bytecode.Method {
	return &bytecode.Method{
		Owner: "Main", Name: "add", Desc: "(II)I",
		ArgTypes: []bytecode.Prim{bytecode.PrimInt, bytecode.PrimInt},
		Return:   bytecode.PrimInt,
		Flags:    bytecode.FlagStatic,
		Code: []bytecode.Instruction{
			{Kind: bytecode.KindLoad, Prim: bytecode.PrimInt, IntImm: 0},
			{Kind: bytecode.KindLoad, Prim: bytecode.PrimInt, IntImm: 1},
			{Kind: bytecode.KindArithmetic, Prim: bytecode.PrimInt, Arith: bytecode.ArithAdd},
			{Kind: bytecode.KindReturn},
		},
	}
}

func TestTranslateSimpleArithmeticIsEligible(t *testing.T) {
	interner, _ := internerStub()
	result, ok := Translate(addMethod(), interner, false, false)
	require.True(t, ok)
	require.Len(t, result.Code, 4)
	require.Equal(t, uint8(microvm.OpILoad), result.Code[0].Op)
	require.Equal(t, uint8(microvm.OpILoad), result.Code[1].Op)
	require.Equal(t, uint8(microvm.OpIAdd), result.Code[2].Op)
	require.Equal(t, uint8(microvm.OpHalt), result.Code[3].Op)
}

func TestTranslateRejectsInterfaceMethods(t *testing.T) {
	interner, _ := internerStub()
	_, ok := Translate(addMethod(), interner, true, false)
	require.False(t, ok)
}

func TestTranslateRejectsInvokeByDefault(t *testing.T) {
	interner, _ := internerStub()
	m := addMethod()
	m.Code = append(m.Code, bytecode.Instruction{
		Kind: bytecode.KindInvokeStatic,
		Ref:  bytecode.Ref{Owner: "Main", Name: "helper", Desc: "()V"},
	})
	_, ok := Translate(m, interner, false, false)
	require.False(t, ok)
}

func TestTranslatePermissiveModeAllowsInvoke(t *testing.T) {
	interner, _ := internerStub()
	m := addMethod()
	m.Code = []bytecode.Instruction{
		{Kind: bytecode.KindInvokeStatic, Ref: bytecode.Ref{Owner: "Main", Name: "helper", Desc: "()V"}},
		{Kind: bytecode.KindReturn},
	}
	result, ok := Translate(m, interner, false, true)
	require.True(t, ok)
	require.Len(t, result.Refs.Methods, 1)
	require.Equal(t, "helper", result.Refs.Methods[0].Name)
}

func TestTranslatePermissiveModeStillRejectsVirtualInvoke(t *testing.T) {
	interner, _ := internerStub()
	for _, kind := range []bytecode.Kind{bytecode.KindInvokeVirtual, bytecode.KindInvokeSpecial, bytecode.KindInvokeInterface} {
		m := addMethod()
		m.Code = []bytecode.Instruction{
			{Kind: kind, Ref: bytecode.Ref{Owner: "Main", Name: "helper", Desc: "()V"}},
			{Kind: bytecode.KindReturn},
		}
		_, ok := Translate(m, interner, false, true)
		require.False(t, ok, "permissive mode must still reject %v", kind)
	}
}

func TestTranslateRejectsEmptyMethod(t *testing.T) {
	interner, _ := internerStub()
	m := &bytecode.Method{Owner: "Main", Name: "empty", Desc: "()V", Flags: bytecode.FlagStatic}
	_, ok := Translate(m, interner, false, false)
	require.False(t, ok)
}

func TestTranslateResolvesForwardGoto(t *testing.T) {
	interner, _ := internerStub()
	end := bytecode.NewLabel("end")
	m := &bytecode.Method{
		Owner: "Main", Name: "f", Desc: "()I", Return: bytecode.PrimInt, Flags: bytecode.FlagStatic,
		Code: []bytecode.Instruction{
			{Kind: bytecode.KindGoto, Target: end},
			{Kind: bytecode.KindConstInt, IntImm: 999}, // skipped
			{Kind: bytecode.KindLabel, Label: end},
			{Kind: bytecode.KindConstInt, IntImm: 1},
			{Kind: bytecode.KindReturn},
		},
	}
	result, ok := Translate(m, interner, false, false)
	require.True(t, ok)
	// Goto at index 0 must target the ConstInt 1 at index 2 (label erased).
	require.Equal(t, uint8(microvm.OpGoto), result.Code[0].Op)
	require.Equal(t, int64(2), result.Code[0].Operand)
}

func TestTranslateInternsStringConstants(t *testing.T) {
	interner, ids := internerStub()
	m := &bytecode.Method{
		Owner: "Main", Name: "s", Desc: "()Ljava/lang/String;", Return: bytecode.PrimRef, Flags: bytecode.FlagStatic,
		Code: []bytecode.Instruction{
			{Kind: bytecode.KindConstString, Str: "hello"},
			{Kind: bytecode.KindReturn},
		},
	}
	result, ok := Translate(m, interner, false, false)
	require.True(t, ok)
	require.Len(t, result.Refs.Constants, 1)
	require.Equal(t, microvm.ConstString, result.Refs.Constants[0].Kind)
	require.Equal(t, ids["hello"], result.Refs.Constants[0].StringID)
}

func TestTranslateDedupsFieldReferences(t *testing.T) {
	interner, _ := internerStub()
	f := bytecode.Ref{Owner: "Main", Name: "counter", Desc: "I"}
	m := &bytecode.Method{
		Owner: "Main", Name: "bump", Desc: "()V", Flags: bytecode.FlagStatic,
		Code: []bytecode.Instruction{
			{Kind: bytecode.KindGetStatic, Ref: f},
			{Kind: bytecode.KindPutStatic, Ref: f},
			{Kind: bytecode.KindReturn},
		},
	}
	result, ok := Translate(m, interner, false, false)
	require.True(t, ok)
	require.Len(t, result.Refs.Fields, 1)
	require.Equal(t, int64(0), result.Code[0].Operand)
	require.Equal(t, int64(0), result.Code[1].Operand)
}

func TestTranslateTableSwitchResolvesAllTargetsAndDefault(t *testing.T) {
	interner, _ := internerStub()
	case0 := bytecode.NewLabel("case0")
	case1 := bytecode.NewLabel("case1")
	def := bytecode.NewLabel("default")
	m := &bytecode.Method{
		Owner: "Main", Name: "sw", Desc: "(I)I", Return: bytecode.PrimInt, Flags: bytecode.FlagStatic,
		Code: []bytecode.Instruction{
			{Kind: bytecode.KindLoad, Prim: bytecode.PrimInt, IntImm: 0},
			{Kind: bytecode.KindTableSwitch, Low: 0, High: 1, Targets: []*bytecode.Label{case0, case1}, Default: def},
			{Kind: bytecode.KindLabel, Label: case0},
			{Kind: bytecode.KindConstInt, IntImm: 100},
			{Kind: bytecode.KindReturn},
			{Kind: bytecode.KindLabel, Label: case1},
			{Kind: bytecode.KindConstInt, IntImm: 200},
			{Kind: bytecode.KindReturn},
			{Kind: bytecode.KindLabel, Label: def},
			{Kind: bytecode.KindConstInt, IntImm: 0},
			{Kind: bytecode.KindReturn},
		},
	}
	result, ok := Translate(m, interner, false, false)
	require.True(t, ok)
	require.Len(t, result.Refs.TableSwitch, 1)
	desc := result.Refs.TableSwitch[0]
	require.Equal(t, []int{2, 4}, desc.Targets)
	require.Equal(t, 6, desc.Default)
}
