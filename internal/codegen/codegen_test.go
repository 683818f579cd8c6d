package codegen

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kryptid/classnative/internal/bytecode"
	"github.com/kryptid/classnative/internal/labelpool"
	"github.com/kryptid/classnative/internal/namepool"
)

func tokenFn(kind namepool.Kind, id uint32) string {
	names := map[namepool.Kind]string{
		namepool.KindStringLiteral: "strings", namepool.KindClassInternalName: "classes",
		namepool.KindMethodRef: "methods", namepool.KindFieldRef: "fields",
	}
	return fmt.Sprintf("%s[%d]", names[kind], id)
}

func newGenerator() *Generator {
	return New(labelpool.New(), namepool.New(tokenFn))
}

func TestGenerateAbsMethodProducesOneFragmentPerInstruction(t *testing.T) {
	ifGE := bytecode.NewLabel("ifge")
	end := bytecode.NewLabel("end")
	m := &bytecode.Method{
		Owner: "Main", Name: "abs", Desc: "(I)I",
		ArgTypes: []bytecode.Prim{bytecode.PrimInt}, Return: bytecode.PrimInt,
		Flags: bytecode.FlagStatic, MaxStack: 2, MaxLocals: 1,
		Code: []bytecode.Instruction{
			{Kind: bytecode.KindLoad, Prim: bytecode.PrimInt, IntImm: 0},
			{Kind: bytecode.KindIf, Cmp: bytecode.CmpGE, Target: ifGE},
			{Kind: bytecode.KindLoad, Prim: bytecode.PrimInt, IntImm: 0},
			{Kind: bytecode.KindArithmetic, Prim: bytecode.PrimInt, Arith: bytecode.ArithNeg},
			{Kind: bytecode.KindGoto, Target: end},
			{Kind: bytecode.KindLabel, Label: ifGE},
			{Kind: bytecode.KindLoad, Prim: bytecode.PrimInt, IntImm: 0},
			{Kind: bytecode.KindLabel, Label: end},
			{Kind: bytecode.KindReturn, Prim: bytecode.PrimInt},
		},
	}

	g := newGenerator()
	prog, err := g.Generate(m, nil)
	require.NoError(t, err)

	// 7 non-label instructions emitted (2 labels contribute no fragment).
	require.Len(t, prog.Order, 7)
	require.Len(t, prog.Fragments, 7)
	require.Contains(t, prog.Prologue, "Main.abs(I)I")
	require.Contains(t, prog.Epilogue, "unreachable")
}

func TestGenerateResolvesForwardBranchToSharedLabelState(t *testing.T) {
	shared := bytecode.NewLabel("shared")
	m := &bytecode.Method{
		Owner: "Main", Name: "f", Desc: "()I", Return: bytecode.PrimInt, Flags: bytecode.FlagStatic,
		Code: []bytecode.Instruction{
			{Kind: bytecode.KindGoto, Target: shared},
			{Kind: bytecode.KindConstInt, IntImm: 1},
			{Kind: bytecode.KindLabel, Label: shared},
			{Kind: bytecode.KindConstInt, IntImm: 2},
			{Kind: bytecode.KindReturn, Prim: bytecode.PrimInt},
		},
	}
	g := newGenerator()
	prog, err := g.Generate(m, nil)
	require.NoError(t, err)

	gotoFragment := prog.Fragments[prog.Order[0]]
	constTwoState := prog.Order[2]
	require.True(t, strings.Contains(gotoFragment, fmt.Sprintf("goto state_%d", constTwoState)))
}

func TestGenerateEmptyMethodHasOnlyEntryEqualSentinel(t *testing.T) {
	m := &bytecode.Method{Owner: "Main", Name: "empty", Desc: "()V", Flags: bytecode.FlagStatic}
	g := newGenerator()
	prog, err := g.Generate(m, nil)
	require.NoError(t, err)
	require.Equal(t, prog.SentinelExit, prog.EntryState)
	require.Empty(t, prog.Order)
}

func TestGenerateStringConstantInternsAndTokenizes(t *testing.T) {
	m := &bytecode.Method{
		Owner: "Main", Name: "s", Desc: "()Ljava/lang/String;", Return: bytecode.PrimRef, Flags: bytecode.FlagStatic,
		Code: []bytecode.Instruction{
			{Kind: bytecode.KindConstString, Str: "hello"},
			{Kind: bytecode.KindReturn, Prim: bytecode.PrimRef},
		},
	}
	g := newGenerator()
	prog, err := g.Generate(m, nil)
	require.NoError(t, err)
	require.Contains(t, prog.Fragments[prog.Order[0]], "strings[0]")
}

func TestGenerateDivisionEmitsZeroGuard(t *testing.T) {
	m := &bytecode.Method{
		Owner: "Main", Name: "div", Desc: "(II)I",
		ArgTypes: []bytecode.Prim{bytecode.PrimInt, bytecode.PrimInt}, Return: bytecode.PrimInt,
		Flags: bytecode.FlagStatic,
		Code: []bytecode.Instruction{
			{Kind: bytecode.KindLoad, Prim: bytecode.PrimInt, IntImm: 0},
			{Kind: bytecode.KindLoad, Prim: bytecode.PrimInt, IntImm: 1},
			{Kind: bytecode.KindArithmetic, Prim: bytecode.PrimInt, Arith: bytecode.ArithDiv},
			{Kind: bytecode.KindReturn, Prim: bytecode.PrimInt},
		},
	}
	g := newGenerator()
	prog, err := g.Generate(m, nil)
	require.NoError(t, err)
	require.Contains(t, prog.Fragments[prog.Order[2]], "throw_arithmetic_exception")
}
