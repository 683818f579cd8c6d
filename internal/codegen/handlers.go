package codegen

import (
	"fmt"

	"github.com/kryptid/classnative/internal/bytecode"
	"github.com/kryptid/classnative/internal/namepool"
)

func label(self int32) string { return fmt.Sprintf("state_%d:", self) }

func emitNop(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return label(self), false
}

func emitConstInt(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\toperand_stack[sp++] = box_int((int32_t)%d);", label(self), ins.IntImm), false
}

func emitConstLong(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\toperand_stack[sp++] = box_long((int64_t)%dLL);", label(self), ins.IntImm), false
}

func emitConstFloat(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\toperand_stack[sp++] = box_float_bits(%d /* %g */);", label(self), floatBits(ins.Float32), ins.Float32), false
}

func emitConstDouble(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\toperand_stack[sp++] = box_double_bits(%dLL /* %g */);", label(self), doubleBits(ins.Float64), ins.Float64), false
}

func emitConstString(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	id := g.Names.Intern(namepool.KindStringLiteral, ins.Str)
	return fmt.Sprintf("%s\n\toperand_stack[sp++] = box_ref(%s);", label(self), g.Names.Token(namepool.KindStringLiteral, id)), false
}

func emitConstNull(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\toperand_stack[sp++] = box_ref(NULL);", label(self)), false
}

func emitLoad(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\toperand_stack[sp++] = locals[%d];", label(self), ins.IntImm), false
}

func emitStore(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\tlocals[%d] = operand_stack[--sp];", label(self), ins.IntImm), false
}

var arithSymbol = map[bytecode.ArithOp]string{
	bytecode.ArithAdd: "+", bytecode.ArithSub: "-", bytecode.ArithMul: "*",
	bytecode.ArithDiv: "/", bytecode.ArithRem: "%",
	bytecode.ArithAnd: "&", bytecode.ArithOr: "|", bytecode.ArithXor: "^",
	bytecode.ArithShl: "<<", bytecode.ArithShr: ">>", bytecode.ArithUShr: ">>>",
}

var primField = map[bytecode.Prim]string{
	bytecode.PrimInt: "i32", bytecode.PrimLong: "i64",
	bytecode.PrimFloat: "f32", bytecode.PrimDouble: "f64",
}

func emitArithmetic(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	field := primField[ins.Prim]
	sym := arithSymbol[ins.Arith]
	if ins.Arith == bytecode.ArithNeg {
		return fmt.Sprintf("%s\n\toperand_stack[sp-1].%s = -operand_stack[sp-1].%s;", label(self), field, field), false
	}
	faultGuard := ""
	if ins.Arith == bytecode.ArithDiv || ins.Arith == bytecode.ArithRem {
		faultGuard = fmt.Sprintf("\n\tif (operand_stack[sp-1].%s == 0) { throw_arithmetic_exception(env); return 0; }", field)
	}
	return fmt.Sprintf("%s%s\n\toperand_stack[sp-2].%s = operand_stack[sp-2].%s %s operand_stack[sp-1].%s;\n\tsp--;",
		label(self), faultGuard, field, field, sym, field), false
}

var convSuffix = map[bytecode.ConvOp]struct{ from, to, cast string }{
	bytecode.ConvI2L: {"i32", "i64", "(int64_t)"}, bytecode.ConvI2F: {"i32", "f32", "(float)"},
	bytecode.ConvI2D: {"i32", "f64", "(double)"}, bytecode.ConvL2I: {"i64", "i32", "(int32_t)"},
	bytecode.ConvL2F: {"i64", "f32", "(float)"}, bytecode.ConvL2D: {"i64", "f64", "(double)"},
	bytecode.ConvF2I: {"f32", "i32", "f2i32"}, bytecode.ConvF2L: {"f32", "i64", "f2i64"},
	bytecode.ConvF2D: {"f32", "f64", "(double)"}, bytecode.ConvD2I: {"f64", "i32", "d2i32"},
	bytecode.ConvD2L: {"f64", "i64", "d2i64"}, bytecode.ConvD2F: {"f64", "f32", "(float)"},
	bytecode.ConvI2B: {"i32", "i32", "(int8_t)"}, bytecode.ConvI2C: {"i32", "i32", "(uint16_t)"},
	bytecode.ConvI2S: {"i32", "i32", "(int16_t)"},
}

func emitConvert(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	c := convSuffix[ins.Conv]
	return fmt.Sprintf("%s\n\toperand_stack[sp-1].%s = %s(operand_stack[sp-1].%s);", label(self), c.to, c.cast, c.from), false
}

func emitStackOp(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	switch ins.StackOp {
	case bytecode.StackPop:
		return fmt.Sprintf("%s\n\tsp--;", label(self)), false
	case bytecode.StackPop2:
		return fmt.Sprintf("%s\n\tsp -= 2;", label(self)), false
	case bytecode.StackDup:
		return fmt.Sprintf("%s\n\toperand_stack[sp] = operand_stack[sp-1]; sp++;", label(self)), false
	case bytecode.StackSwap:
		return fmt.Sprintf("%s\n\tvalue_t tmp = operand_stack[sp-1]; operand_stack[sp-1] = operand_stack[sp-2]; operand_stack[sp-2] = tmp;", label(self)), false
	default:
		return fmt.Sprintf("%s\n\tstack_op_%d(operand_stack, &sp);", label(self), int(ins.StackOp)), false
	}
}

var arrayElemField = map[bytecode.Prim]string{
	bytecode.PrimInt: "i32", bytecode.PrimLong: "i64", bytecode.PrimFloat: "f32",
	bytecode.PrimDouble: "f64", bytecode.PrimRef: "ref", bytecode.PrimBool: "i32",
	bytecode.PrimByte: "i32", bytecode.PrimChar: "i32", bytecode.PrimShort: "i32",
}

func emitArrayLoad(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	field := arrayElemField[ins.Prim]
	return fmt.Sprintf("%s\n\tsp--;\n\toperand_stack[sp-1].%s = array_get_%s(env, operand_stack[sp-1].ref, operand_stack[sp].i32);",
		label(self), field, field), false
}

func emitArrayStore(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	field := arrayElemField[ins.Prim]
	return fmt.Sprintf("%s\n\tarray_set_%s(env, operand_stack[sp-3].ref, operand_stack[sp-2].i32, operand_stack[sp-1].%s);\n\tsp -= 3;",
		label(self), field, field), false
}

func emitNew(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	id := g.Names.Intern(namepool.KindClassInternalName, ins.ArrType)
	return fmt.Sprintf("%s\n\toperand_stack[sp++] = box_ref(alloc_object(env, %s));", label(self), g.Names.Token(namepool.KindClassInternalName, id)), false
}

func emitANewArray(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	id := g.Names.Intern(namepool.KindClassInternalName, ins.ArrType)
	return fmt.Sprintf("%s\n\toperand_stack[sp-1] = box_ref(alloc_array(env, %s, operand_stack[sp-1].i32));", label(self), g.Names.Token(namepool.KindClassInternalName, id)), false
}

func emitMultiANewArray(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\t{\n\tint dims[%d];\n\tfor (int d = %d - 1; d >= 0; d--) { dims[d] = operand_stack[--sp].i32; }\n\toperand_stack[sp++] = box_ref(alloc_multi_array(env, %q, %d, dims));\n\t}",
		label(self), ins.Dims, ins.Dims, ins.ArrType, ins.Dims), false
}

func emitCheckCast(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	id := g.Names.Intern(namepool.KindClassInternalName, ins.ArrType)
	return fmt.Sprintf("%s\n\tcheck_cast(env, operand_stack[sp-1].ref, %s);", label(self), g.Names.Token(namepool.KindClassInternalName, id)), false
}

func emitInstanceOf(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	id := g.Names.Intern(namepool.KindClassInternalName, ins.ArrType)
	return fmt.Sprintf("%s\n\toperand_stack[sp-1] = box_int(instance_of(env, operand_stack[sp-1].ref, %s));", label(self), g.Names.Token(namepool.KindClassInternalName, id)), false
}

func fieldToken(g *Generator, r bytecode.Ref) string {
	id := g.Names.Intern(namepool.KindFieldRef, r.Owner+"."+r.Name+":"+r.Desc)
	return g.Names.Token(namepool.KindFieldRef, id)
}

func emitGetStatic(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\toperand_stack[sp++] = get_static(env, %s);", label(self), fieldToken(g, ins.Ref)), false
}

func emitPutStatic(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\tput_static(env, %s, operand_stack[--sp]);", label(self), fieldToken(g, ins.Ref)), false
}

func emitGetField(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\toperand_stack[sp-1] = get_field(env, operand_stack[sp-1].ref, %s);", label(self), fieldToken(g, ins.Ref)), false
}

func emitPutField(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\tput_field(env, operand_stack[sp-2].ref, %s, operand_stack[sp-1]);\n\tsp -= 2;", label(self), fieldToken(g, ins.Ref)), false
}

func emitInvoke(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	id := g.Names.Intern(namepool.KindMethodRef, ins.Ref.Owner+"."+ins.Ref.Name+ins.Ref.Desc)
	return fmt.Sprintf("%s\n\tinvoke_dynamic(env, %s, operand_stack, &sp);", label(self), g.Names.Token(namepool.KindMethodRef, id)), false
}

func emitGoto(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	return fmt.Sprintf("%s\n\tgoto state_%d;", label(self), g.resolveLabel(ins.Target)), true
}

var cmpSymbol = map[bytecode.CmpOp]string{
	bytecode.CmpEQ: "==", bytecode.CmpNE: "!=", bytecode.CmpLT: "<",
	bytecode.CmpLE: "<=", bytecode.CmpGT: ">", bytecode.CmpGE: ">=",
}

func emitIf(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	target := g.resolveLabel(ins.Target)
	return fmt.Sprintf("%s\n\tif (operand_stack[--sp].i32 %s 0) { goto state_%d; }\n\tgoto state_%d;",
		label(self), cmpSymbol[ins.Cmp], target, next), true
}

func emitIfCmp(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	target := g.resolveLabel(ins.Target)
	return fmt.Sprintf("%s\n\tsp -= 2;\n\tif (operand_stack[sp].i32 %s operand_stack[sp+1].i32) { goto state_%d; }\n\tgoto state_%d;",
		label(self), cmpSymbol[ins.Cmp], target, next), true
}

func emitTableSwitch(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	body := fmt.Sprintf("%s\n\t{\n\tint32_t key = operand_stack[--sp].i32;\n\tswitch (key) {", label(self))
	for i, tgt := range ins.Targets {
		body += fmt.Sprintf("\n\tcase %d: goto state_%d;", ins.Low+int32(i), g.resolveLabel(tgt))
	}
	body += fmt.Sprintf("\n\tdefault: goto state_%d;\n\t}\n\t}", g.resolveLabel(ins.Default))
	return body, true
}

func emitLookupSwitch(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	body := fmt.Sprintf("%s\n\t{\n\tint32_t key = operand_stack[--sp].i32;\n\tswitch (key) {", label(self))
	for _, c := range ins.Cases {
		body += fmt.Sprintf("\n\tcase %d: goto state_%d;", c.Key, g.resolveLabel(c.Target))
	}
	body += fmt.Sprintf("\n\tdefault: goto state_%d;\n\t}\n\t}", g.resolveLabel(ins.Default))
	return body, true
}

func emitReturn(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	if ins.Kind == bytecode.KindHalt {
		return fmt.Sprintf("%s\n\treturn;", label(self)), true
	}
	if ins.Prim == bytecode.PrimRef {
		return fmt.Sprintf("%s\n\treturn (sp > 0) ? operand_stack[sp-1].ref : NULL;", label(self)), true
	}
	field := primField[ins.Prim]
	if field == "" {
		return fmt.Sprintf("%s\n\treturn;", label(self)), true
	}
	return fmt.Sprintf("%s\n\treturn (sp > 0) ? operand_stack[sp-1].%s : 0;", label(self), field), true
}

func emitAThrow(g *Generator, ins bytecode.Instruction, self, next int32) (string, bool) {
	if entry, ok := g.protectedEntry[self]; ok {
		return fmt.Sprintf("%s\n\tpending_exception = operand_stack[sp-1].ref;\n\tgoto state_%d;", label(self), entry), true
	}
	return fmt.Sprintf("%s\n\tthrow_java_exception(env, operand_stack[sp-1].ref);\n\treturn 0;", label(self)), true
}

func floatBits(f float32) uint32 {
	return float32Bits(f)
}

func doubleBits(f float64) uint64 {
	return float64Bits(f)
}
