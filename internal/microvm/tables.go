package microvm

// FieldRef, MethodRef, class names, MultiArrayInfo, switch descriptors and
// the typed constant pool are the "auxiliary reference tables" /
// says the VM translator emits alongside micro_vm_code[]. Operands that
// refer to one of these tables are stored as a dense index into it; the
// runtime interpreter receives all of them as parallel slices alongside
// the instruction stream.

// FieldRef identifies one field by (owner, name, descriptor).
type FieldRef struct {
	Owner, Name, Desc string
}

// MethodRef identifies one method by (owner, name, descriptor). Only
// INVOKESTATIC is representable in the micro-VM, so
// MethodRef never needs a virtual-dispatch flag.
type MethodRef struct {
	Owner, Name, Desc string
}

// MultiArrayInfo describes one MULTIANEWARRAY site: the array type
// descriptor and how many dimensions are supplied on the operand stack.
type MultiArrayInfo struct {
	Desc string
	Dims int
}

// TableSwitchDescriptor is one TABLESWITCH site. Targets has exactly
// High-Low+1 entries, each a micro-VM instruction index;
// Default is the fallback index.
type TableSwitchDescriptor struct {
	Low, High int32
	Targets   []int
	Default   int
}

// LookupSwitchDescriptor is one LOOKUPSWITCH site. Keys and Targets are
// parallel; Default is the fallback
// index.
type LookupSwitchDescriptor struct {
	Keys    []int32
	Targets []int
	Default int
}

// ConstantKind tags the type of a ConstantPoolEntry.
type ConstantKind uint8

const (
	ConstInteger ConstantKind = iota
	ConstFloat
	ConstLong
	ConstDouble
	ConstString
	ConstClass
)

// ConstantPoolEntry is one typed entry of the per-method constant pool
// that OpLdc indexes into.
type ConstantPoolEntry struct {
	Kind       ConstantKind
	IntVal     int32
	FloatVal   float32
	LongVal    int64
	DoubleVal  float64
	StringID   uint32 // name-pool string id, when Kind == ConstString
	ClassIndex int    // index into RefTables.Classes, when Kind == ConstClass
}

// RefTables bundles every reference table one compiled method needs at
// run time, as parallel slices indexed by the dense ids the VM translator
// assigned while walking the bytecode.
type RefTables struct {
	Fields       []FieldRef
	Methods      []MethodRef
	Classes      []string
	MultiArrays  []MultiArrayInfo
	TableSwitch  []TableSwitchDescriptor
	LookupSwitch []LookupSwitchDescriptor
	Constants    []ConstantPoolEntry
}
