package microvm

// Host supplies the class-model operations the micro-VM interpreter
// cannot own itself: it has no notion of classes, instance layout, or
// static dispatch, so NEW, field access, CHECKCAST/INSTANCEOF and the
// permissive-mode INVOKESTATIC (see the design notes "Supplemented Features")
// are delegated to whatever embeds the interpreter — normally the
// generated native code's own runtime support functions. This mirrors how
// wazero's callEngine.callGoFunc hands control back to a host-supplied Go
// function for anything the interpreter itself cannot execute.
//
// Object references are represented as int64 handles; 0 is null. The
// interpreter never interprets a non-zero handle itself — it is opaque
// host data round-tripped on the operand stack.
type Host interface {
	New(class string) (ref int64, err error)
	CheckCast(ref int64, class string) error
	InstanceOf(ref int64, class string) bool

	GetStatic(f FieldRef) (uint64, error)
	PutStatic(f FieldRef, v uint64) error
	GetField(ref int64, f FieldRef) (uint64, error)
	PutField(ref int64, f FieldRef, v uint64) error

	// InvokeStatic is only ever called when Config.PermissiveVMEligibility
	// admitted an OpInvokeStatic into the program; the default eligibility
	// policy never produces one.
	InvokeStatic(m MethodRef, args []uint64) ([]uint64, error)
}
