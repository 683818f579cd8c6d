// Package nativefault defines the sentinel errors the micro-VM runtime and
// the emitted state-machine bodies raise for host-platform faults, following the sentinel-panic convention
// wazero's internal/engine/interpreter uses for wasmruntime.ErrRuntime*:
// a fault is panicked with one of these values and recovered at the call
// boundary (microvm.CallEngine.Run/RunJIT, which return it as an error),
// never silently swallowed.
package nativefault

import "errors"

var (
	// ErrDivideByZero is raised by DIV/REM on a zero divisor.
	ErrDivideByZero = errors.New("nativefault: integer division by zero")

	// ErrArrayIndexOutOfBounds is raised by array load/store when the
	// index falls outside [0, length).
	ErrArrayIndexOutOfBounds = errors.New("nativefault: array index out of bounds")

	// ErrNegativeArraySize is raised by ANEWARRAY/MULTIANEWARRAY when a
	// requested dimension is negative.
	ErrNegativeArraySize = errors.New("nativefault: negative array size")

	// ErrClassCastException is raised by CHECKCAST on an incompatible
	// reference.
	ErrClassCastException = errors.New("nativefault: class cast exception")

	// ErrNullPointer is raised by a field/array/method access through a
	// null reference, and by a non-static invocation reached with a null
	// class loader.
	ErrNullPointer = errors.New("nativefault: null pointer dereference")

	// ErrNoClassDefFound wraps a class-resolution failure; the original
	// cause is chained with %w so callers can still unwrap it.
	ErrNoClassDefFound = errors.New("nativefault: no class definition found")

	// ErrUnreachableState is raised when the emitted dispatcher's default
	// case is reached: by construction this never happens on a correct
	// path, so reaching it means the compiled method itself
	// is defective.
	ErrUnreachableState = errors.New("nativefault: unreachable dispatch state")

	// ErrStackOverflow guards the micro-VM's fixed 256-slot operand stack.
	ErrStackOverflow = errors.New("nativefault: operand stack overflow")

	// ErrUserThrow unwinds an ATHROW whose thrown value is carried
	// out-of-band (e.g. CallEngine.exception); the error itself carries no
	// payload, matching the sentinel-panic convention used for every other
	// fault in this package.
	ErrUserThrow = errors.New("nativefault: user exception thrown")
)
