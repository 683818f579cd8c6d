// Package collab specifies the interfaces the method compilation core
// expects from its surrounding archive-processing tooling. None of these
// are implemented here: the archive walker, the emitted-source assembler,
// the class/method filter, and the anti-debug integrity hash source are
// all explicitly out of scope — only their call shape is pinned
// down so a caller can wire the core into a full pipeline.
package collab

import "github.com/kryptid/classnative/internal/compiler"

// ClassEntry is one archive member the walker hands to the core: the
// entry's logical name and its raw class bytes.
type ClassEntry struct {
	Name  string
	Bytes []byte
}

// CompiledClass is what the core hands back per class: the (possibly
// unmodified) rewritten bytes plus the generated native source fragments
// produced for any methods that were compiled.
type CompiledClass struct {
	Entry     ClassEntry
	Rewritten []byte
	Fragments []compiler.CompiledMethod
}

// ArchiveWalker enumerates the members of a class archive (jar/zip or
// directory tree) and receives the core's per-class output. Excluded per
// ; the core only depends on this interface's shape.
type ArchiveWalker interface {
	// Walk calls process once per class entry found, in archive order.
	Walk(process func(ClassEntry) (CompiledClass, error)) error
}

// SourceAssembler accepts the fragments produced for one class and writes
// the per-class header/body files, plus the shared pool and dispatch
// table sources, to wherever the final build expects them.
type SourceAssembler interface {
	AssembleClass(c CompiledClass) error
	AssemblePools(nameTokens, stringPoolSource string) error
}

// MethodFilter is consulted before the orchestrator compiles a method,
// letting a caller skip classes/methods outside the files it wants
// rewritten (e.g. package allow-lists, size limits).
type MethodFilter interface {
	ShouldProcess(class, method string) bool
}

// IntegrityHasher consumes the final assembled artifacts — the string
// pool's encrypted bytes and the assembled dispatch source — to produce
// whatever tamper-detection digest the anti-debug layer embeds.
type IntegrityHasher interface {
	Hash(stringPoolBytes []byte, dispatchSource []byte) ([]byte, error)
}
