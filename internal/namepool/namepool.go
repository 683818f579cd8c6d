// Package namepool implements the per-archive string/class/method/field
// deduplication tables that give emitted native code stable integer ids to
// reference instead of repeating text.
//
// Lookup and insertion are guarded by one sync.RWMutex per Pool, the same
// shape wazero uses to guard its module->compiled-code cache (see
// engine.codes map[wasm.ModuleID][]*code // guarded by mutex. and the
// addCodes/getCodes pair in internal/engine/interpreter/interpreter.go):
// a single lock per pool is cheap relative to codegen time, and classes
// may be compiled concurrently as long as they share one *Pool, which
// holds all four kinds.
package namepool

import "sync"

// Kind distinguishes the four dedup tables this package maintains.
type Kind uint8

const (
	KindStringLiteral Kind = iota
	KindClassInternalName
	KindMethodRef
	KindFieldRef

	kindCount
)

type entryKey struct {
	kind Kind
	text string
}

// Pool deduplicates (kind, text) pairs into dense, zero-based,
// first-seen-order ids, one counter per Kind.
type Pool struct {
	mu      sync.RWMutex
	ids     map[entryKey]uint32
	texts   [kindCount][]string // index -> text, per kind
	tokenFn func(kind Kind, id uint32) string
}

// New builds an empty Pool. tokenFn renders the source-level expression
// used to reference entry id of kind from emitted code (e.g.
// "strings[3]"); it is supplied by the caller so the addressing
// convention lives with the code generator, not here.
func New(tokenFn func(kind Kind, id uint32) string) *Pool {
	return &Pool{
		ids:     make(map[entryKey]uint32),
		tokenFn: tokenFn,
	}
}

// Intern returns the stable id for (kind, text), assigning a new dense id
// on first sight.
func (p *Pool) Intern(kind Kind, text string) uint32 {
	key := entryKey{kind, text}

	p.mu.RLock()
	if id, ok := p.ids[key]; ok {
		p.mu.RUnlock()
		return id
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	// Re-check: another goroutine may have interned this text while we
	// waited for the write lock.
	if id, ok := p.ids[key]; ok {
		return id
	}
	id := uint32(len(p.texts[kind]))
	p.ids[key] = id
	p.texts[kind] = append(p.texts[kind], text)
	return id
}

// Token returns the source-level expression referencing entry id of kind.
func (p *Pool) Token(kind Kind, id uint32) string {
	return p.tokenFn(kind, id)
}

// Size reports how many distinct entries of kind have been interned.
func (p *Pool) Size(kind Kind) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.texts[kind])
}

// Texts returns a copy of the interned texts of kind in id order, for the
// per-class header emission (e.g. to materialize a string literal array).
func (p *Pool) Texts(kind Kind) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.texts[kind]))
	copy(out, p.texts[kind])
	return out
}

// Reset zeroes all four kinds, for reuse between classes within the same
// archive-compilation session.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = make(map[entryKey]uint32)
	for k := range p.texts {
		p.texts[k] = nil
	}
}
