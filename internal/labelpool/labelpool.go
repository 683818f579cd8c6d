// Package labelpool implements assignment of globally unique random
// 32-bit state ids to bytecode labels and to synthetic blocks minted
// during compilation of one method.
//
// The forward-reference shape — a label can be asked for its state id
// before the instruction stream has reached the point it marks — avoids
// any deferred-resolution callback list: a label's "address" here is a
// random id rather than a byte offset, so name_of mints the id the first
// time it is asked, regardless of emission order.
package labelpool

import (
	"math/rand/v2"

	"github.com/kryptid/classnative/internal/bytecode"
)

// Pool assigns and tracks state ids for exactly one method's compilation.
// It is not safe for concurrent use by multiple goroutines compiling the
// same method, but distinct
// methods may each use their own Pool concurrently since math/rand/v2's
// top-level functions are already safe for concurrent use.
type Pool struct {
	ids  map[*bytecode.Label]int32
	used map[int32]bool
}

// New returns an empty label pool for one method.
func New() *Pool {
	return &Pool{
		ids:  make(map[*bytecode.Label]int32),
		used: make(map[int32]bool),
	}
}

func (p *Pool) draw() int32 {
	for {
		id := int32(rand.Uint32())
		if !p.used[id] {
			p.used[id] = true
			return id
		}
	}
}

// NameOf returns label's state id, minting a new random id on first ask.
func (p *Pool) NameOf(label *bytecode.Label) int32 {
	if id, ok := p.ids[label]; ok {
		return id
	}
	id := p.draw()
	p.ids[label] = id
	return id
}

// SetState forces label to take a specific, already-drawn id. Used after a
// pre-pass that must make a KindLabel instruction share the same state id
// as whatever minted the id for its position.
func (p *Pool) SetState(label *bytecode.Label, id int32) {
	if !p.used[id] {
		p.used[id] = true
	}
	p.ids[label] = id
}

// NewStandalone mints a fresh random id for a synthetic block that has no
// backing bytecode.Label (post-end sentinel, catch landing pad,
// flattener dispatch helper).
func (p *Pool) NewStandalone() int32 {
	return p.draw()
}
