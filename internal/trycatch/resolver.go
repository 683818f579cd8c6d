// Package trycatch implements resolving a method's try/catch regions
// into extra codegen fragments — one "check instance, branch to handler or
// fall through to the rest of the chain" state per catch clause.
//
// The worklist shape is a plain slice-backed queue rather than a graph
// structure: each iteration strictly consumes a prefix of the chain and
// enqueues a shorter suffix, which is what guarantees termination.
package trycatch

import (
	"fmt"
	"strings"

	"github.com/kryptid/classnative/internal/bytecode"
	"github.com/kryptid/classnative/internal/labelpool"
	"github.com/kryptid/classnative/internal/namepool"
)

// Chain is one region's ordered list of remaining catch clauses to test,
// from innermost (tried first) to outermost. Its state id is minted as soon
// as the chain's shape is known (Assign), independent of the handler
// labels' resolved state ids, which are only needed later to render the
// actual test body (Render).
type Chain struct {
	region         bytecode.TryCatch
	rest           []bytecode.TryCatch // clauses still to test if this one's type doesn't match
	stateID        int32               // the state id this chain's test occupies
	fallthroughID  int32               // next chain link's state id, if any
	hasFallthrough bool
}

// Resolver walks a method's Catches list and produces the extra
// "state_id -> fragment" entries that test the pending exception against
// each catch clause's declared type, in source order.
type Resolver struct {
	Labels *labelpool.Pool
	Names  *namepool.Pool
}

func New(labels *labelpool.Pool, names *namepool.Pool) *Resolver {
	return &Resolver{Labels: labels, Names: names}
}

// Assign groups catches by identical (Start, End) region — the JVM's
// exception table lists one entry per (region, handler) pair, and clauses
// sharing a region form one chain tested in table order — then mints one
// state id per chain link up front. Minting happens independently of
// handler-state resolution so it can run before internal/codegen has walked
// the method body (codegen needs entryState to route a protected ATHROW
// into the chain while it is still emitting that very state). It returns,
// for every region's entry label, the state id that begins its chain, plus
// the ordered chain links themselves for a later call to Render.
func (r *Resolver) Assign(catches []bytecode.TryCatch) (entryState map[*bytecode.Label]int32, chains []*Chain) {
	entryState = make(map[*bytecode.Label]int32)
	grouped := groupByRegion(catches)

	for _, group := range grouped {
		if len(group) == 0 {
			continue
		}
		cur := &Chain{region: group[0], rest: group[1:], stateID: r.Labels.NewStandalone()}
		chains = append(chains, cur)
		entryState[group[0].Start] = cur.stateID

		seen := 0
		for len(cur.rest) > 0 {
			seen++
			if seen > 1_000_000 {
				break // pathological input; Render's handler-lookup errors will surface it
			}
			next := &Chain{region: cur.rest[0], rest: cur.rest[1:], stateID: r.Labels.NewStandalone()}
			cur.hasFallthrough = true
			cur.fallthroughID = next.stateID
			chains = append(chains, next)
			cur = next
		}
	}

	return entryState, chains
}

// Render renders the test-body fragment for every chain link Assign
// produced, now that handlerState (codegen.Program.LabelStates) has
// resolved every handler label to the state id codegen already assigned its
// block; the resolver never mints a competing id for a handler position.
func (r *Resolver) Render(chains []*Chain, handlerState map[*bytecode.Label]int32) (fragments map[int32]string, err error) {
	fragments = make(map[int32]string, len(chains))
	for _, c := range chains {
		handler, ok := handlerState[c.region.Handler]
		if !ok {
			return nil, fmt.Errorf("trycatch: handler label %q has no resolved state", c.region.Handler.Name)
		}
		fragments[c.stateID] = r.emitTest(c, handler)
	}
	return fragments, nil
}

// Resolve is Assign followed by Render in one call, for callers that
// already know handlerState up front (e.g. tests exercising the resolver in
// isolation, without a real codegen pass in between).
func (r *Resolver) Resolve(catches []bytecode.TryCatch, handlerState map[*bytecode.Label]int32) (fragments map[int32]string, entryState map[*bytecode.Label]int32, err error) {
	entryState, chains := r.Assign(catches)
	fragments, err = r.Render(chains, handlerState)
	if err != nil {
		return nil, nil, err
	}
	return fragments, entryState, nil
}

func (r *Resolver) emitTest(c *Chain, handler int32) string {
	var b strings.Builder
	fmt.Fprintf(&b, "state_%d:", c.stateID)

	if c.region.ExceptionType == "" {
		fmt.Fprintf(&b, "\n\tgoto state_%d;", handler)
		return b.String()
	}

	id := r.Names.Intern(namepool.KindClassInternalName, c.region.ExceptionType)
	token := r.Names.Token(namepool.KindClassInternalName, id)
	fmt.Fprintf(&b, "\n\tif (instance_of(env, pending_exception, %s)) { goto state_%d; }", token, handler)

	if c.hasFallthrough {
		fmt.Fprintf(&b, "\n\tgoto state_%d;", c.fallthroughID)
	} else {
		b.WriteString("\n\tgoto state_unwind;")
	}
	return b.String()
}

// groupByRegion buckets catch clauses that share the identical (Start,
// End) protected region into one ordered chain, preserving the input
// order within each bucket (the exception-table order the JVM specifies
// clauses must be tested in).
func groupByRegion(catches []bytecode.TryCatch) [][]bytecode.TryCatch {
	type key struct{ start, end *bytecode.Label }
	index := make(map[key]int)
	var groups [][]bytecode.TryCatch

	for _, c := range catches {
		k := key{c.Start, c.End}
		if i, ok := index[k]; ok {
			groups[i] = append(groups[i], c)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, []bytecode.TryCatch{c})
	}
	return groups
}
