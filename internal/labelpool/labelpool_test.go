package labelpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kryptid/classnative/internal/bytecode"
)

func TestNameOfIsStableForSameLabel(t *testing.T) {
	p := New()
	l := bytecode.NewLabel("L0")
	id1 := p.NameOf(l)
	id2 := p.NameOf(l)
	require.Equal(t, id1, id2)
}

func TestNameOfDiffersAcrossLabels(t *testing.T) {
	p := New()
	a := bytecode.NewLabel("a")
	b := bytecode.NewLabel("b")
	require.NotEqual(t, p.NameOf(a), p.NameOf(b))
}

func TestStandaloneIdsAreDistinctFromLabelIds(t *testing.T) {
	p := New()
	l := bytecode.NewLabel("l")
	labelID := p.NameOf(l)

	seen := map[int32]bool{labelID: true}
	for i := 0; i < 200; i++ {
		id := p.NewStandalone()
		require.False(t, seen[id], "standalone id collided with a previously drawn id")
		seen[id] = true
	}
}

func TestSetStateHonorsForcedId(t *testing.T) {
	p := New()
	l := bytecode.NewLabel("l")
	p.SetState(l, 4242)
	require.Equal(t, int32(4242), p.NameOf(l))
}
