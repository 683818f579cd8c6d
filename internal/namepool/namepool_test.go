package namepool

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func testToken(kind Kind, id uint32) string {
	return fmt.Sprintf("k%d[%d]", kind, id)
}

func TestInternDedupsAndAssignsDenseIds(t *testing.T) {
	p := New(testToken)

	id0 := p.Intern(KindStringLiteral, "foo")
	id1 := p.Intern(KindStringLiteral, "bar")
	id0Again := p.Intern(KindStringLiteral, "foo")

	require.Equal(t, uint32(0), id0)
	require.Equal(t, uint32(1), id1)
	require.Equal(t, id0, id0Again)
	require.Equal(t, 2, p.Size(KindStringLiteral))
}

func TestKindsAreIndependent(t *testing.T) {
	p := New(testToken)

	sID := p.Intern(KindStringLiteral, "Main")
	cID := p.Intern(KindClassInternalName, "Main")

	require.Equal(t, uint32(0), sID)
	require.Equal(t, uint32(0), cID)
	require.Equal(t, 1, p.Size(KindStringLiteral))
	require.Equal(t, 1, p.Size(KindClassInternalName))
}

func TestTokenUsesCallerConvention(t *testing.T) {
	p := New(testToken)
	id := p.Intern(KindMethodRef, "Main.run()V")
	require.Equal(t, "k2[0]", p.Token(KindMethodRef, id))
}

func TestResetClearsAllKinds(t *testing.T) {
	p := New(testToken)
	p.Intern(KindStringLiteral, "a")
	p.Intern(KindFieldRef, "Main.x:I")

	p.Reset()

	require.Equal(t, 0, p.Size(KindStringLiteral))
	require.Equal(t, 0, p.Size(KindFieldRef))
	// First-seen order restarts at 0 after reset.
	require.Equal(t, uint32(0), p.Intern(KindStringLiteral, "a"))
}

func TestInternIsConcurrencySafe(t *testing.T) {
	p := New(testToken)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Intern(KindStringLiteral, "shared")
		}()
	}
	wg.Wait()
	require.Equal(t, 1, p.Size(KindStringLiteral))
}
