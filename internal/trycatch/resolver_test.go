package trycatch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kryptid/classnative/internal/bytecode"
	"github.com/kryptid/classnative/internal/labelpool"
	"github.com/kryptid/classnative/internal/namepool"
)

func tokenFn(kind namepool.Kind, id uint32) string { return fmt.Sprintf("tbl[%d]", id) }

func newResolver() *Resolver {
	return New(labelpool.New(), namepool.New(tokenFn))
}

func TestResolveSingleAnyCatchGotosHandlerDirectly(t *testing.T) {
	start := bytecode.NewLabel("start")
	end := bytecode.NewLabel("end")
	handler := bytecode.NewLabel("handler")
	handlerState := map[*bytecode.Label]int32{handler: 42}

	r := newResolver()
	fragments, entry, err := r.Resolve([]bytecode.TryCatch{
		{Start: start, End: end, Handler: handler, ExceptionType: ""},
	}, handlerState)
	require.NoError(t, err)
	require.Len(t, fragments, 1)

	entryID, ok := entry[start]
	require.True(t, ok)
	require.Contains(t, fragments[entryID], "goto state_42;")
}

func TestResolveChainOfTypedCatchesLinksFallthrough(t *testing.T) {
	start := bytecode.NewLabel("start")
	end := bytecode.NewLabel("end")
	h1 := bytecode.NewLabel("h1")
	h2 := bytecode.NewLabel("h2")
	handlerState := map[*bytecode.Label]int32{h1: 1, h2: 2}

	r := newResolver()
	fragments, entry, err := r.Resolve([]bytecode.TryCatch{
		{Start: start, End: end, Handler: h1, ExceptionType: "java/io/IOException"},
		{Start: start, End: end, Handler: h2, ExceptionType: "java/lang/RuntimeException"},
	}, handlerState)
	require.NoError(t, err)
	require.Len(t, fragments, 2)

	entryID := entry[start]
	require.Contains(t, fragments[entryID], "goto state_1;")
	require.Contains(t, fragments[entryID], "tbl[0]")

	// The entry fragment must fall through to some other generated state,
	// which in turn targets handler 2.
	var fallthroughID int32 = -1
	for id, frag := range fragments {
		if id != entryID {
			fallthroughID = id
			_ = frag
		}
	}
	require.NotEqual(t, int32(-1), fallthroughID)
	require.Contains(t, fragments[fallthroughID], "goto state_2;")
}

func TestResolveLastInChainUnwindsWhenNoMatch(t *testing.T) {
	start := bytecode.NewLabel("start")
	end := bytecode.NewLabel("end")
	h1 := bytecode.NewLabel("h1")
	handlerState := map[*bytecode.Label]int32{h1: 9}

	r := newResolver()
	fragments, entry, err := r.Resolve([]bytecode.TryCatch{
		{Start: start, End: end, Handler: h1, ExceptionType: "java/io/IOException"},
	}, handlerState)
	require.NoError(t, err)
	entryID := entry[start]
	require.Contains(t, fragments[entryID], "goto state_unwind;")
}

func TestResolveMissingHandlerStateErrors(t *testing.T) {
	start := bytecode.NewLabel("start")
	end := bytecode.NewLabel("end")
	handler := bytecode.NewLabel("handler")

	r := newResolver()
	_, _, err := r.Resolve([]bytecode.TryCatch{
		{Start: start, End: end, Handler: handler, ExceptionType: ""},
	}, map[*bytecode.Label]int32{})
	require.Error(t, err)
}

func TestResolveIndependentRegionsProduceIndependentChains(t *testing.T) {
	s1, e1, h1 := bytecode.NewLabel("s1"), bytecode.NewLabel("e1"), bytecode.NewLabel("h1")
	s2, e2, h2 := bytecode.NewLabel("s2"), bytecode.NewLabel("e2"), bytecode.NewLabel("h2")
	handlerState := map[*bytecode.Label]int32{h1: 1, h2: 2}

	r := newResolver()
	fragments, entry, err := r.Resolve([]bytecode.TryCatch{
		{Start: s1, End: e1, Handler: h1, ExceptionType: ""},
		{Start: s2, End: e2, Handler: h2, ExceptionType: ""},
	}, handlerState)
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	require.NotEqual(t, entry[s1], entry[s2])
}
