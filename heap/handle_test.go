package heap_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/verdantvm/gcutils/heap"
)

func TestRootReleaseIsStrictlyLIFO(t *testing.T) {
	newTestHeap(t)

	a := allocNode(t, 1)
	b := allocNode(t, 2)

	require.Panics(t, func() {
		a.Release()
	})

	b.Release()
	a.Release()
}

func TestRootUnderflowPanics(t *testing.T) {
	newTestHeap(t)

	a := allocNode(t, 1)
	a.Release()
	require.Panics(t, func() {
		a.Release()
	})
}

func TestRootRegistryOverflowPanics(t *testing.T) {
	h := newTestHeap(t)

	a := allocNode(t, 1)
	require.Panics(t, func() {
		for i := 0; i < heap.MaxRootCount; i++ {
			a.Clone()
		}
	})
	require.Equal(t, heap.MaxRootCount, h.RootCount())
}

func TestCloneTracksTheSameObject(t *testing.T) {
	h := newTestHeap(t)

	a := allocNode(t, 1)
	c := a.Clone()

	h.Collect()

	require.Same(t, a.Value(), c.Value())
	c.Deref(func(node *chainNode) {
		require.Equal(t, uint32(1), node.ID)
	})

	c.Release()
	a.Release()
}

func TestNilHandle(t *testing.T) {
	newTestHeap(t)

	var nilHandle heap.Handle[chainNode]
	require.True(t, nilHandle.IsNil())
	require.Nil(t, nilHandle.Value())
	require.Equal(t, heap.RefStrong, nilHandle.Kind())
}

func TestEmbeddedHandleRetargetsWithEnclosingObject(t *testing.T) {
	h := newTestHeap(t)

	outer := allocNode(t, 1)
	inner := allocNode(t, 2)
	outer.Deref(func(node *chainNode) {
		node.Next = *inner
	})

	innerBefore := inner.Value()
	inner.Release()

	h.Collect()

	outer.Deref(func(node *chainNode) {
		require.False(t, node.Next.IsNil())
		require.NotSame(t, innerBefore, node.Next.Value())
		node.Next.Deref(func(nested *chainNode) {
			require.Equal(t, uint32(2), nested.ID)
		})
	})

	outer.Release()
}
