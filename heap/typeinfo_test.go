package heap_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/verdantvm/gcutils/heap"
)

func TestRegisterTypeIsGetOrCreate(t *testing.T) {
	newTestHeap(t)

	first, err := heap.RegisterType[chainNode](heap.TypeInfoCreateInfo{})
	require.NoError(t, err)
	second, err := heap.RegisterType[chainNode](heap.TypeInfoCreateInfo{})
	require.NoError(t, err)
	require.Same(t, first, second)

	fetched, err := heap.TypeInfoFor[chainNode]()
	require.NoError(t, err)
	require.Same(t, first, fetched)
}

func TestTypeInfoDescribesSlot(t *testing.T) {
	newTestHeap(t)

	info, err := heap.TypeInfoFor[chainNode]()
	require.NoError(t, err)

	require.Equal(t, 64, info.Size())
	require.True(t, info.HasFinalizer())
	require.True(t, strings.Contains(info.TypeName(), "chainNode"))
}

func TestTypeInfoForUnregisteredType(t *testing.T) {
	type neverRegistered struct {
		X int64
	}

	_, err := heap.TypeInfoFor[neverRegistered]()
	require.Error(t, err)
}

func TestRegisterTypeRejectsGoPointers(t *testing.T) {
	type holdsString struct {
		Name string
	}
	_, err := heap.RegisterType[holdsString](heap.TypeInfoCreateInfo{})
	require.Error(t, err)

	type holdsSlice struct {
		Values []int
	}
	_, err = heap.RegisterType[holdsSlice](heap.TypeInfoCreateInfo{})
	require.Error(t, err)

	type holdsMap struct {
		Index map[int]int
	}
	_, err = heap.RegisterType[holdsMap](heap.TypeInfoCreateInfo{})
	require.Error(t, err)
}

func TestRegisterTypeAllowsNestedValueTypes(t *testing.T) {
	type point struct {
		X float64
		Y float64
	}
	type shape struct {
		Corners [4]point
		Tag     uint64
	}

	info, err := heap.RegisterType[shape](heap.TypeInfoCreateInfo{})
	require.NoError(t, err)

	// 8 header bytes + 4*16 corner bytes + 8 tag bytes
	require.Equal(t, 80, info.Size())
	require.False(t, info.HasFinalizer())
}
