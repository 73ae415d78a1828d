package ring_test

import (
	"testing"

	"codeberg.org/mutker/edgebench/internal/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushBelowCapacity(t *testing.T) {
	r := ring.New[int](3)

	assert.False(t, r.Push(1))
	assert.False(t, r.Push(2))
	assert.Equal(t, []int{1, 2}, r.Items())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 3, r.Cap())
}

func TestEvictsOldestFirst(t *testing.T) {
	r := ring.New[int](1000)

	for i := 0; i < 2500; i++ {
		r.Push(i)
		require.LessOrEqual(t, r.Len(), 1000)
	}

	items := r.Items()
	require.Len(t, items, 1000)
	for i, v := range items {
		assert.Equal(t, 1500+i, v)
	}

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, 2499, last)
}

func TestPopFront(t *testing.T) {
	r := ring.New[string](2)
	r.Push("a")
	r.Push("b")
	assert.True(t, r.Push("c"))

	v, ok := r.PopFront()
	require.True(t, ok)
	assert.Equal(t, "b", v)

	v, ok = r.PopFront()
	require.True(t, ok)
	assert.Equal(t, "c", v)

	_, ok = r.PopFront()
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	r := ring.New[int](2)
	r.Push(1)
	r.Reset()

	assert.Empty(t, r.Items())
	_, ok := r.Last()
	assert.False(t, ok)
}
