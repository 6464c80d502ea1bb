package bitmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	b := New(60)
	for _, i := range []int{0, 5, 30, 59} {
		b.Set(i)
	}
	for _, i := range []int{0, 5, 30, 59} {
		require.True(t, b.Get(i))
	}
	require.False(t, b.Get(1))
	require.False(t, b.Get(58))
}

func TestOutOfRangeNeverPanics(t *testing.T) {
	b := New(8)
	require.False(t, b.Get(1000))
	require.NotPanics(t, func() { b.Set(1000) })
	require.NotPanics(t, func() { b.Unset(-5) })
}

func TestNextSetAndIter(t *testing.T) {
	b := NewFromBits(31, []int{2, 9, 20})
	next, ok := b.NextSet(0)
	require.True(t, ok)
	require.Equal(t, 2, next)

	require.Equal(t, []int{9, 20}, b.Iter(2))
	require.Equal(t, []int{2, 9, 20}, b.Iter(-1))

	first, ok := b.FirstSet()
	require.True(t, ok)
	require.Equal(t, 2, first)
}

func TestNewFromBitsEmptyDefaultsToBitZero(t *testing.T) {
	b := NewFromBits(12, nil)
	require.True(t, b.Get(0))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	widths := []int{8, 16, 32, 60, 128}
	for _, w := range widths {
		b := New(w)
		b.Set(0)
		b.Set(w - 1)
		got := Decode(b.Encode())
		require.True(t, Equal(b, got), "width=%d", w)
	}
}

func TestAllSet(t *testing.T) {
	b := AllSet(12)
	for i := 0; i < 12; i++ {
		require.True(t, b.Get(i))
	}
}

func TestClear(t *testing.T) {
	b := NewFromBits(10, []int{1, 2, 3})
	b.Clear()
	_, ok := b.FirstSet()
	require.False(t, ok)
}
