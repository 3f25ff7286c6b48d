package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedSizeRingPushAndElements(t *testing.T) {
	q := NewFixedSizedRing(4)
	require.True(t, q.IsEmpty())
	require.Equal(t, []interface{}{}, q.Elements())

	q.Push(1)
	require.False(t, q.IsEmpty())
	require.Equal(t, int64(1), q.Count())
	require.Equal(t, []interface{}{1}, q.Elements())

	q.Push(2)
	q.Push(3)
	q.Push(4)
	require.Equal(t, int64(4), q.Count())
	require.Equal(t, []interface{}{1, 2, 3, 4}, q.Elements())
}

func TestFixedSizeRingOverwritesOldest(t *testing.T) {
	q := NewFixedSizedRing(3)
	for i := 1; i <= 7; i++ {
		q.Push(i)
	}
	require.Equal(t, int64(3), q.Count())
	require.Equal(t, []interface{}{5, 6, 7}, q.Elements())
}

func BenchmarkFixedSizeRingPush(b *testing.B) {
	q := NewFixedSizedRing(2000)
	for i := 0; i < b.N; i++ {
		q.Push(i)
	}
}
