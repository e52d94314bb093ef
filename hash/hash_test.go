package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// performance benchmark
func BenchmarkHash(b *testing.B) {
	n := uint32(0)
	s := uint32(0)
	for i := 0; i < b.N; i++ {
		n = Hash(n, s, 1<<20)
		s++
	}
}

// loop length test
func TestHash(t *testing.T) {
	const bound1 = 20
	const bound2 = 10000
	var count uint64
	for max := uint32(2); max <= 1<<bound1; max <<= 1 {
		var visited = make([]bool, max)
		var current uint32
		for s := uint32(0); s < bound2; s++ {
			current = Hash(current, s, max)
			if current == 0 || visited[current] {
				visited = make([]bool, max)
				continue
			}
			visited[current] = true
			count++
		}
	}
	assert.NotZero(t, count)
}

func TestKey(t *testing.T) {
	assert.Equal(t, uint32(12345), Key(12345, 7, 0), "zero premodulo passes the feature through")
	for f := uint32(0); f < 1000; f++ {
		assert.Less(t, Key(f, 99, 37), uint32(37))
	}
}

func TestKeys(t *testing.T) {
	features := []uint32{1, 2, 3, 1 << 20, 0xFFFFFFFF}
	out := make([]uint32, len(features))
	Keys(out, features, 5, 101)
	for i, f := range features {
		require.Equal(t, Hash(f, 5, 101), out[i], "index %d", i)
	}
}

// sanity check fuzz
func FuzzHash(f *testing.F) {
	f.Add(uint32(0), uint32(0), uint32(0))
	f.Fuzz(func(t *testing.T, n, s, max uint32) {
		out := Hash(n, s, max)
		if max == 0 && out != 0 {
			t.Errorf("Hash(%d, %d, 0) == %d (max=0 should be 0)", n, s, out)
		}
		if max > 1 && out >= max {
			t.Errorf("Hash(%d, %d, %d) == %d (output bigger or equal than max)", n, s, max, out)
		}
	})
}
