package learning

import "github.com/jbarham/primegen"

// premoduloStart is the largest premodulo tried after the exact epoch.
const premoduloStart = 1 << 15

// premoduloSchedule returns the premodulo of each epoch: zero (features used
// as keys) first, then the smallest prime not below premoduloStart>>e.
func premoduloSchedule(epochs int) []uint32 {
	out := make([]uint32, 0, epochs)
	if epochs <= 0 {
		return out
	}
	out = append(out, 0)
	for e := 0; len(out) < epochs; e++ {
		target := uint64(premoduloStart) >> uint(e)
		if target < 3 {
			break
		}
		pg := primegen.New()
		pg.SkipTo(target)
		out = append(out, uint32(pg.Next()))
	}
	return out
}
