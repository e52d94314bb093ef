package datasets

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// fractionEpsilon absorbs float error so that 100*(1-0.3) cuts at 70, not 69.
const fractionEpsilon = 1e-9

// NewRand returns a pseudo-random source. A zero seed is replaced by a
// time-derived one, so the resulting order is not reproducible.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Shuffle returns a pseudo-random permutation of d. d itself is left untouched.
func Shuffle(d Dataset, rng *rand.Rand) Dataset {
	out := make(Dataset, len(d))
	copy(out, d)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// cut returns floor(n*keep) with float noise removed.
func cut(n int, keep float64) int {
	c := int(math.Floor(float64(n)*keep + fractionEpsilon))
	if c > n {
		c = n
	}
	if c < 0 {
		c = 0
	}
	return c
}

func checkFraction(name string, f float64) error {
	if math.IsNaN(f) || f <= 0 || f >= 1 {
		return fmt.Errorf("datasets: %s %v: %w", name, f, ErrInvalidFraction)
	}
	return nil
}

// TrainTestSplit cuts d into a train prefix of floor(n*(1-testFraction))
// samples and a test suffix holding the rest. The order of d is kept.
func TrainTestSplit(d Dataset, testFraction float64) (train, test Dataset, err error) {
	if err = checkFraction("test fraction", testFraction); err != nil {
		return nil, nil, err
	}
	if len(d) == 0 {
		return nil, nil, fmt.Errorf("datasets: split: %w", ErrEmptyDataset)
	}
	c := cut(len(d), 1-testFraction)
	return d.Take(c), append(Dataset(nil), d[c:]...), nil
}

// SplitThreeWay partitions an already shuffled dataset. The primary cut
// separates train from the remainder by testFraction, the secondary cut gives
// floor(m*validationFraction) of the remainder to validation and the rest to
// test. An empty train or validation part is an error.
func SplitThreeWay(d Dataset, testFraction, validationFraction float64) (s Split, err error) {
	if err = checkFraction("validation fraction", validationFraction); err != nil {
		return Split{}, err
	}
	train, rest, err := TrainTestSplit(d, testFraction)
	if err != nil {
		return Split{}, err
	}
	if len(train) == 0 {
		return Split{}, fmt.Errorf("datasets: train partition of %d samples: %w", len(d), ErrEmptyDataset)
	}
	if len(rest) == 0 {
		return Split{}, fmt.Errorf("datasets: validation partition of %d samples: %w", len(d), ErrEmptyDataset)
	}
	c := cut(len(rest), validationFraction)
	s = Split{
		Train:      train,
		Validation: rest.Take(c),
		Test:       append(Dataset(nil), rest[c:]...),
	}
	if len(s.Validation) == 0 {
		return Split{}, fmt.Errorf("datasets: validation partition of %d samples: %w", len(d), ErrEmptyDataset)
	}
	return s, nil
}
