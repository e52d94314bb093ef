// Package hash implements the salted modular hash used to key image features
package hash

// Hash mixes n with salt s and reduces the result to the range 0 .. max-1.
// A max of zero always yields zero.
func Hash(n uint32, s uint32, max uint32) uint32 {
	// mix input with salt
	var m = uint32(n) - uint32(s)

	// xor shift with prime coefficients
	m ^= m << 2
	m ^= m << 3
	m ^= m >> 5
	m ^= m >> 7
	m ^= m << 11
	m ^= m << 13
	m ^= m >> 17
	m ^= m << 19

	// mix again
	m += s

	// multiply shift reduction instead of modulo
	// https://lemire.me/blog/2016/06/27/a-fast-alternative-to-the-modulo-reduction/
	return uint32((uint64(m) * uint64(max)) >> 32)
}

// Key maps a single feature to its premodulo bucket. A premodulo of zero
// leaves the feature untouched.
func Key(feature, salt, premodulo uint32) uint32 {
	if premodulo == 0 {
		return feature
	}
	return Hash(feature, salt, premodulo)
}

// Keys maps every feature in features to its premodulo bucket, writing into out.
// out must be at least as long as features.
func Keys(out, features []uint32, salt, premodulo uint32) {
	for i, f := range features {
		out[i] = Key(f, salt, premodulo)
	}
}
