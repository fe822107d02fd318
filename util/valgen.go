// Some helpers using closures to generate activation nibbles
package valgen

import "math/rand"

func MakeConstGen(constant uint8) func() uint8 {
	return func() uint8 {
		return constant
	}
}

// MakeIncreasingGen returns start first and one more at every call.
func MakeIncreasingGen(start uint8) func() uint8 {
	current := start
	return func() uint8 {
		v := current
		current++
		return v
	}
}

// MakeRandomGen draws uniformly from [lo, hi].
func MakeRandomGen(rng *rand.Rand, lo, hi uint8) func() uint8 {
	return func() uint8 {
		return lo + uint8(rng.Intn(int(hi-lo)+1))
	}
}
