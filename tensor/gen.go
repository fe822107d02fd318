package tensor

import (
	"math/rand"

	"github.com/sarchlab/cimhost/cim"
)

// Constant returns size bytes of the same value.
func Constant(size int, value byte) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = value
	}

	return data
}

// Zeros returns size zero bytes.
func Zeros(size int) []byte {
	return make([]byte, size)
}

// Ones returns size bytes with every bit set.
func Ones(size int) []byte {
	return Constant(size, 0xFF)
}

// Random returns size random bytes drawn from rng.
func Random(rng *rand.Rand, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(rng.Intn(256))
	}

	return data
}

// RandomWeights returns a random weight tensor.
func RandomWeights(rng *rand.Rand) []byte {
	return Random(rng, cim.WeightBytes)
}

// RandomActivations returns a random activation tensor.
func RandomActivations(rng *rand.Rand) []byte {
	return Random(rng, cim.ActivationBytes)
}
