// Package sweep runs activation sweeps: sequences of compute cycles over one
// weight tensor where the activations evolve step by step. Each step is
// checked against the reference model and handed to a sink.
package sweep

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/tensor"
	valgen "github.com/sarchlab/cimhost/util"
)

// macOffsetRepeats is the number of offset measurements of the mac-offset
// sweep.
const macOffsetRepeats = 10

// A Sweep is a named sequence of activation vectors, one per step.
type Sweep struct {
	Name  string
	Steps [][]uint8

	// Weights is the weight tensor the sweep is meant to run with. Nil
	// leaves the choice to the caller.
	Weights []byte
}

func clone(v []uint8) []uint8 {
	c := make([]uint8, len(v))
	copy(c, v)

	return c
}

// appendLanes starts from all-zero activations and sets one more lane,
// from lane 0 to lane 63, to the next generated value at every step.
func appendLanes(name string, gen func() uint8) Sweep {
	s := Sweep{Name: name}
	acts := make([]uint8, cim.Lanes)
	s.Steps = append(s.Steps, clone(acts))

	for i := 0; i < cim.Lanes; i++ {
		acts[i] = gen()
		s.Steps = append(s.Steps, clone(acts))
	}

	return s
}

// AppendNibble sets one more lane to value at every step. It has 65 steps.
func AppendNibble(value uint8) (Sweep, error) {
	if value > cim.MaxNibble {
		return Sweep{}, fmt.Errorf("nibble %d: %w", value, cim.ErrInvalidData)
	}

	s := appendLanes(fmt.Sprintf("append-%x", value), valgen.MakeConstGen(value))
	s.Weights = tensor.Zeros(cim.WeightBytes)

	return s, nil
}

// IncrementEach starts from all-zero activations and adds one to every lane
// at every step, up to the largest nibble. It has 16 steps.
func IncrementEach() Sweep {
	s := Sweep{Name: "increment-each", Weights: tensor.Ones(cim.WeightBytes)}
	gen := valgen.MakeIncreasingGen(0)

	for step := 0; step <= cim.MaxNibble; step++ {
		v := gen()
		acts := make([]uint8, cim.Lanes)
		for i := range acts {
			acts[i] = v
		}

		s.Steps = append(s.Steps, acts)
	}

	return s
}

// AppendRandom sets one more lane to a random non-zero nibble at every
// step. It has 65 steps.
func AppendRandom(rng *rand.Rand) Sweep {
	return appendLanes("append-random", valgen.MakeRandomGen(rng, 1, cim.MaxNibble))
}

// PlusOne raises the activations by one nibble step at a time, filling
// lane 0 up to the largest nibble before moving to lane 1. It starts from
// all-zero activations and ends with every lane at the largest nibble, 961
// steps in total.
func PlusOne() Sweep {
	s := Sweep{Name: "plus-one", Weights: tensor.Ones(cim.WeightBytes)}
	acts := make([]uint8, cim.Lanes)
	s.Steps = append(s.Steps, clone(acts))

	for i := 0; i < cim.Lanes; i++ {
		gen := valgen.MakeIncreasingGen(1)
		for acts[i] < cim.MaxNibble {
			acts[i] = gen()
			s.Steps = append(s.Steps, clone(acts))
		}
	}

	return s
}

// Repeat runs the same activations n times.
func Repeat(n int, nibbles []uint8) (Sweep, error) {
	if n < 1 {
		return Sweep{}, fmt.Errorf("repeat count %d: %w", n, cim.ErrInvalidData)
	}

	if len(nibbles) != cim.Lanes {
		return Sweep{}, fmt.Errorf("%d activations, want %d: %w",
			len(nibbles), cim.Lanes, cim.ErrSizeMismatch)
	}

	for i, v := range nibbles {
		if v > cim.MaxNibble {
			return Sweep{}, fmt.Errorf("activation %d is %d: %w", i, v, cim.ErrInvalidData)
		}
	}

	s := Sweep{Name: "repeat"}
	for i := 0; i < n; i++ {
		s.Steps = append(s.Steps, clone(nibbles))
	}

	return s, nil
}

// MACOffset measures the output offset of every column: all-zero
// activations against all-positive weights, repeated n times.
func MACOffset(n int) (Sweep, error) {
	s, err := Repeat(n, make([]uint8, cim.Lanes))
	if err != nil {
		return Sweep{}, err
	}

	s.Name = "mac-offset"
	s.Weights = tensor.Ones(cim.WeightBytes)

	return s, nil
}

// Names lists the sweeps ByName knows.
var Names = []string{
	"append-f",
	"increment-each",
	"append-random",
	"plus-one",
	"mac-offset",
}

// ByName creates one of the sweeps above from its name.
func ByName(name string, rng *rand.Rand) (Sweep, error) {
	switch name {
	case "append-f":
		return AppendNibble(cim.MaxNibble)
	case "increment-each":
		return IncrementEach(), nil
	case "append-random":
		return AppendRandom(rng), nil
	case "plus-one":
		return PlusOne(), nil
	case "mac-offset":
		return MACOffset(macOffsetRepeats)
	default:
		return Sweep{}, fmt.Errorf("unknown sweep %q", name)
	}
}
