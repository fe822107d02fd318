package verify

import (
	"github.com/sarchlab/cimhost/output"
)

// Tolerance bounds the per-lane difference accepted between the device and
// the reference.
type Tolerance struct {
	// Absolute is the accepted difference in output units. The dropped
	// output LSB alone accounts for up to 2.
	Absolute int32 `yaml:"absolute"`

	// PerFactor is added once per unit of the activation scale factor, to
	// absorb the pulse correction applied by the quantizer.
	PerFactor int32 `yaml:"per_factor"`
}

// DefaultTolerance accepts the truncation of the output stage only.
func DefaultTolerance() Tolerance {
	return Tolerance{Absolute: 2}
}

// LaneIssue records one lane outside the tolerance.
type LaneIssue struct {
	Lane     int
	Device   int32
	Expected int32
	Diff     int32
}

// Comparison is the result of Compare.
type Comparison struct {
	Device    output.Vector
	Expected  output.Vector
	Factor    int
	Tolerance Tolerance
	Issues    []LaneIssue
	MaxDiff   int32
}

// OK tells if every lane is within tolerance.
func (c Comparison) OK() bool {
	return len(c.Issues) == 0
}

// Compare checks a device vector against the reference lane by lane.
func Compare(device, expected output.Vector, tol Tolerance) Comparison {
	return CompareScaled(device, expected, 1, tol)
}

// CompareScaled checks a device vector produced from activations scaled by
// factor against the reference of the unscaled activations.
func CompareScaled(device, expected output.Vector, factor int, tol Tolerance) Comparison {
	if factor < 1 {
		factor = 1
	}

	c := Comparison{
		Device:    device,
		Expected:  expected,
		Factor:    factor,
		Tolerance: tol,
	}

	limit := tol.Absolute + tol.PerFactor*int32(factor)

	for i := range expected {
		if i >= len(device) {
			c.Issues = append(c.Issues, LaneIssue{Lane: i, Expected: expected[i]})
			continue
		}

		diff := device[i] - expected[i]*int32(factor)
		if diff < 0 {
			diff = -diff
		}

		if diff > c.MaxDiff {
			c.MaxDiff = diff
		}

		if diff > limit {
			c.Issues = append(c.Issues, LaneIssue{
				Lane:     i,
				Device:   device[i],
				Expected: expected[i] * int32(factor),
				Diff:     diff,
			})
		}
	}

	return c
}
