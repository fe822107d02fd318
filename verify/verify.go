// Package verify provides the golden model used to check the accelerator's
// numeric output.
//
// The package implements two complementary pieces:
//
// 1. Reference model (ExpectedOutput): the exact integer result of the
// 64x64 bipolar dot product that the analog array approximates.
//
// 2. Comparison (Compare, Report): a lane-by-lane check of a decoded
// device vector against the reference, tolerant of the truncation and
// scaling that the hardware path introduces.
//
// # Tensor Layout
//
// The weight tensor holds 4096 bits. Bit n is bit (n % 8) of byte n/8,
// counted from the least significant bit. A bit value of 1 is a weight of +1
// and 0 is a weight of -1. Row i of the 64x64 weight matrix holds bits
// 64i..64i+63.
//
// The activation tensor holds 64 unsigned nibbles, most significant nibble
// first within each byte.
//
// # Lane Order
//
// The result Wᵀ·a is reversed so that index 0 corresponds to the last lane
// physically produced by the device, matching output.Decode.
//
// # Usage Example
//
//	golden, err := verify.ExpectedOutput(weights, acts)
//	if err != nil {
//	    return err
//	}
//
//	cmp := verify.Compare(device, golden, verify.DefaultTolerance())
//	if !cmp.OK() {
//	    cmp.Report().WriteReport(os.Stdout)
//	}
package verify

import (
	"fmt"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/output"
	"github.com/sarchlab/cimhost/tensor"
)

// WeightMatrix expands a weight tensor into a 64x64 matrix of -1/+1.
func WeightMatrix(weights []byte) ([][]int32, error) {
	if len(weights) != cim.WeightBytes {
		return nil, fmt.Errorf("weight tensor of %d bytes, want %d: %w",
			len(weights), cim.WeightBytes, cim.ErrSizeMismatch)
	}

	m := make([][]int32, cim.Lanes)
	for i := range m {
		m[i] = make([]int32, cim.Lanes)
		for j := range m[i] {
			if tensor.WeightBit(weights, i*cim.Lanes+j) == 1 {
				m[i][j] = 1
			} else {
				m[i][j] = -1
			}
		}
	}

	return m, nil
}

// ExpectedOutput computes the reference result of one compute cycle.
func ExpectedOutput(weights, acts []byte) (output.Vector, error) {
	m, err := WeightMatrix(weights)
	if err != nil {
		return nil, err
	}

	a, err := tensor.UnpackActivations(acts)
	if err != nil {
		return nil, err
	}

	out := make(output.Vector, cim.Lanes)
	for j := 0; j < cim.Lanes; j++ {
		var sum int32
		for i := 0; i < cim.Lanes; i++ {
			sum += m[i][j] * int32(a[i])
		}

		out[cim.Lanes-1-j] = sum
	}

	return out, nil
}
