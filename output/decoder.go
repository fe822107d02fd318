package output

import (
	"fmt"

	"github.com/sarchlab/cimhost/cim"
)

// bitAt returns the bit at an absolute offset, bit 0 being the most
// significant bit of the first byte.
func bitAt(block []byte, offset int) int32 {
	return int32(block[offset/8]>>(7-offset%8)) & 1
}

// Decode turns a raw block into 64 lane values. Bit j of lane i sits at
// offset j*64+i. Plane 0 is the sign; a positive lane accumulates inverted
// bits, a negative one subtracts them. The accumulated value is doubled to
// undo the dropped output LSB, and the vector is reversed so that index 0 is
// the last lane the device produced.
func Decode(block []byte, f Format) (Vector, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	if len(block) != f.BlockSize() {
		return nil, fmt.Errorf("output block of %d bytes, want %d: %w",
			len(block), f.BlockSize(), cim.ErrSizeMismatch)
	}

	skipped := f.skipped()
	out := make(Vector, cim.Lanes)

	for i := 0; i < cim.Lanes; i++ {
		var value int32
		negative := false

		for j := 0; j < f.Planes; j++ {
			bit := bitAt(block, j*cim.Lanes+i)

			switch {
			case j == 0:
				negative = bit == 1
			case skipped[j]:
				continue
			case negative:
				value = value*2 - bit
			default:
				value = value*2 + (1 - bit)
			}
		}

		out[cim.Lanes-1-i] = value * 2
	}

	return out, nil
}

// DecodePrecision decodes a block in which the guard planes of the given
// precision mode are absent.
func DecodePrecision(block []byte, precision int) (Vector, error) {
	if err := checkPrecision(precision); err != nil {
		return nil, err
	}

	return Decode(block, Packed(precision))
}
