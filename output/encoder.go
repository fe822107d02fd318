package output

import (
	"fmt"

	"github.com/sarchlab/cimhost/cim"
)

// Limit returns the largest magnitude a format can carry after the final
// doubling.
func (f Format) Limit() int32 {
	return ((int32(1) << (f.Precision() - 1)) - 1) * 2
}

func setBit(block []byte, offset int) {
	block[offset/8] |= 1 << (7 - offset%8)
}

// Encode is the inverse of Decode, as produced by the device: each value is
// halved with the LSB dropped and saturated to the range of the format.
// Planes listed in Skip carry the sign extension.
func Encode(v Vector, f Format) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	if len(v) != cim.Lanes {
		return nil, fmt.Errorf("output vector of %d lanes: %w", len(v), cim.ErrSizeMismatch)
	}

	skipped := f.skipped()
	maxMag := (int32(1) << (f.Precision() - 1)) - 1
	block := make([]byte, f.BlockSize())

	for i := 0; i < cim.Lanes; i++ {
		half := v[cim.Lanes-1-i] >> 1
		negative := half < 0

		mag := half
		if negative {
			mag = -half
		}

		if mag > maxMag {
			mag = maxMag
		}

		if negative {
			setBit(block, i)
		}

		pos := f.Precision() - 2
		for j := 1; j < f.Planes; j++ {
			bit := !negative
			if !skipped[j] {
				bit = (mag>>pos)&1 == 1
				if !negative {
					bit = !bit
				}
				pos--
			}

			if bit {
				setBit(block, j*cim.Lanes+i)
			}
		}
	}

	return block, nil
}
