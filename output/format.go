// Package output decodes the bit-plane interleaved output block of the
// accelerator into signed per-lane results.
package output

import (
	"fmt"

	"github.com/sarchlab/cimhost/cim"
)

// Supported precision modes of the output stage.
const (
	MinPrecision = 7
	MaxPrecision = cim.OutputPlanes
)

// Vector holds one signed result per lane.
type Vector []int32

// Format describes how a raw output block is laid out. Planes is the number
// of 64-bit bit-planes physically present, plane 0 being the sign plane.
// Skip lists plane indices that are present but carry no magnitude.
//
// Which planes the hardware drops in each precision mode was inferred from
// bench runs and should be checked against the current chip documentation.
type Format struct {
	Planes int   `yaml:"planes"`
	Skip   []int `yaml:"skip,omitempty"`
}

// Packed is the layout in which the dropped guard planes are absent from the
// block: p planes, nothing skipped.
func Packed(precision int) Format {
	return Format{Planes: precision}
}

// FullFrame is the layout in which the device always ships all ten planes
// and the (10 - p) planes right after the sign plane are ignored.
func FullFrame(precision int) Format {
	f := Format{Planes: cim.OutputPlanes}
	for j := 1; j <= cim.OutputPlanes-precision; j++ {
		f.Skip = append(f.Skip, j)
	}

	return f
}

// Precision returns the number of planes that contribute to the result,
// sign included.
func (f Format) Precision() int {
	return f.Planes - len(f.Skip)
}

// BlockSize returns the number of bytes of a block in this format.
func (f Format) BlockSize() int {
	return f.Planes * cim.Lanes / 8
}

// Validate checks that the format can be decoded.
func (f Format) Validate() error {
	if f.Planes < 2 || f.Planes > cim.OutputPlanes {
		return fmt.Errorf("output format with %d planes: %w", f.Planes, cim.ErrInvalidData)
	}

	seen := make(map[int]bool)
	for _, j := range f.Skip {
		if j < 1 || j >= f.Planes || seen[j] {
			return fmt.Errorf("output format skips plane %d: %w", j, cim.ErrInvalidData)
		}

		seen[j] = true
	}

	if err := checkPrecision(f.Precision()); err != nil {
		return fmt.Errorf("output format: %w", err)
	}

	return nil
}

func (f Format) skipped() []bool {
	s := make([]bool, f.Planes)
	for _, j := range f.Skip {
		s[j] = true
	}

	return s
}

func checkPrecision(precision int) error {
	if precision < MinPrecision || precision > MaxPrecision {
		return fmt.Errorf("precision %d not in %d..%d: %w",
			precision, MinPrecision, MaxPrecision, cim.ErrInvalidData)
	}

	return nil
}
