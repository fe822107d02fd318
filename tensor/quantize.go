package tensor

import "github.com/sarchlab/cimhost/cim"

// PulseCorrection compensates the non-linear pulse response of the analog
// array: scaled values above Threshold are lowered by Offset. The numbers
// are a calibration of the current silicon, not a derived model.
type PulseCorrection struct {
	Threshold uint8 `yaml:"threshold"`
	Offset    uint8 `yaml:"offset"`
}

// DefaultPulseCorrection is the calibration measured on the test chip.
var DefaultPulseCorrection = PulseCorrection{Threshold: 6, Offset: 1}

// Quantizer stretches activations over the full nibble range.
type Quantizer struct {
	Correction PulseCorrection
}

// NewQuantizer creates a quantizer with the default pulse correction.
func NewQuantizer() Quantizer {
	return Quantizer{Correction: DefaultPulseCorrection}
}

// Scale multiplies every activation by floor(15/max), at least 1, and
// applies the pulse correction. An all-zero input comes back unchanged with
// a factor of 1. Results above 15 are left for PackActivations to reject.
// Scale works on any number of lanes; callers feeding the device check for
// cim.Lanes themselves.
func (q Quantizer) Scale(acts []uint8) (scaled []uint8, factor int) {
	scaled = make([]uint8, len(acts))
	copy(scaled, acts)

	var maxVal uint8
	for _, a := range acts {
		if a > maxVal {
			maxVal = a
		}
	}

	if maxVal == 0 {
		return scaled, 1
	}

	factor = cim.MaxNibble / int(maxVal)
	if factor < 1 {
		factor = 1
	}

	for i, a := range acts {
		v := int(a) * factor
		if v > int(q.Correction.Threshold) {
			v -= int(q.Correction.Offset)
		}

		if v < 0 {
			v = 0
		}

		if v > 0xFF {
			v = 0xFF
		}

		scaled[i] = uint8(v)
	}

	return scaled, factor
}

// Rescale divides each lane of a device output by the factor returned from
// Scale.
func Rescale(out []int32, factor int) []float64 {
	if factor < 1 {
		factor = 1
	}

	res := make([]float64, len(out))
	for i, v := range out {
		res[i] = float64(v) / float64(factor)
	}

	return res
}
