package tensor_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/tensor"
)

var _ = Describe("Quantizer", func() {
	var q tensor.Quantizer

	BeforeEach(func() {
		q = tensor.NewQuantizer()
	})

	It("should leave an all-zero vector unchanged", func() {
		acts := make([]uint8, cim.Lanes)

		scaled, factor := q.Scale(acts)
		Expect(factor).To(Equal(1))
		Expect(scaled).To(Equal(acts))
	})

	It("should keep a factor of 1 when the max is already 15", func() {
		acts := make([]uint8, cim.Lanes)
		acts[0] = 15

		scaled, factor := q.Scale(acts)
		Expect(factor).To(Equal(1))
		Expect(scaled[0]).To(Equal(uint8(14)))
		Expect(scaled[1]).To(Equal(uint8(0)))
	})

	It("should stretch and correct values above the threshold", func() {
		acts := []uint8{1, 2, 3, 4, 0}

		scaled, factor := q.Scale(acts)
		Expect(factor).To(Equal(3))
		Expect(scaled).To(Equal([]uint8{3, 6, 8, 11, 0}))
	})

	It("should not modify its input", func() {
		acts := []uint8{1, 2}
		q.Scale(acts)
		Expect(acts).To(Equal([]uint8{1, 2}))
	})

	It("should honor an overridden correction", func() {
		q.Correction = tensor.PulseCorrection{Threshold: 15, Offset: 1}

		scaled, factor := q.Scale([]uint8{5})
		Expect(factor).To(Equal(3))
		Expect(scaled).To(Equal([]uint8{15}))
	})

	It("should rescale outputs back by the factor", func() {
		Expect(tensor.Rescale([]int32{6, -9, 0}, 3)).
			To(Equal([]float64{2, -3, 0}))
	})
})
