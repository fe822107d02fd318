package api

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/frame"
	"github.com/sarchlab/cimhost/tensor"
)

var _ = Describe("Facade", func() {
	It("should quantize the activations of one cycle", func() {
		nibbles := make([]uint8, cim.Lanes)
		nibbles[0] = 3

		scaled, factor, err := QuantizeActivation(nibbles)
		Expect(err).NotTo(HaveOccurred())
		Expect(factor).To(Equal(5))
		Expect(scaled).To(HaveLen(cim.Lanes))
		Expect(scaled[0]).To(Equal(uint8(14)))
		Expect(scaled[1]).To(BeZero())
	})

	It("should reject activation vectors that are not 64 lanes", func() {
		_, _, err := QuantizeActivation([]uint8{3})
		Expect(err).To(MatchError(cim.ErrSizeMismatch))

		_, _, err = QuantizeActivation(make([]uint8, cim.Lanes+1))
		Expect(err).To(MatchError(cim.ErrSizeMismatch))
	})

	It("should encode loads on the default ports", func() {
		blocks, err := EncodeWeightLoad(tensor.Zeros(cim.WeightBytes))
		Expect(err).NotTo(HaveOccurred())
		Expect(blocks).To(HaveLen(256))
		Expect(blocks[0]).To(HaveLen(frame.TransactionSize))
		Expect(blocks[0][0]).To(Equal(byte(0x30)))

		blocks, err = EncodeActivationLoad(tensor.Zeros(cim.ActivationBytes))
		Expect(err).NotTo(HaveOccurred())
		Expect(blocks).To(HaveLen(16))
		Expect(blocks[0][0]).To(Equal(byte(0x34)))

		_, err = EncodeWeightLoad(make([]byte, 511))
		Expect(err).To(MatchError(cim.ErrSizeMismatch))
	})

	It("should compute the reference", func() {
		out, err := ComputeReference(
			tensor.Ones(cim.WeightBytes),
			tensor.Constant(cim.ActivationBytes, 0x11),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveEach(int32(64)))
	})
})
