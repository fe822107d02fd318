package frame_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/frame"
)

var _ = Describe("Frame", func() {
	It("should lay out a write frame", func() {
		f, err := frame.WriteFrame(3, 0xAB)
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(frame.Frame{0xAB, 3, 1, 0}))
		Expect(f.IsWrite()).To(BeTrue())
	})

	It("should lay out a read frame", func() {
		f, err := frame.ReadFrame(6)
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(frame.Frame{0, 6, 0, 0}))
		Expect(f.IsWrite()).To(BeFalse())
	})

	DescribeTable("should reject outer addresses out of 1..6",
		func(outer int) {
			_, err := frame.WriteFrame(outer, 0)
			Expect(err).To(MatchError(cim.ErrInvalidAddress))

			_, err = frame.ReadFrame(outer)
			Expect(err).To(MatchError(cim.ErrInvalidAddress))
		},
		Entry("zero", 0),
		Entry("seven", 7),
		Entry("negative", -1),
	)

	It("should reject payloads out of 0..255", func() {
		_, err := frame.WriteFrame(1, 256)
		Expect(err).To(MatchError(cim.ErrInvalidData))

		_, err = frame.WriteFrame(1, -1)
		Expect(err).To(MatchError(cim.ErrInvalidData))
	})

	It("should parse what it builds", func() {
		f, _ := frame.WriteFrame(4, 0x12)
		parsed, err := frame.ParseFrame(f[:])
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(Equal(f))
	})

	It("should refuse to parse short frames", func() {
		_, err := frame.ParseFrame([]byte{1, 2, 3})
		Expect(err).To(MatchError(cim.ErrSizeMismatch))
	})

	It("should refuse unknown operation tags", func() {
		_, err := frame.ParseFrame([]byte{0, 1, 7, 0})
		Expect(err).To(MatchError(cim.ErrInvalidData))
	})
})
