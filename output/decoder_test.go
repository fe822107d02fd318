package output_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/output"
)

func planeBlock(planes int, fill func(plane int) byte) []byte {
	block := make([]byte, planes*8)
	for j := 0; j < planes; j++ {
		for k := 0; k < 8; k++ {
			block[j*8+k] = fill(j)
		}
	}

	return block
}

var _ = Describe("Decoder", func() {
	It("should decode an all-zero block to the largest positive value", func() {
		out, err := output.DecodePrecision(make([]byte, cim.OutputBytes), 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(cim.Lanes))
		for _, v := range out {
			Expect(v).To(Equal(int32(1022)))
		}
	})

	It("should decode positive lanes with every magnitude bit set to zero", func() {
		block := planeBlock(10, func(j int) byte {
			if j == 0 {
				return 0x00
			}
			return 0xFF
		})

		out, err := output.DecodePrecision(block, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(make(output.Vector, cim.Lanes)))
	})

	It("should decode a set sign plane over zero planes to negative zero", func() {
		block := planeBlock(10, func(j int) byte {
			if j == 0 {
				return 0xFF
			}
			return 0x00
		})

		out, err := output.DecodePrecision(block, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(make(output.Vector, cim.Lanes)))
	})

	It("should reverse the lane order", func() {
		block := planeBlock(10, func(j int) byte {
			if j == 0 {
				return 0x00
			}
			return 0xFF
		})
		// Lane 0: negative, magnitude 1.
		block[0] |= 0x80
		for j := 1; j < 9; j++ {
			block[j*8] &^= 0x80
		}

		out, err := output.DecodePrecision(block, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(out[63]).To(Equal(int32(-2)))
		Expect(out[0]).To(Equal(int32(0)))
	})

	It("should ignore the skipped planes of a full frame", func() {
		block := planeBlock(10, func(j int) byte {
			switch {
			case j == 0:
				return 0x00
			case j <= 3:
				return 0x00
			default:
				return 0xFF
			}
		})

		out, err := output.Decode(block, output.FullFrame(7))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(make(output.Vector, cim.Lanes)))
	})

	It("should size packed blocks by precision", func() {
		_, err := output.DecodePrecision(make([]byte, cim.OutputBytes), 9)
		Expect(err).To(MatchError(cim.ErrSizeMismatch))

		out, err := output.DecodePrecision(make([]byte, 72), 9)
		Expect(err).NotTo(HaveOccurred())
		Expect(out[0]).To(Equal(int32(510)))
	})

	It("should reject precisions outside 7..10", func() {
		_, err := output.DecodePrecision(make([]byte, 48), 6)
		Expect(err).To(MatchError(cim.ErrInvalidData))
	})

	DescribeTable("should reject formats keeping fewer than 7 or more than 10 planes",
		func(f output.Format) {
			Expect(f.Validate()).To(MatchError(cim.ErrInvalidData))

			_, err := output.Decode(make([]byte, f.BlockSize()), f)
			Expect(err).To(MatchError(cim.ErrInvalidData))

			_, err = output.Encode(make(output.Vector, cim.Lanes), f)
			Expect(err).To(MatchError(cim.ErrInvalidData))
		},
		Entry("packed 6", output.Packed(6)),
		Entry("packed 2", output.Packed(2)),
		Entry("full frame 6", output.FullFrame(6)),
		Entry("full frame 5", output.FullFrame(5)),
	)

	It("should accept every supported precision", func() {
		for p := output.MinPrecision; p <= output.MaxPrecision; p++ {
			Expect(output.Packed(p).Validate()).To(Succeed())
			Expect(output.FullFrame(p).Validate()).To(Succeed())
		}
	})

	It("should reject malformed formats", func() {
		_, err := output.Decode(make([]byte, 80), output.Format{Planes: 10, Skip: []int{0}})
		Expect(err).To(MatchError(cim.ErrInvalidData))
	})

	DescribeTable("should round trip through the encoder",
		func(f output.Format) {
			rng := rand.New(rand.NewSource(42))
			limit := f.Limit()

			v := make(output.Vector, cim.Lanes)
			for i := range v {
				v[i] = int32(rng.Intn(int(limit)+1)) &^ 1
				if rng.Intn(2) == 0 {
					v[i] = -v[i]
				}
			}

			block, err := output.Encode(v, f)
			Expect(err).NotTo(HaveOccurred())
			Expect(block).To(HaveLen(f.BlockSize()))

			back, err := output.Decode(block, f)
			Expect(err).NotTo(HaveOccurred())
			Expect(back).To(Equal(v))
		},
		Entry("packed 10", output.Packed(10)),
		Entry("packed 7", output.Packed(7)),
		Entry("full frame 8", output.FullFrame(8)),
		Entry("full frame 10", output.FullFrame(10)),
	)

	It("should drop the output LSB and saturate when encoding", func() {
		v := make(output.Vector, cim.Lanes)
		v[0] = 7
		v[1] = -7
		v[2] = 5000
		v[3] = -5000

		block, err := output.Encode(v, output.Packed(10))
		Expect(err).NotTo(HaveOccurred())

		back, err := output.Decode(block, output.Packed(10))
		Expect(err).NotTo(HaveOccurred())
		Expect(back[0]).To(Equal(int32(6)))
		Expect(back[1]).To(Equal(int32(-8)))
		Expect(back[2]).To(Equal(int32(1022)))
		Expect(back[3]).To(Equal(int32(-1022)))
	})
})
