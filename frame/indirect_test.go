package frame_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/frame"
)

var _ = Describe("Indirect register protocol", func() {
	It("should stage every address and value and read them back", func() {
		for addr := 0; addr <= 0xFF; addr++ {
			for _, value := range []int{0, 1, 0x00FF, 0xFF00, 0x1234, 0xFFFF, addr * 257} {
				t := frame.BuildWrite(uint8(addr), uint16(value))
				Expect(t.Bytes()).To(HaveLen(16))

				gotAddr, gotValue := t.Staged()
				Expect(gotAddr).To(Equal(uint8(addr)))
				Expect(gotValue).To(Equal(uint16(value)))
				Expect(t.Frame(1).Payload()).To(Equal(byte(value)))
				Expect(t.Frame(2).Payload()).To(Equal(byte(value >> 8)))
			}
		}
	})

	It("should order write frames as addr, lo, hi, commit", func() {
		t := frame.BuildWrite(0x30, 0xBEEF)
		Expect(t.Bytes()).To(Equal([]byte{
			0x30, 2, 1, 0,
			0xEF, 3, 1, 0,
			0xBE, 4, 1, 0,
			3, 1, 1, 0,
		}))
		Expect(t.IsRead()).To(BeFalse())
	})

	It("should request the high result byte before the low one", func() {
		for addr := 0; addr <= 0xFF; addr++ {
			t := frame.BuildRead(uint8(addr))
			Expect(t.Frame(0)).To(Equal(frame.Frame{byte(addr), 2, 1, 0}))
			Expect(t.Frame(1)).To(Equal(frame.Frame{2, 1, 1, 0}))
			Expect(t.Frame(2)).To(Equal(frame.Frame{0, 6, 0, 0}))
			Expect(t.Frame(3)).To(Equal(frame.Frame{0, 5, 0, 0}))
			Expect(t.IsRead()).To(BeTrue())
		}
	})

	It("should range check untyped register writes", func() {
		_, err := frame.EncodeRegisterWrite(256, 0)
		Expect(err).To(MatchError(cim.ErrInvalidAddress))

		_, err = frame.EncodeRegisterWrite(0, 0x10000)
		Expect(err).To(MatchError(cim.ErrInvalidData))

		_, err = frame.EncodeRegisterRead(-1)
		Expect(err).To(MatchError(cim.ErrInvalidAddress))

		b, err := frame.EncodeRegisterWrite(0x2C, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(HaveLen(frame.TransactionSize))
	})

	Context("when decoding a read result", func() {
		It("should take bytes 0 and 4 of a compact response", func() {
			v, err := frame.DecodeReadResult([]byte{0x12, 0, 0, 0, 0x34, 0, 0, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint16(0x1234)))
		})

		It("should discard the echoed request slots", func() {
			resp := []byte{
				0xAB, 0, 0, 0,
				0xCD, 0, 0, 0,
				0, 6, 0, 0,
				0, 5, 0, 0,
			}
			v, err := frame.DecodeReadResult(resp)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint16(0xABCD)))
		})

		It("should reject other lengths", func() {
			_, err := frame.DecodeReadResult(make([]byte, 12))
			Expect(err).To(MatchError(cim.ErrSizeMismatch))
		})
	})

	It("should concatenate transactions in order", func() {
		a := frame.BuildWrite(1, 2)
		b := frame.BuildRead(3)
		batch := frame.Concat([]frame.Transaction{a, b})
		Expect(batch).To(HaveLen(32))
		Expect(batch[:16]).To(Equal(a.Bytes()))
		Expect(batch[16:]).To(Equal(b.Bytes()))
	})
})
